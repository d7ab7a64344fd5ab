package corerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/joeycumines/go-evhcore/corerr"
)

func TestErrorIsKind(t *testing.T) {
	err := corerr.New(corerr.IllegalState, "slab %d double-freed", 7)
	if !errors.Is(err, corerr.KindOnly(corerr.IllegalState)) {
		t.Fatalf("expected IllegalState match")
	}
	if errors.Is(err, corerr.KindOnly(corerr.CapacityExceeded)) {
		t.Fatalf("did not expect CapacityExceeded match")
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := corerr.Wrap(corerr.IO, cause, "read failed")
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to match via errors.Is")
	}
	if got := errors.Unwrap(err); got != cause {
		t.Fatalf("unwrap = %v, want %v", got, cause)
	}
}

func TestErrorMessage(t *testing.T) {
	err := corerr.New(corerr.Parse, "bad pattern")
	if got, want := err.Error(), "Parse: bad pattern"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
