package ser_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/joeycumines/go-evhcore/corerr"
	"github.com/joeycumines/go-evhcore/ser"
)

func TestIntegerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := ser.NewWriter(&buf)
	w.WriteU8(0xAB)
	w.WriteI8(-5)
	w.WriteU16(0xBEEF)
	w.WriteI16(-1000)
	w.WriteU32(0xDEADBEEF)
	w.WriteI32(-70000)
	w.WriteU64(0x0102030405060708)
	w.WriteI64(-1)
	if err := w.Err(); err != nil {
		t.Fatal(err)
	}

	r := ser.NewReader(&buf)
	if got := r.ReadU8(); got != 0xAB {
		t.Fatalf("u8 = %x", got)
	}
	if got := r.ReadI8(); got != -5 {
		t.Fatalf("i8 = %d", got)
	}
	if got := r.ReadU16(); got != 0xBEEF {
		t.Fatalf("u16 = %x", got)
	}
	if got := r.ReadI16(); got != -1000 {
		t.Fatalf("i16 = %d", got)
	}
	if got := r.ReadU32(); got != 0xDEADBEEF {
		t.Fatalf("u32 = %x", got)
	}
	if got := r.ReadI32(); got != -70000 {
		t.Fatalf("i32 = %d", got)
	}
	if got := r.ReadU64(); got != 0x0102030405060708 {
		t.Fatalf("u64 = %x", got)
	}
	if got := r.ReadI64(); got != -1 {
		t.Fatalf("i64 = %d", got)
	}
	if err := r.Err(); err != nil {
		t.Fatal(err)
	}
}

func TestBigEndianWireFormat(t *testing.T) {
	var buf bytes.Buffer
	w := ser.NewWriter(&buf)
	w.WriteU32(0x01020304)
	if got, want := buf.Bytes(), []byte{0x01, 0x02, 0x03, 0x04}; !bytes.Equal(got, want) {
		t.Fatalf("got %x, want %x (big-endian)", got, want)
	}
}

func TestBytesLengthPrefix(t *testing.T) {
	var buf bytes.Buffer
	w := ser.NewWriter(&buf)
	w.WriteBytes([]byte("hello"))

	wantLenPrefix := []byte{0, 0, 0, 0, 0, 0, 0, 5}
	if got := buf.Bytes()[:8]; !bytes.Equal(got, wantLenPrefix) {
		t.Fatalf("length prefix = %x, want %x", got, wantLenPrefix)
	}

	r := ser.NewReader(&buf)
	if got := string(r.ReadBytes()); got != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestEmptyBytesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := ser.NewWriter(&buf)
	w.WriteEmptyBytes(4)

	r := ser.NewReader(&buf)
	r.ReadEmptyBytes(4)
	if err := r.Err(); err != nil {
		t.Fatal(err)
	}
}

func TestReadEmptyBytesDetectsCorruption(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 1, 0})
	r := ser.NewReader(buf)
	r.ReadEmptyBytes(4)
	if !errors.Is(r.Err(), corerr.KindOnly(corerr.CorruptedData)) {
		t.Fatalf("expected CorruptedData, got %v", r.Err())
	}
}

func TestExpectU8(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x42})
	r := ser.NewReader(buf)
	r.ExpectU8(0x42)
	if err := r.Err(); err != nil {
		t.Fatal(err)
	}

	buf = bytes.NewBuffer([]byte{0x41})
	r = ser.NewReader(buf)
	r.ExpectU8(0x42)
	if !errors.Is(r.Err(), corerr.KindOnly(corerr.CorruptedData)) {
		t.Fatalf("expected CorruptedData, got %v", r.Err())
	}
}

func TestShortReadIsIOError(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x01, 0x02})
	r := ser.NewReader(buf)
	_ = r.ReadU64()
	if !errors.Is(r.Err(), corerr.KindOnly(corerr.IO)) {
		t.Fatalf("expected IO error on truncated read, got %v", r.Err())
	}
}

func TestU128RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := ser.NewWriter(&buf)
	w.WriteU128(0x0102030405060708, 0x1112131415161718)
	r := ser.NewReader(&buf)
	hi, lo := r.ReadU128()
	if hi != 0x0102030405060708 || lo != 0x1112131415161718 {
		t.Fatalf("got hi=%x lo=%x", hi, lo)
	}
}
