package evh_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-evhcore/evh"
)

func TestWaitForStatsAggregatesZeroWorkers(t *testing.T) {
	h, err := evh.NewHandler(validConfig())
	require.NoError(t, err)

	stats := h.WaitForStats()
	require.Equal(t, evh.Stats{}, stats)
}
