package evh_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-evhcore/evh"
)

// TestEchoServerRoundTrip exercises the full accept/read/write path over a
// real loopback TCP socket: a server connection accepts one client, echoes
// back whatever it reads, and the client-side handler collects the echoed
// bytes via its own on-read callback.
func TestEchoServerRoundTrip(t *testing.T) {
	h, err := evh.NewHandler(evh.Config{
		Threads:                 1,
		TimeoutMs:               20,
		ReadSlabSize:            64,
		ReadSlabCount:           16,
		HousekeepingFrequencyMs: 50,
	})
	require.NoError(t, err)

	received := make(chan []byte, 8)

	h.SetOnRead(func(conn *evh.Connection, ctx *evh.UserContext) {
		buf := make([]byte, 256)
		for {
			n, err := ctx.CloneNextChunk(buf)
			require.NoError(t, err)
			if n == 0 {
				break
			}
			if conn.Variant == evh.VariantAccepted {
				require.NoError(t, ctx.WriteHandle().Write(buf[:n]))
			} else {
				cp := append([]byte(nil), buf[:n]...)
				received <- cp
			}
		}
		require.NoError(t, ctx.ClearAll())
	})

	require.NoError(t, h.Start())
	defer h.Stop()

	ln, err := evh.ListenTCP([4]byte{127, 0, 0, 1}, 0, 16)
	require.NoError(t, err)

	_, err = h.AddServerConnection(ln)
	require.NoError(t, err)

	port, err := evh.LocalPort(ln)
	require.NoError(t, err)

	cli, err := evh.DialTCP([4]byte{127, 0, 0, 1}, port)
	require.NoError(t, err)

	clientWrite, err := h.AddClientConnection(cli)
	require.NoError(t, err)

	require.NoError(t, clientWrite.Write([]byte("ping")))

	select {
	case got := <-received:
		require.Equal(t, []byte("ping"), got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}
}

// TestSlabExhaustionClosesLaterConnection pins read_slab_count=1 so only one
// connection's read chain can hold a slab at a time. The first connection
// sends less than a full slab's worth of data and keeps its chunk (no
// ClearAll), pinning the sole slab; a second connection then fails to
// allocate its own first slab and is closed by the core. Connection A's
// payload deliberately stays under read_slab_size: filling a slab exactly
// would make the read loop itself eagerly grow A's own chain on the next
// iteration (and fail for the same reason), which would close A instead of
// B and defeat the scenario this test targets.
func TestSlabExhaustionClosesLaterConnection(t *testing.T) {
	h, err := evh.NewHandler(evh.Config{
		Threads:                 1,
		TimeoutMs:               20,
		ReadSlabSize:            64,
		ReadSlabCount:           1,
		HousekeepingFrequencyMs: 50,
	})
	require.NoError(t, err)

	firstRead := make(chan struct{}, 1)
	closed := make(chan uuid.UUID, 2)

	h.SetOnRead(func(conn *evh.Connection, ctx *evh.UserContext) {
		buf := make([]byte, 256)
		n, err := ctx.CloneNextChunk(buf)
		require.NoError(t, err)
		if n > 0 {
			select {
			case firstRead <- struct{}{}:
			default:
			}
		}
		// deliberately no ClearAll: keeps the slab pinned to this connection
	})
	h.SetOnClose(func(conn *evh.Connection, ctx *evh.UserContext) {
		closed <- conn.ID
	})

	require.NoError(t, h.Start())
	defer h.Stop()

	ln, err := evh.ListenTCP([4]byte{127, 0, 0, 1}, 0, 16)
	require.NoError(t, err)
	_, err = h.AddServerConnection(ln)
	require.NoError(t, err)

	port, err := evh.LocalPort(ln)
	require.NoError(t, err)

	cliA, err := evh.DialTCP([4]byte{127, 0, 0, 1}, port)
	require.NoError(t, err)
	writeA, err := h.AddClientConnection(cliA)
	require.NoError(t, err)
	require.NoError(t, writeA.Write(make([]byte, 40)))

	select {
	case <-firstRead:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the first connection's read")
	}

	cliB, err := evh.DialTCP([4]byte{127, 0, 0, 1}, port)
	require.NoError(t, err)
	writeB, err := h.AddClientConnection(cliB)
	require.NoError(t, err)
	require.NoError(t, writeB.Write(make([]byte, 80)))

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the second connection to be closed due to slab exhaustion")
	}
}

// TestPanicRecoveryClosesOnlyPanickingConnection exercises scenario 4: an
// on-read callback that panics on one connection's traffic closes only that
// connection, while a second, unrelated connection keeps working.
func TestPanicRecoveryClosesOnlyPanickingConnection(t *testing.T) {
	h, err := evh.NewHandler(evh.Config{
		Threads:                 1,
		TimeoutMs:               20,
		ReadSlabSize:            64,
		ReadSlabCount:           16,
		HousekeepingFrequencyMs: 50,
	})
	require.NoError(t, err)

	const panicMarker = byte(0xFF)

	survived := make(chan []byte, 1)
	closed := make(chan uuid.UUID, 4)

	h.SetOnRead(func(conn *evh.Connection, ctx *evh.UserContext) {
		buf := make([]byte, 256)
		n, err := ctx.CloneNextChunk(buf)
		require.NoError(t, err)
		if n == 0 {
			return
		}
		if buf[0] == panicMarker {
			panic("evh_test: on-read callback exploded")
		}
		cp := append([]byte(nil), buf[:n]...)
		survived <- cp
		require.NoError(t, ctx.ClearAll())
	})
	h.SetOnClose(func(conn *evh.Connection, ctx *evh.UserContext) {
		closed <- conn.ID
	})

	require.NoError(t, h.Start())
	defer h.Stop()

	ln, err := evh.ListenTCP([4]byte{127, 0, 0, 1}, 0, 16)
	require.NoError(t, err)
	_, err = h.AddServerConnection(ln)
	require.NoError(t, err)

	port, err := evh.LocalPort(ln)
	require.NoError(t, err)

	// Panicking connection.
	cliBad, err := evh.DialTCP([4]byte{127, 0, 0, 1}, port)
	require.NoError(t, err)
	writeBad, err := h.AddClientConnection(cliBad)
	require.NoError(t, err)
	require.NoError(t, writeBad.Write([]byte{panicMarker, 1, 2}))

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the panicking connection to be closed")
	}

	// Unrelated connection, exercised after the panic, must still work.
	cliGood, err := evh.DialTCP([4]byte{127, 0, 0, 1}, port)
	require.NoError(t, err)
	writeGood, err := h.AddClientConnection(cliGood)
	require.NoError(t, err)
	require.NoError(t, writeGood.Write([]byte("still alive")))

	select {
	case got := <-survived:
		require.Equal(t, []byte("still alive"), got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the unrelated connection's read")
	}
}
