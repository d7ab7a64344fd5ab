package evh

// OnReadFunc is invoked after new bytes (or a synthetic trigger_on_read)
// are available on conn's read chain.
type OnReadFunc func(conn *Connection, ctx *UserContext)

// OnAcceptFunc is invoked once, immediately after a passively Accepted
// connection is installed into its owning worker -- strictly before any
// on-read for that connection.
type OnAcceptFunc func(conn *Connection, ctx *UserContext)

// OnCloseFunc is invoked once per connection, strictly after its last
// on-read. It runs at the start of process_close, after the handle is
// unregistered from the poller and before the read chain is freed, the
// connection is dropped from the worker's tables, and the platform handle
// is closed.
type OnCloseFunc func(conn *Connection, ctx *UserContext)

// OnHousekeeperFunc runs between event batches on the configured
// housekeeping cadence; it never runs concurrently with a user callback
// on the same worker.
type OnHousekeeperFunc func(ctx *UserContext)

// OnPanicFunc is invoked with the recovered payload when a connection
// callback panics; the owning connection is closed immediately afterward.
type OnPanicFunc func(ctx *UserContext, payload any)
