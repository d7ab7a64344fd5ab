package evh

// Handle is a platform connection handle: a raw OS socket descriptor on
// every supported platform, including Windows (where it is the integer
// value of the underlying windows.Handle/SOCKET), matching the uniform
// handle type already used by the platform poller implementations.
type Handle = int
