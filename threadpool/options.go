package threadpool

import "github.com/joeycumines/go-evhcore/corerr"

// poolOptions holds resolved Pool configuration.
type poolOptions struct {
	minSize    int
	maxSize    int
	queueDepth int
	onPanic    func(workerID uint64, payload any)
}

// Option configures a Pool at construction.
type Option interface {
	applyPool(*poolOptions) error
}

type poolOptionImpl struct {
	applyPoolFunc func(*poolOptions) error
}

func (o *poolOptionImpl) applyPool(opts *poolOptions) error {
	return o.applyPoolFunc(opts)
}

// WithMinSize sets the minimum number of live worker goroutines the pool
// keeps around even while idle. Defaults to 1.
func WithMinSize(n int) Option {
	return &poolOptionImpl{func(opts *poolOptions) error {
		if n < 0 {
			return corerr.New(corerr.IllegalArgument, "threadpool: min size must be >= 0, got %d", n)
		}
		opts.minSize = n
		return nil
	}}
}

// WithMaxSize sets the maximum number of live worker goroutines. Defaults
// to 4.
func WithMaxSize(n int) Option {
	return &poolOptionImpl{func(opts *poolOptions) error {
		if n < 1 {
			return corerr.New(corerr.IllegalArgument, "threadpool: max size must be >= 1, got %d", n)
		}
		opts.maxSize = n
		return nil
	}}
}

// WithQueueDepth sets the bounded task channel depth. Defaults to 10.
func WithQueueDepth(n int) Option {
	return &poolOptionImpl{func(opts *poolOptions) error {
		if n < 0 {
			return corerr.New(corerr.IllegalArgument, "threadpool: queue depth must be >= 0, got %d", n)
		}
		opts.queueDepth = n
		return nil
	}}
}

// WithOnPanic registers a callback invoked with the worker id and the
// recovered panic payload whenever a task panics. The pool itself always
// survives a task panic; this is purely an observability hook.
func WithOnPanic(fn func(workerID uint64, payload any)) Option {
	return &poolOptionImpl{func(opts *poolOptions) error {
		opts.onPanic = fn
		return nil
	}}
}

// resolvePoolOptions applies opts over the default configuration.
func resolvePoolOptions(opts []Option) (*poolOptions, error) {
	cfg := &poolOptions{
		minSize:    1,
		maxSize:    4,
		queueDepth: 10,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyPool(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.minSize > cfg.maxSize {
		return nil, corerr.New(corerr.IllegalArgument, "threadpool: min size %d exceeds max size %d", cfg.minSize, cfg.maxSize)
	}
	return cfg, nil
}
