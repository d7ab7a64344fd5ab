package evh

// Option configures a Handler at construction, as an alternative to
// building a Config struct directly.
type Option interface {
	applyConfig(*Config) error
}

type optionImpl struct {
	applyConfigFunc func(*Config) error
}

func (o *optionImpl) applyConfig(cfg *Config) error {
	return o.applyConfigFunc(cfg)
}

// WithThreads sets the number of worker threads. Required: Config has no
// safe default for this.
func WithThreads(n int) Option {
	return &optionImpl{func(cfg *Config) error {
		cfg.Threads = n
		return nil
	}}
}

// WithTimeoutMs sets the bound on each worker's platform-wait call.
// Required: Config has no safe default for this.
func WithTimeoutMs(ms int) Option {
	return &optionImpl{func(cfg *Config) error {
		cfg.TimeoutMs = ms
		return nil
	}}
}

// WithReadSlabSize sets the per-slab payload size for each worker's
// read-slab allocator. Defaults to 4096.
func WithReadSlabSize(n int) Option {
	return &optionImpl{func(cfg *Config) error {
		cfg.ReadSlabSize = n
		return nil
	}}
}

// WithReadSlabCount sets the slab count for each worker's read-slab
// allocator. Defaults to 64.
func WithReadSlabCount(n int) Option {
	return &optionImpl{func(cfg *Config) error {
		cfg.ReadSlabCount = n
		return nil
	}}
}

// WithHousekeepingFrequencyMs sets the minimum interval between
// on-housekeeper callback invocations. Defaults to 1000.
func WithHousekeepingFrequencyMs(ms int) Option {
	return &optionImpl{func(cfg *Config) error {
		cfg.HousekeepingFrequencyMs = ms
		return nil
	}}
}

// WithStatsUpdateFrequencyMs sets the minimum interval between stats
// aggregation passes. Zero disables periodic aggregation.
func WithStatsUpdateFrequencyMs(ms int) Option {
	return &optionImpl{func(cfg *Config) error {
		cfg.StatsUpdateFrequencyMs = ms
		return nil
	}}
}

// WithDebug enables verbose structured logging of the worker loop.
func WithDebug(enabled bool) Option {
	return &optionImpl{func(cfg *Config) error {
		cfg.Debug = enabled
		return nil
	}}
}

// resolveOptions applies opts over the default configuration, mirroring
// threadpool.resolvePoolOptions. Threads and TimeoutMs are left at their
// zero values absent WithThreads/WithTimeoutMs; Config.Validate (run by
// NewHandler) rejects those the same way it rejects a zero-value Config.
func resolveOptions(opts []Option) (Config, error) {
	cfg := Config{
		ReadSlabSize:            4096,
		ReadSlabCount:           64,
		HousekeepingFrequencyMs: 1000,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyConfig(&cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// NewHandlerWithOptions builds a Config from opts and constructs a Handler
// the same way NewHandler does. WithThreads and WithTimeoutMs must be
// supplied; every other option has a documented default.
func NewHandlerWithOptions(opts ...Option) (*Handler, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return NewHandler(cfg)
}
