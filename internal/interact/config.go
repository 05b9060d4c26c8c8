package interact

import "time"

// Config controls retries and timeouts. Values are copied per call, so
// per-call Options never leak into the engine defaults.
type Config struct {
	Attempts          int
	WaitTimeout       time.Duration
	ClickTimeout      time.Duration
	TryFallbackInvoke bool
	ScrollIntoView    bool
	BackoffBase       time.Duration

	TypeTimeout    time.Duration
	FillTimeout    time.Duration
	VerifyTimeout  time.Duration
	EnableGrace    time.Duration
	FallbackSettle time.Duration
}

func DefaultConfig() Config {
	return Config{
		Attempts:          3,
		WaitTimeout:       5 * time.Second,
		ClickTimeout:      5 * time.Second,
		TryFallbackInvoke: true,
		ScrollIntoView:    true,
		BackoffBase:       200 * time.Millisecond,
		TypeTimeout:       30 * time.Second,
		FillTimeout:       30 * time.Second,
		VerifyTimeout:     5 * time.Second,
		EnableGrace:       200 * time.Millisecond,
		FallbackSettle:    200 * time.Millisecond,
	}
}

// Option overrides one setting for a single call.
type Option func(*Config)

// With returns a copy of c with opts applied.
func (c Config) With(opts ...Option) Config {
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	if c.Attempts < 1 {
		c.Attempts = 1
	}
	return c
}

func WithAttempts(n int) Option {
	return func(c *Config) { c.Attempts = n }
}

func WithWaitTimeout(d time.Duration) Option {
	return func(c *Config) { c.WaitTimeout = d }
}

func WithClickTimeout(d time.Duration) Option {
	return func(c *Config) { c.ClickTimeout = d }
}

func WithFallbackInvoke(on bool) Option {
	return func(c *Config) { c.TryFallbackInvoke = on }
}

func WithScrollIntoView(on bool) Option {
	return func(c *Config) { c.ScrollIntoView = on }
}

func WithBackoffBase(d time.Duration) Option {
	return func(c *Config) { c.BackoffBase = d }
}

func WithTypeTimeout(d time.Duration) Option {
	return func(c *Config) { c.TypeTimeout = d }
}

func WithFillTimeout(d time.Duration) Option {
	return func(c *Config) { c.FillTimeout = d }
}

func WithVerifyTimeout(d time.Duration) Option {
	return func(c *Config) { c.VerifyTimeout = d }
}
