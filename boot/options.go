package boot

import "mmcboot-go/x/logx"

// Config holds optional loader behaviour.
type Config struct {
	// Logger receives progress and faults. Default: logx.Nop.
	Logger logx.Logger

	// Verify re-reads every programmed page and records mismatches.
	// Default: true. A mismatch is never retried.
	Verify bool

	// Indicator is switched on while pages are rewritten (optional).
	Indicator Indicator

	// Candidates overrides the name resolution order.
	Candidates []Candidate
}

func defaultConfig() Config {
	return Config{
		Logger: logx.Nop,
		Verify: true,
	}
}

// Option is a functional option for New and NewEngine.
type Option func(*Config)

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(l logx.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithVerify enables or disables read-back after programming.
func WithVerify(v bool) Option {
	return func(c *Config) { c.Verify = v }
}

// WithIndicator sets the programming indicator.
func WithIndicator(ind Indicator) Option {
	return func(c *Config) { c.Indicator = ind }
}

// WithCandidates replaces the default name order.
func WithCandidates(cands ...Candidate) Option {
	return func(c *Config) { c.Candidates = cands }
}
