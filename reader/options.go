package reader

// Option configures how a document is parsed.
type Option func(*parseConfig)

type parseConfig struct {
	password string
}

// WithPassword sets the password used to decrypt documents protected by the
// standard security handler. Without it only the empty user password is tried.
func WithPassword(password string) Option {
	return func(c *parseConfig) {
		c.password = password
	}
}

func newParseConfig(opts []Option) *parseConfig {
	cfg := &parseConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
