// Package config parses pdf-reader-mcp configuration from the environment
// and command-line flags.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds server configuration.
type Config struct {
	Root          string `env:"PDF_READER_ROOT"`
	AllowAbsolute bool   `env:"PDF_READER_ALLOW_ABSOLUTE" envDefault:"false"`
	Transport     string `env:"PDF_READER_TRANSPORT"      envDefault:"stdio"`
	HTTPAddr      string `env:"PDF_READER_HTTP_ADDR"      envDefault:"localhost:8090"`
	LogLevel      string `env:"PDF_READER_LOG_LEVEL"      envDefault:"info"`
	LogFormat     string `env:"PDF_READER_LOG_FORMAT"     envDefault:"text"`
	OTelEndpoint  string `env:"PDF_READER_OTEL_ENDPOINT"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Parse reads the environment, then lets flags in args override it.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Root, "root", cfg.Root, "directory tree tools may read (default: working directory)")
	fs.BoolVar(&cfg.AllowAbsolute, "allow-absolute", cfg.AllowAbsolute, "admit absolute paths outside the root")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: trace, debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("invalid transport %q: want stdio or http", c.Transport)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: want text or json", c.LogFormat)
	}
	return nil
}

// NewLogger returns a logger configured by c writing to stderr. Stdout
// belongs to the stdio transport.
func (c Config) NewLogger() (*logrus.Logger, error) {
	return c.newLogger(os.Stderr)
}

func (c Config) newLogger(w io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(level)
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}
	return log, nil
}
