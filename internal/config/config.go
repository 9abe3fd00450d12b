package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/streamres/internal/errors"
	"github.com/vango-dev/streamres/internal/logging"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "streamres.yaml"

	// DefaultAddr is the default HTTP listen address.
	DefaultAddr = ":8080"

	// DefaultMetricsPath is where Prometheus metrics are served.
	DefaultMetricsPath = "/metrics"

	// DefaultRedisAddr is the default Redis server address.
	DefaultRedisAddr = "localhost:6379"

	// DefaultRegion is the default S3 region.
	DefaultRegion = "us-east-1"

	// DefaultKeep bounds append aggregation when a feed sets no keep.
	DefaultKeep = 100

	// EnvAddr overrides Server.Addr.
	EnvAddr = "STREAMRES_ADDR"

	// EnvLogLevel overrides Log.Level.
	EnvLogLevel = "STREAMRES_LOG_LEVEL"
)

// Feed kinds.
const (
	KindRedis     = "redis"
	KindWebsocket = "websocket"
	KindS3        = "s3"
	KindSequence  = "sequence"
)

// Aggregation modes.
const (
	AggregateAppend = "append"
	AggregateLast   = "last"
	AggregateCount  = "count"
)

// Config represents the complete streamres.yaml configuration.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Log contains logging configuration.
	Log LogConfig `yaml:"log"`

	// Redis is the connection used by redis feeds.
	Redis RedisConfig `yaml:"redis"`

	// S3 is the client configuration used by s3 feeds.
	S3 S3Config `yaml:"s3"`

	// Feeds are the resources served.
	Feeds []FeedConfig `yaml:"feeds"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr"`

	// Metrics enables the Prometheus endpoint. Defaults to true.
	Metrics *bool `yaml:"metrics"`

	// MetricsPath is the path of the Prometheus endpoint.
	MetricsPath string `yaml:"metrics_path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// S3Config contains S3 client settings.
type S3Config struct {
	Region string `yaml:"region"`

	// Endpoint overrides the service endpoint, e.g. for MinIO.
	Endpoint string `yaml:"endpoint"`
}

// FeedConfig describes one served resource.
type FeedConfig struct {
	// Name identifies the feed in URLs and metrics.
	Name string `yaml:"name"`

	// Kind selects the loader: redis, websocket, s3 or sequence.
	Kind string `yaml:"kind"`

	// Aggregate selects how responses are folded: append, last or count.
	Aggregate string `yaml:"aggregate"`

	// Keep bounds the append aggregation.
	Keep int `yaml:"keep"`

	// InitialRequest, if set, is issued when the feed starts.
	InitialRequest string `yaml:"initial_request"`

	// Options are kind specific; see DecodeOptions.
	Options map[string]any `yaml:"options"`
}

// RedisOptions are the options of a redis feed.
type RedisOptions struct {
	// Pattern subscribes with PSUBSCRIBE instead of SUBSCRIBE.
	Pattern bool `mapstructure:"pattern"`

	// Prefix is prepended to every requested channel.
	Prefix string `mapstructure:"prefix"`
}

// WebsocketOptions are the options of a websocket feed.
type WebsocketOptions struct {
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
}

// S3Options are the options of an s3 feed.
type S3Options struct {
	Bucket    string `mapstructure:"bucket"`
	PageSize  int32  `mapstructure:"page_size"`
	Delimiter string `mapstructure:"delimiter"`
}

// SequenceOptions are the options of a sequence feed.
type SequenceOptions struct {
	// Interval between values. Defaults to one second.
	Interval time.Duration `mapstructure:"interval"`

	// Count stops the sequence after that many values; 0 never stops.
	Count int `mapstructure:"count"`
}

// New creates a new Config with default values.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the specified directory.
// It looks for streamres.yaml in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path, applies
// defaults and environment overrides, and validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigUnreadable).
				WithDetail("No %s found in %s", ConfigFileName, filepath.Dir(path)).
				WithSuggestion("Create " + ConfigFileName + " or run without --config to use defaults")
		}
		return nil, errors.Wrap(errors.CodeConfigUnreadable, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.configPath = path
	return cfg, nil
}

// Parse decodes a YAML document, then applies defaults and environment
// overrides and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(errors.CodeConfigInvalid).
			Wrap(err).
			WithSuggestion("Check that " + ConfigFileName + " is valid YAML")
	}
	cfg.applyDefaults()
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	// Server
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.Metrics == nil {
		enabled := true
		c.Server.Metrics = &enabled
	}
	if c.Server.MetricsPath == "" {
		c.Server.MetricsPath = DefaultMetricsPath
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	// Backends
	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if c.S3.Region == "" {
		c.S3.Region = DefaultRegion
	}

	// Feeds
	for i := range c.Feeds {
		f := &c.Feeds[i]
		if f.Aggregate == "" {
			f.Aggregate = AggregateAppend
		}
		if f.Keep == 0 && f.Aggregate == AggregateAppend {
			f.Keep = DefaultKeep
		}
	}
}

// ApplyEnv applies environment overrides read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAddr); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var problems []string

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, fmt.Sprintf("log.level: unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format: must be text or json, got %q", c.Log.Format))
	}
	if !strings.HasPrefix(c.Server.MetricsPath, "/") {
		problems = append(problems, "server.metrics_path: must start with /")
	}

	seen := make(map[string]bool, len(c.Feeds))
	for i, f := range c.Feeds {
		at := fmt.Sprintf("feeds[%d]", i)
		if f.Name == "" {
			problems = append(problems, at+".name: required")
		} else if seen[f.Name] {
			problems = append(problems, fmt.Sprintf("%s.name: duplicate feed %q", at, f.Name))
		}
		seen[f.Name] = true

		switch f.Aggregate {
		case AggregateAppend, AggregateLast, AggregateCount:
		default:
			problems = append(problems, fmt.Sprintf("%s.aggregate: unknown mode %q", at, f.Aggregate))
		}
		if f.Keep < 0 {
			problems = append(problems, at+".keep: must not be negative")
		}

		switch f.Kind {
		case KindRedis:
			var o RedisOptions
			if err := DecodeOptions(f, &o); err != nil {
				problems = append(problems, fmt.Sprintf("%s.options: %v", at, err))
			}
		case KindWebsocket:
			var o WebsocketOptions
			if err := DecodeOptions(f, &o); err != nil {
				problems = append(problems, fmt.Sprintf("%s.options: %v", at, err))
			}
		case KindS3:
			var o S3Options
			if err := DecodeOptions(f, &o); err != nil {
				problems = append(problems, fmt.Sprintf("%s.options: %v", at, err))
			} else if o.Bucket == "" {
				problems = append(problems, at+".options.bucket: required for s3 feeds")
			}
		case KindSequence:
			var o SequenceOptions
			if err := DecodeOptions(f, &o); err != nil {
				problems = append(problems, fmt.Sprintf("%s.options: %v", at, err))
			}
		default:
			problems = append(problems, fmt.Sprintf("%s.kind: unknown kind %q", at, f.Kind))
		}
	}

	if len(problems) > 0 {
		return errors.New(errors.CodeConfigInvalid).
			WithDetail("%s", strings.Join(problems, "; "))
	}
	return nil
}

// MetricsEnabled reports whether the Prometheus endpoint is served.
func (c *Config) MetricsEnabled() bool {
	return c.Server.Metrics == nil || *c.Server.Metrics
}

// Feed returns the feed named name.
func (c *Config) Feed(name string) (FeedConfig, bool) {
	for _, f := range c.Feeds {
		if f.Name == name {
			return f, true
		}
	}
	return FeedConfig{}, false
}

// DecodeOptions decodes f.Options into out, a pointer to one of the
// *Options structs. Durations may be written as strings ("250ms"); unknown
// keys are rejected.
func DecodeOptions(f FeedConfig, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if f.Options == nil {
		return nil
	}
	return dec.Decode(f.Options)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}
