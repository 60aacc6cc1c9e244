package fxclient

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// DefaultTimeout applies uniformly to every outbound call unless overridden.
const DefaultTimeout = 30 * time.Second

// Config describes a Client. Instances are configured during initialization
// and treated as immutable after [Builder.Build].
type Config struct {
	// BaseURL is the backend root, e.g. "https://api.example.com/api/v1".
	BaseURL string
	// Timeout bounds every outbound call. Zero means [DefaultTimeout].
	Timeout time.Duration
	// UserAgent is sent on every request. Zero means a library default.
	UserAgent string

	Storage StorageConfig
	Notify  NotifyConfig
	Cache   CacheConfig
}

// StorageConfig controls the persisted session record.
type StorageConfig struct {
	// RecordKey is the durable-storage key for the session record.
	// Zero means the shared default the web clients also use.
	RecordKey string
	// FilePath backs the default file store when no store is injected.
	// Zero disables persistence (in-memory store).
	FilePath string
}

// NotifyConfig controls notification delivery.
type NotifyConfig struct {
	// BufferSize bounds queued notifications. Zero means 64.
	BufferSize int
	// DropIfFull drops rather than blocks when the queue is full.
	DropIfFull bool
	// ShowSuccess and ShowErrors gate default per-call behavior; individual
	// calls can still suppress either.
	ShowSuccess bool
	ShowErrors  bool
}

// CacheConfig controls the tag-indexed read cache.
type CacheConfig struct {
	// Disabled turns every query into a network round-trip.
	Disabled bool
}

func defaultConfig() Config {
	return Config{
		Timeout:   DefaultTimeout,
		UserAgent: "fxclient-go",
		Notify: NotifyConfig{
			BufferSize:  64,
			DropIfFull:  true,
			ShowSuccess: true,
			ShowErrors:  true,
		},
	}
}

// Validate reports configuration errors a Build must refuse.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("fxclient: BaseURL is required")
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return errors.New("fxclient: BaseURL must be an absolute URL")
	}
	if c.Timeout < 0 {
		return errors.New("fxclient: Timeout must not be negative")
	}
	if c.Notify.BufferSize < 0 {
		return errors.New("fxclient: Notify.BufferSize must not be negative")
	}
	return nil
}

type envConfig struct {
	BaseURL     string        `env:"FXCLIENT_API_URL,required"`
	Timeout     time.Duration `env:"FXCLIENT_TIMEOUT,default=30s"`
	UserAgent   string        `env:"FXCLIENT_USER_AGENT,default=fxclient-go"`
	RecordKey   string        `env:"FXCLIENT_RECORD_KEY"`
	StoragePath string        `env:"FXCLIENT_STORAGE_PATH"`
}

// ConfigFromEnv builds a Config from FXCLIENT_* environment variables, the
// deployment-style counterpart of code-first configuration. FXCLIENT_API_URL
// is required.
func ConfigFromEnv() (Config, error) {
	var env envConfig
	if err := envdecode.StrictDecode(&env); err != nil {
		return Config{}, err
	}

	cfg := defaultConfig()
	cfg.BaseURL = env.BaseURL
	cfg.Timeout = env.Timeout
	cfg.UserAgent = env.UserAgent
	cfg.Storage.RecordKey = env.RecordKey
	cfg.Storage.FilePath = env.StoragePath
	return cfg, cfg.Validate()
}
