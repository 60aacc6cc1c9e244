package fxclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/fxtrail/fxclient/cache"
	"github.com/fxtrail/fxclient/credstore"
	"github.com/fxtrail/fxclient/internal/transport"
	"github.com/fxtrail/fxclient/notify"
	"github.com/fxtrail/fxclient/session"
	"github.com/fxtrail/fxclient/storage"
	"github.com/fxtrail/fxclient/storage/filestore"
	"github.com/fxtrail/fxclient/storage/memstore"
	"github.com/fxtrail/fxclient/storage/redisstore"
)

// Builder assembles a [Client]. Setters may be chained in any order; Build
// wires the components, rehydrates the persisted session, and is single-use.
type Builder struct {
	config     Config
	httpClient *http.Client
	store      storage.Store
	redis      redis.UniversalClient
	sink       notify.Sink
	logger     *slog.Logger

	built bool
}

// New returns a builder with default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBaseURL sets the backend root URL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithHTTPClient injects the HTTP client used for every call. The caller
// owns its timeout; Config.Timeout only applies to the default client.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithStorage injects the durable store for the persisted session record.
func (b *Builder) WithStorage(store storage.Store) *Builder {
	b.store = store
	return b
}

// WithRedis persists the session record in Redis instead of the default
// file store. Ignored when WithStorage is also set.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithNotifier wires the sink receiving user-facing notifications.
func (b *Builder) WithNotifier(sink notify.Sink) *Builder {
	b.sink = sink
	return b
}

// WithLogger sets the structured logger used for warnings.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the configuration, wires storage, session state, the
// credential cell, and the request pipeline, then rehydrates any persisted
// session so the client starts where the previous process stopped.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	b.built = true

	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	baseURL, err := url.Parse(b.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("fxclient: parse base URL: %w", err)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	store := b.store
	switch {
	case store != nil:
	case b.redis != nil:
		store = redisstore.New(b.redis)
	case b.config.Storage.FilePath != "":
		store = filestore.New(b.config.Storage.FilePath)
	default:
		store = memstore.New()
	}

	recordKey := b.config.Storage.RecordKey
	if recordKey == "" {
		recordKey = session.DefaultRecordKey
	}

	cell := credstore.New(recordFallback(store, recordKey, logger))
	sessions := session.NewManager(store, recordKey, cell.SetToken, logger)
	if err := sessions.Rehydrate(context.Background()); err != nil {
		return nil, fmt.Errorf("fxclient: rehydrate session: %w", err)
	}

	httpClient := b.httpClient
	if httpClient == nil {
		timeout := b.config.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	counters := &metrics{}
	refresher := &sessionRefresher{
		baseURL:  b.config.BaseURL,
		http:     httpClient,
		store:    store,
		key:      recordKey,
		sessions: sessions,
		logger:   logger,
	}
	pipeline := transport.NewPipeline(transport.Options{
		BaseURL:    baseURL,
		HTTPClient: httpClient,
		Tokens:     cell,
		Refresher:  refresher,
		Metrics:    counters,
		Logger:     logger,
		UserAgent:  b.config.UserAgent,
	})

	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		BufferSize: b.config.Notify.BufferSize,
		DropIfFull: b.config.Notify.DropIfFull,
	}, b.sink)

	return &Client{
		config:     b.config,
		logger:     logger,
		sessions:   sessions,
		cache:      cache.New(),
		dispatcher: dispatcher,
		pipeline:   pipeline,
		metrics:    counters,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// recordFallback reads the access token straight out of the persisted record
// for cold reads before rehydration has run. Any failure means "no token".
func recordFallback(store storage.Store, key string, logger *slog.Logger) credstore.Fallback {
	return func() string {
		raw, err := store.Get(context.Background(), key)
		if err != nil {
			return ""
		}
		var record session.Record
		if err := json.Unmarshal(raw, &record); err != nil {
			logger.Warn("fxclient: unreadable persisted record on cold token read")
			return ""
		}
		return record.AccessToken
	}
}
