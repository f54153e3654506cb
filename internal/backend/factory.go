package backend

import (
	"context"
	"errors"
	"fmt"

	"orcamento/internal/events"
	"orcamento/internal/log"
	"orcamento/internal/storage"
)

// Factory builds a Result from Config.
type Factory struct {
	logger *log.Logger
	// dial opens the event publisher; replaced in tests.
	dial func(cfg Config, logger *log.Logger) (publisherCloser, error)
}

type publisherCloser interface {
	events.Publisher
	Close() error
}

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &Factory{
		logger: logger.WithComponent(log.ComponentBackend),
		dial: func(cfg Config, logger *log.Logger) (publisherCloser, error) {
			return events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		},
	}
}

// Create opens the document store selected by config.Type and, when an AMQP
// URL is set, the event publisher. A broker that cannot be reached is logged
// and replaced by a no-op publisher so the app still serves entries.
func (f *Factory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res     Result
		closers []func() error
	)

	switch config.Type {
	case SQLiteBackend:
		store, err := storage.NewSQLiteStore(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		res.Docs = store
		res.Ping = store.Ping
		closers = append(closers, store.Close)
	case FileBackend:
		store, err := storage.NewFileStore(config.DataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file store: %w", err)
		}
		res.Docs = store
	case MemoryBackend:
		res.Docs = storage.NewMemoryStore()
	}

	res.Publisher = events.NopPublisher{}
	eventsEnabled := false
	if config.AMQPURL != "" {
		client, err := f.dial(config, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without entry events",
				log.FieldError, err.Error())
		} else {
			res.Publisher = client
			eventsEnabled = true
			closers = append(closers, client.Close)
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	res.Cleanup = func() error {
		var errs []error
		// Close in reverse order of opening.
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	f.logger.InfoContext(ctx, "Initialized storage backend",
		log.FieldBackend, config.Type.String(),
		"events_enabled", eventsEnabled)

	return &res, nil
}
