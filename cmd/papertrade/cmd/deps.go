package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rustyeddy/papertrade/broker/oanda"
	"github.com/rustyeddy/papertrade/explain"
	"github.com/rustyeddy/papertrade/lock"
	"github.com/rustyeddy/papertrade/store"
	"github.com/rustyeddy/papertrade/store/firestore"
	"github.com/rustyeddy/papertrade/store/memstore"
	"github.com/rustyeddy/papertrade/store/sqlite"
)

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Type {
	case "firestore":
		return firestore.New(ctx, firestore.Config{
			ProjectID:       cfg.Store.ProjectID,
			CredentialsFile: cfg.Store.CredentialsFile,
		})
	case "sqlite":
		return sqlite.New(cfg.Store.SQLitePath)
	case "memory":
		logger.Warn().Msg("using the in-memory store, nothing will be kept")
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
}

func newBroker() (*oanda.Client, error) {
	opts := []oanda.Option{oanda.WithHTTPClient(&http.Client{Timeout: cfg.OANDA.Timeout})}
	if cfg.OANDA.RateLimit > 0 {
		opts = append(opts, oanda.WithRateLimit(cfg.OANDA.RateLimit, 5))
	}
	return oanda.NewClient(cfg.OANDA.Env, cfg.OANDA.Token, cfg.OANDA.AccountID, opts...)
}

func newGenerator() (explain.Generator, error) {
	if cfg.Explain.Type == "template" {
		return explain.Template{}, nil
	}
	return explain.NewHTTP(cfg.Explain.APIKey,
		explain.WithEndpoint(cfg.Explain.Endpoint),
		explain.WithModel(cfg.Explain.Model),
		explain.WithHTTPClient(&http.Client{Timeout: cfg.Explain.Timeout}),
	)
}

// newLocker returns a Redis lock when redis.addr is set. The close func
// releases the connection.
func newLocker(ctx context.Context) (lock.Locker, func(), error) {
	if cfg.Redis.Addr == "" {
		return lock.Noop{}, func() {}, nil
	}
	rdb, err := lock.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	return lock.NewRedis(rdb), func() { _ = rdb.Close() }, nil
}
