package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/survey-cli/internal/blob"
	"github.com/sells-group/survey-cli/internal/service"
	"github.com/sells-group/survey-cli/internal/store"
)

// env bundles the wired dependencies a command needs.
type env struct {
	Data  store.DataStore
	Blobs *blob.LocalStore
	Svc   *service.Service
}

func (e *env) Close() {
	_ = e.Data.Close()
}

func initStore(ctx context.Context) (store.DataStore, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initEnv(ctx context.Context, mode string) (*env, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	data, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := data.Migrate(ctx); err != nil {
		data.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	blobs := blob.NewLocal(cfg.Blob.Root, cfg.Blob.BaseURL, cfg.Blob.Secret)
	svc := service.New(data, blobs, service.Config{
		OpenResponseCap: cfg.Report.OpenResponseCap,
		SignedURLTTL:    cfg.Export.SignedURLTTL(),
	})

	return &env{Data: data, Blobs: blobs, Svc: svc}, nil
}
