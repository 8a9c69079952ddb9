package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/NgigiN/momo-wallet/internal/category"
	"github.com/NgigiN/momo-wallet/internal/config"
	"github.com/NgigiN/momo-wallet/internal/ledger"
	"github.com/NgigiN/momo-wallet/internal/logger"
	"github.com/NgigiN/momo-wallet/internal/offline"
	"github.com/NgigiN/momo-wallet/internal/storage"
	"github.com/NgigiN/momo-wallet/internal/storage/postgres"
)

// app holds what every subcommand needs.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	service *ledger.Service
	closers []func() error
}

func setup(ctx context.Context) (*app, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	a := &app{cfg: cfg, log: logger.New(cfg.LogLevel)}

	store, err := a.openStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	dict := category.DefaultDictionary
	if cfg.KeywordsFile != "" {
		if dict, err = category.LoadDictionary(cfg.KeywordsFile); err != nil {
			a.close()
			return nil, err
		}
	}

	var queue *offline.Queue
	if cfg.Offline.Enabled {
		if queue, err = offline.Open(cfg.Offline.Path); err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, queue.Close)
	}

	a.service = ledger.NewService(store, category.NewEngine(dict), queue, a.log)
	return a, nil
}

func (a *app) openStore(ctx context.Context) (ledger.Store, error) {
	switch a.cfg.Database.Driver {
	case "postgres":
		db, err := postgres.New(a.cfg.Database.ConnectionString())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}
		a.log.Info().Str("host", a.cfg.Database.Host).Str("db", a.cfg.Database.DBName).Msg("connected to postgres")
		return postgres.NewStore(db), nil
	default:
		db, err := storage.NewDatabase(a.cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize the database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		return db, nil
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Error().Err(err).Msg("failed to close resource")
		}
	}
	a.closers = nil
}

func (a *app) userID(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.DefaultUserID
}
