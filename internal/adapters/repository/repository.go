// Package repository opens the persistence backend that matches the
// deployment region.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/adapters/repository/mongodb"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/adapters/repository/postgres"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/domain"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/ports"
)

type Options struct {
	PostgresDSN   string
	MongoURI      string
	MongoDatabase string
	// Migrate applies the embedded Postgres migrations on open.
	Migrate bool
}

// Store bundles the repositories of one backend.
type Store struct {
	Users         ports.UserRepository
	RefreshTokens ports.RefreshTokenRepository

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

func (s *Store) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.close(ctx)
}

// Open picks Supabase (Postgres) for intl and CloudBase (MongoDB) for cn.
func Open(ctx context.Context, region domain.Region, opts Options) (*Store, error) {
	switch region {
	case domain.RegionINTL:
		return openPostgres(ctx, opts)
	case domain.RegionCN:
		return openMongo(ctx, opts)
	}
	return nil, fmt.Errorf("no store for region %q", region)
}

func openPostgres(ctx context.Context, opts Options) (*Store, error) {
	if opts.PostgresDSN == "" {
		return nil, errors.New("region intl requires a postgres dsn")
	}

	db, err := postgres.Open(ctx, opts.PostgresDSN)
	if err != nil {
		return nil, err
	}

	if opts.Migrate {
		if err := postgres.Migrate(ctx, db, "up"); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Store{
		Users:         postgres.NewUserRepository(db),
		RefreshTokens: postgres.NewRefreshTokenRepository(db),
		ping:          db.PingContext,
		close:         func(context.Context) error { return db.Close() },
	}, nil
}

func openMongo(ctx context.Context, opts Options) (*Store, error) {
	if opts.MongoURI == "" {
		return nil, errors.New("region cn requires a mongodb uri")
	}

	store, err := mongodb.Connect(ctx, opts.MongoURI, opts.MongoDatabase)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	return &Store{
		Users:         store.Users(),
		RefreshTokens: store.RefreshTokens(),
		ping:          store.Ping,
		close:         store.Close,
	}, nil
}

// NewStore wraps already constructed repositories, e.g. in-memory ones.
func NewStore(users ports.UserRepository, tokens ports.RefreshTokenRepository) *Store {
	return &Store{
		Users:         users,
		RefreshTokens: tokens,
		ping:          func(context.Context) error { return nil },
		close:         func(context.Context) error { return nil },
	}
}

