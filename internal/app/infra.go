package app

import (
	"context"
	"errors"
	"fmt"

	"gitlab-portal/internal/config"
	"gitlab-portal/internal/db"
	"gitlab-portal/internal/logger"
	"gitlab-portal/internal/redis"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/gorm"
)

// Infra holds the backing services. Redis and Mongo are only connected
// when the configuration selects them.
type Infra struct {
	DB    *gorm.DB
	Redis *redis.Client
	Mongo *mongo.Client
}

func setupInfra(ctx context.Context, cfg *config.Config) (*Infra, error) {
	infra := &Infra{}

	gdb, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	infra.DB = gdb

	if err := db.Migrate(ctx, gdb); err != nil {
		_ = infra.Close(ctx)
		return nil, err
	}

	logger.Info("database ready", map[string]any{
		"driver": cfg.Database.Driver,
	})

	if cfg.Session.Store == "redis" {
		redisClient, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			_ = infra.Close(ctx)
			return nil, err
		}
		infra.Redis = redisClient

		logger.Info("redis ready", map[string]any{
			"addr": cfg.Redis.Addr,
		})
	}

	if cfg.Snippets.Store == "mongo" {
		mongoClient, err := connectMongo(ctx, cfg.Snippets.MongoURI)
		if err != nil {
			_ = infra.Close(ctx)
			return nil, err
		}
		infra.Mongo = mongoClient

		logger.Info("mongo ready", map[string]any{
			"database": cfg.Snippets.MongoDatabase,
		})
	}

	return infra, nil
}

func connectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// Close releases every connected backend.
func (i *Infra) Close(ctx context.Context) error {
	var errs []error
	if i.Mongo != nil {
		errs = append(errs, i.Mongo.Disconnect(ctx))
	}
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	if i.DB != nil {
		errs = append(errs, db.Close(i.DB))
	}
	return errors.Join(errs...)
}
