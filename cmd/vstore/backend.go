package main

import (
	"context"
	"database/sql"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/vango-dev/vstore/internal/config"
	"github.com/vango-dev/vstore/pkg/persist"
)

// openBackend connects the snapshot backend selected by cfg. The returned
// cleanup releases the connection behind it. A nil store means persistence
// is off.
func openBackend(ctx context.Context, cfg *config.Config) (persist.SnapshotStore, func(), error) {
	nop := func() {}
	pc := cfg.Persist

	switch pc.Backend {
	case "", config.BackendNone:
		return nil, nop, nil

	case config.BackendMemory:
		return persist.NewMemoryStore(), nop, nil

	case config.BackendFile:
		fs, err := persist.NewFileStore(cfg.SnapshotDir())
		if err != nil {
			return nil, nop, err
		}
		return fs, nop, nil

	case config.BackendRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    pc.Redis.Addrs,
			Password: pc.Redis.Password,
			DB:       pc.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nop, fmt.Errorf("redis: %w", err)
		}
		opts := []persist.RedisStoreOption{persist.WithRedisTTL(cfg.RedisTTL())}
		if pc.Redis.Prefix != "" {
			opts = append(opts, persist.WithRedisPrefix(pc.Redis.Prefix))
		}
		return persist.NewRedisStore(persist.NewGoRedisClient(client), opts...), func() { client.Close() }, nil

	case config.BackendPostgres:
		db, err := sql.Open("postgres", pc.Postgres.DSN)
		if err != nil {
			return nil, nop, fmt.Errorf("postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nop, fmt.Errorf("postgres: %w", err)
		}
		st := persist.NewSQLStore(db,
			persist.WithSQLDialect(persist.DialectPostgreSQL),
			persist.WithSQLTableName(pc.Postgres.Table),
		)
		if pc.Postgres.CreateTable {
			if err := st.CreateTable(ctx); err != nil {
				db.Close()
				return nil, nop, err
			}
		}
		return st, func() { db.Close() }, nil

	case config.BackendS3:
		var opts []func(*awsconfig.LoadOptions) error
		if pc.S3.Region != "" {
			opts = append(opts, awsconfig.WithRegion(pc.S3.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, nop, fmt.Errorf("s3: %w", err)
		}
		return persist.NewS3Store(s3.NewFromConfig(awsCfg), pc.S3.Bucket, pc.S3.Prefix), nop, nil

	case config.BackendNATS:
		nc, err := nats.Connect(pc.NATS.URL, nats.MaxReconnects(3))
		if err != nil {
			return nil, nop, fmt.Errorf("nats: %w", err)
		}
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, nop, fmt.Errorf("nats: %w", err)
		}
		kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:  pc.NATS.Bucket,
			Storage: jetstream.FileStorage,
		})
		if err != nil {
			nc.Close()
			return nil, nop, fmt.Errorf("nats: %w", err)
		}
		return persist.NewKVStore(kv), func() { nc.Close() }, nil
	}

	return nil, nop, fmt.Errorf("unknown persist backend %q", pc.Backend)
}
