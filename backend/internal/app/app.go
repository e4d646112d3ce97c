package app

import (
	"context"
	"fmt"

	"promptlib-go-app/backend/internal/config"
	promptdomain "promptlib-go-app/backend/internal/domain/prompt"
	statsdomain "promptlib-go-app/backend/internal/domain/stats"
	userdomain "promptlib-go-app/backend/internal/domain/user"
	"promptlib-go-app/backend/internal/infra/client"
	appLogger "promptlib-go-app/backend/internal/infra/logger"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Resources 聚合应用运行所需的外部资源。
// 本地模式下 Redis 可能为 nil，各组件需自行兜底。
type Resources struct {
	Config config.RuntimeConfig
	DB     *gorm.DB
	Redis  *redis.Client
}

// Bootstrap 加载配置并初始化数据库、Redis 等基础资源。
func Bootstrap(ctx context.Context) (*Resources, error) {
	config.LoadEnvFiles()
	if _, err := appLogger.Init(); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := config.LoadRuntimeConfig()
	log := appLogger.S().With("component", "app.bootstrap")

	var (
		db  *gorm.DB
		err error
	)
	if cfg.Mode == config.ModeLocal {
		db, err = client.NewSQLiteDB(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		log.Infow("using local sqlite database", "path", cfg.SQLitePath)
	} else {
		db, err = client.NewMySQLDB(cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		log.Infow("mysql connected")
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&userdomain.User{},
		&promptdomain.Prompt{},
		&promptdomain.Upvote{},
		&statsdomain.DailyStat{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Mode == config.ModeOnline {
		redisOpts, err := client.NewDefaultRedisOptions()
		if err != nil {
			log.Warnw("redis not configured, falling back to in-memory stores", "error", err)
		} else {
			redisClient, err = client.NewRedisClient(redisOpts)
			if err != nil {
				return nil, fmt.Errorf("connect redis: %w", err)
			}
			log.Infow("redis connected", "host", redisOpts.Host, "port", redisOpts.Port)
		}
	}

	return &Resources{
		Config: cfg,
		DB:     db,
		Redis:  redisClient,
	}, nil
}

// Close 释放底层连接。
func (r *Resources) Close() error {
	if r == nil {
		return nil
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			return err
		}
	}
	if r.DB != nil {
		return client.CloseDB(r.DB)
	}
	return nil
}
