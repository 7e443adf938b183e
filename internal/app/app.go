package app

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marksync/internal/config"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/redis"
)

// NewLogger builds the process logger, with a rotating file sink when configured.
func NewLogger(c config.Common) logger.Logger {
	var opts []logger.Option
	if c.LogFile != "" {
		opts = append(opts, logger.WithFile(c.LogFile, c.LogMaxSizeMB, c.LogMaxBackups))
	}
	return logger.New(c.LogLevel, c.PrettyLog, opts...)
}

// connectRedis fails fast when Redis stays unreachable for ConnectTimeout.
func connectRedis(ctx context.Context, r config.Redis, log logger.Logger) (*goredis.Client, error) {
	log.Infof("Connecting to Redis at %s", r.Addr)
	return redis.New(ctx, redis.ConnectOptions{
		Addr:           r.Addr,
		User:           r.User,
		Password:       r.Password,
		RedisDB:        r.DB,
		DialTimeout:    r.DialTimeout,
		ReadTimeout:    r.ReadTimeout,
		WriteTimeout:   r.WriteTimeout,
		PoolSize:       r.PoolSize,
		ConnectTimeout: r.ConnectTimeout,
		RetryInterval:  r.RetryInterval,
		MaxWait:        r.MaxWait,
		PingTimeout:    r.PingTimeout,
		WarnThreshold:  r.WarnThreshold,
	}, log)
}

func closeRedis(client *goredis.Client, log logger.Logger) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		log.Warnf("failed to close redis: %v", err)
	} else {
		log.Info("✅ Redis closed cleanly")
	}
}
