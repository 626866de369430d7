package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/switchlink/internal/config"
	"github.com/aretw0/switchlink/internal/logging"
	"github.com/aretw0/switchlink/pkg/adapters/memory"
	"github.com/aretw0/switchlink/pkg/adapters/redis"
	"github.com/aretw0/switchlink/pkg/persistence/middleware"
	"github.com/aretw0/switchlink/pkg/ports"
	"github.com/spf13/cobra"
)

// app holds the process wide collaborators built from the configuration.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	cache  ports.Cache
	redis  *redis.Cache
}

func loadApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	a := &app{cfg: cfg, logger: logger}

	var cache ports.Cache
	if cfg.Redis.Addr != "" {
		a.redis = redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if err := a.redis.Ping(ctx); err != nil {
			_ = a.redis.Close()
			return nil, fmt.Errorf("redis %s unreachable: %w", cfg.Redis.Addr, err)
		}
		cache = a.redis
		logger.Info("using redis cache", "addr", cfg.Redis.Addr)
	} else {
		cache = memory.NewCache()
		logger.Warn("no redis configured, using in-memory cache")
	}

	if cfg.Encryption.Key != "" {
		key, err := hex.DecodeString(cfg.Encryption.Key)
		if err != nil || len(key) != 32 {
			a.close()
			return nil, fmt.Errorf("encryption.key must be 64 hex characters")
		}
		cache = middleware.Chain(cache, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	a.cache = cache
	return a, nil
}

func (a *app) close() {
	if a.redis == nil {
		return
	}
	if err := a.redis.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close redis: %v\n", err)
	}
}
