package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/switchlink/internal/config"
	"github.com/aretw0/switchlink/internal/logging"
	"github.com/aretw0/switchlink/pkg/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardLockOutlivesRun(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := config.Default()
	cfg.DFSPID = "payerfsp"
	cfg.RequestTimeoutSeconds = 60
	a := &app{cfg: cfg, logger: logging.NewNop(), redis: redis.New(mr.Addr(), "", 0)}
	defer a.close()
	a.cache = a.redis

	err = a.guard().WithLock(context.Background(), "t1", func(context.Context) error {
		ttl := mr.TTL("switchlink:lock:t1")
		assert.Equal(t, cfg.Models().RunBudget()+lockMargin, ttl)
		assert.Greater(t, ttl, 6*time.Minute)
		return nil
	})
	require.NoError(t, err)
}
