package models

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/switchlink/pkg/adapters/memory"
	"github.com/aretw0/switchlink/pkg/correlation"
	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_RunBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestTimeout = 10 * time.Second
	assert.Equal(t, 60*time.Second, cfg.RunBudget())

	cfg.MultiplePartiesResponse = true
	cfg.MultiplePartiesResponseWindow = 5 * time.Second
	assert.Equal(t, 65*time.Second, cfg.RunBudget())

	cfg = Config{}
	assert.Equal(t, maxCorrelatedWaits*correlation.DefaultTimeout, cfg.RunBudget())
}

func TestStores_ApplyRecordTTL(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	cache := memory.NewCache(memory.WithClock(clock))
	cfg := DefaultConfig()
	cfg.RecordTTL = time.Minute
	env := NewEnv(cache, nil, cfg)
	ctx := context.Background()

	stores := map[string]struct {
		save func() error
		load func() error
	}{
		"transfer": {
			save: func() error { return TransferStore(env).Save(ctx, "r1", &domain.TransferState{}) },
			load: func() error { _, err := TransferStore(env).Load(ctx, "r1"); return err },
		},
		"bulk quote": {
			save: func() error { return BulkQuoteStore(env).Save(ctx, "r1", &domain.BulkQuoteState{}) },
			load: func() error { _, err := BulkQuoteStore(env).Load(ctx, "r1"); return err },
		},
		"bulk transfer": {
			save: func() error { return BulkTransferStore(env).Save(ctx, "r1", &domain.BulkTransferState{}) },
			load: func() error { _, err := BulkTransferStore(env).Load(ctx, "r1"); return err },
		},
		"request to pay": {
			save: func() error { return RequestToPayStore(env).Save(ctx, "r1", &domain.RequestToPayState{}) },
			load: func() error { _, err := RequestToPayStore(env).Load(ctx, "r1"); return err },
		},
	}
	for name, s := range stores {
		require.NoError(t, s.save(), name)
		require.NoError(t, s.load(), name)
	}

	mu.Lock()
	now = now.Add(time.Minute + time.Second)
	mu.Unlock()

	for name, s := range stores {
		assert.ErrorIs(t, s.load(), domain.ErrNoCachedData, name)
	}
	_, err := TransferStore(env).LoadUI(ctx, "r1")
	assert.ErrorIs(t, err, domain.ErrNoCachedData, "display copy expires with the record")
}
