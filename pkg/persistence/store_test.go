package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/switchlink/pkg/adapters/memory"
	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/aretw0/switchlink/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := memory.NewCache(memory.WithClock(func() time.Time { return now }))
	store := persistence.NewStore[domain.TransferState](cache, "transferModel", persistence.WithTTL(time.Hour))

	rec := &domain.TransferState{}
	rec.CurrentState = "quoteReceived"
	rec.TransferID = "t1"
	rec.To = domain.TransferParty{IDType: "MSISDN", IDValue: "123", DateOfBirth: "1990-01-01"}
	rec.Prepare = &domain.TransferPrepare{TransferID: "t1", IlpPacket: "AYIB", Condition: "c"}
	rec.Requests = map[string]*domain.Ack{"quote": {Method: "POST", URL: "/quotes", StatusCode: 202}}

	require.NoError(t, store.Save(ctx, "t1", rec))

	loaded, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, rec, loaded)

	ui, err := store.LoadUI(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "quoteReceived", ui["currentState"])
	assert.Nil(t, ui["requests"])
	assert.Nil(t, ui["prepare"].(map[string]any)["ilpPacket"])
	assert.Equal(t, "***", ui["to"].(map[string]any)["dateOfBirth"])

	// Primary expires, display copy stays.
	now = now.Add(2 * time.Hour)
	_, err = store.Load(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrNoCachedData)
	_, err = store.LoadUI(ctx, "t1")
	assert.NoError(t, err)
}

func TestStore_LoadMissing(t *testing.T) {
	store := persistence.NewStore[domain.BulkQuoteState](memory.NewCache(), "bulkQuoteModel")
	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNoCachedData)
}

func TestStore_WithoutUICopy(t *testing.T) {
	ctx := context.Background()
	cache := memory.NewCache()
	store := persistence.NewStore[domain.BulkQuoteState](cache, "bulkQuoteModel", persistence.WithoutUICopy())

	require.NoError(t, store.Save(ctx, "b1", &domain.BulkQuoteState{}))
	_, err := cache.Get(ctx, "bulkQuoteModelUI_b1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_Snapshot(t *testing.T) {
	store := persistence.NewStore[domain.TransferState](memory.NewCache(), "transferModel")
	rec := &domain.TransferState{Requests: map[string]*domain.Ack{"x": {}}}
	rec.TransferID = "t9"

	snap := store.Snapshot(rec)
	assert.Equal(t, "t9", snap["transferId"])
	assert.Nil(t, snap["requests"])
}
