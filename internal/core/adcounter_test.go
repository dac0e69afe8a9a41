package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdCounter_StartsAtOne(t *testing.T) {
	counter := NewAdCounter(newTestDatabase(t), 0)
	v, err := counter.Value(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, DefaultAdThreshold, counter.threshold)
}

func TestAdCounter_RegisterSaveShowsAdEveryThreshold(t *testing.T) {
	ctx := context.Background()
	counter := NewAdCounter(newTestDatabase(t), 5)

	var shown []int
	for save := 1; save <= 12; save++ {
		showAd, err := counter.RegisterSave(ctx)
		require.NoError(t, err)
		if showAd {
			shown = append(shown, save)
		}
	}
	assert.Equal(t, []int{5, 10}, shown)

	v, err := counter.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestAdCounter_IncrementAndReset(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	counter := NewAdCounter(db, 5)

	v, err := counter.Increment(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	stored, err := db.Get(ctx, adCounterKey)
	require.NoError(t, err)
	assert.Equal(t, "2", string(stored))

	require.NoError(t, counter.Reset(ctx))
	v, err = counter.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestAdCounter_InvalidStoredValue(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	require.NoError(t, db.Set(ctx, adCounterKey, []byte("many")))

	v, err := NewAdCounter(db, 5).Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestAdCounter_StoreFailure(t *testing.T) {
	db := newTestDatabase(t)
	db.failSet = true
	_, err := NewAdCounter(db, 5).RegisterSave(context.Background())
	require.Error(t, err)
}
