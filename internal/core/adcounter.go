package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/MabzGamesStudio/StorageLogger/internal/backend/database"
)

const (
	adCounterKey = "counterForAd"
	// DefaultAdThreshold is how many saves happen between two interstitial ads.
	DefaultAdThreshold = 5
)

// AdCounter counts entry saves towards the next interstitial ad. It starts at 1.
type AdCounter struct {
	mu        sync.Mutex
	database  database.DatabaseService
	threshold int
}

func NewAdCounter(db database.DatabaseService, threshold int) *AdCounter {
	if threshold <= 0 {
		threshold = DefaultAdThreshold
	}
	return &AdCounter{database: db, threshold: threshold}
}

// Value returns the persisted counter, or 1 if none is stored yet.
func (a *AdCounter) Value(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.value(ctx)
}

func (a *AdCounter) Increment(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, err := a.value(ctx)
	if err != nil {
		return 0, err
	}
	return v + 1, a.set(ctx, v+1)
}

func (a *AdCounter) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.set(ctx, 1)
}

// RegisterSave advances the counter for one save. Once the threshold is reached the
// counter goes back to 1 and showAd is true.
func (a *AdCounter) RegisterSave(ctx context.Context) (showAd bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, err := a.value(ctx)
	if err != nil {
		return false, err
	}
	if v >= a.threshold {
		return true, a.set(ctx, 1)
	}
	return false, a.set(ctx, v+1)
}

func (a *AdCounter) value(ctx context.Context) (int, error) {
	data, err := a.database.Get(ctx, adCounterKey)
	if errors.Is(err, database.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read ad counter: %w", err)
	}
	v, err := strconv.Atoi(string(data))
	if err != nil || v < 1 {
		slog.Warn("ad counter value is invalid, restarting at 1", "value", string(data))
		return 1, nil
	}
	return v, nil
}

func (a *AdCounter) set(ctx context.Context, v int) error {
	if err := a.database.Set(ctx, adCounterKey, []byte(strconv.Itoa(v))); err != nil {
		return fmt.Errorf("failed to store ad counter: %w", err)
	}
	return nil
}
