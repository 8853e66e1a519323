package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/infrastructure/persistence/memory"
	pkgerrors "bookkeeper-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newNumberingFixture(t *testing.T, sequences map[string]SequenceConfig) *NumberingService {
	t.Helper()
	service := NewNumberingService(memory.NewSequenceStore(), sequences, zap.NewNop())
	service.now = func() time.Time {
		return time.Date(2024, time.March, 7, 12, 0, 0, 0, time.UTC)
	}
	return service
}

func TestNextNumberIncrements(t *testing.T) {
	service := newNumberingFixture(t, map[string]SequenceConfig{
		"invoice": {Template: "[INV]-####", IncrementTemplate: "####"},
	})
	ctx := context.Background()

	first, err := service.NextNumber(ctx, "invoice")
	require.NoError(t, err)
	assert.Equal(t, "INV-0001", first)

	second, err := service.NextNumber(ctx, "invoice")
	require.NoError(t, err)
	assert.Equal(t, "INV-0002", second)
}

func TestNextNumberUnknownSequence(t *testing.T) {
	service := newNumberingFixture(t, nil)

	_, err := service.NextNumber(context.Background(), "nope")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestPeekNumberDoesNotCommit(t *testing.T) {
	service := newNumberingFixture(t, map[string]SequenceConfig{
		"offer": {Template: "[OFF]-###", IncrementTemplate: "###"},
	})
	ctx := context.Background()

	peeked, err := service.PeekNumber(ctx, "offer")
	require.NoError(t, err)
	assert.Equal(t, "OFF-001", peeked)

	// Peeking did not advance the sequence.
	issued, err := service.NextNumber(ctx, "offer")
	require.NoError(t, err)
	assert.Equal(t, "OFF-001", issued)
}

func TestConcurrentIssuersNeverShareANumber(t *testing.T) {
	service := newNumberingFixture(t, map[string]SequenceConfig{
		"invoice": {Template: "[INV]-######", IncrementTemplate: "######"},
	})
	ctx := context.Background()

	const issuers = 16
	var wg sync.WaitGroup
	results := make(chan string, issuers)
	for i := 0; i < issuers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := service.NextNumber(ctx, "invoice")
			if err != nil {
				// Contention beyond the retry budget surfaces as Conflict,
				// which is acceptable; sharing a number is not.
				if !pkgerrors.IsConflict(err) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			results <- number
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for number := range results {
		assert.False(t, seen[number], "number %s issued twice", number)
		seen[number] = true
	}
	require.NotEmpty(t, seen)
}

func TestNextNumberSurfacesConflictAfterRetryBudget(t *testing.T) {
	store := &alwaysConflictingStore{}
	service := NewNumberingService(store, map[string]SequenceConfig{
		"invoice": {Template: "####", IncrementTemplate: "####"},
	}, zap.NewNop())

	_, err := service.NextNumber(context.Background(), "invoice")
	assert.True(t, pkgerrors.IsConflict(err))
	assert.Equal(t, maxSwapAttempts, store.attempts)
}

type alwaysConflictingStore struct {
	attempts int
}

func (s *alwaysConflictingStore) Last(ctx context.Context, sequence string) (string, error) {
	return "", nil
}

func (s *alwaysConflictingStore) CompareAndSwap(ctx context.Context, sequence, last, next string) error {
	s.attempts++
	return pkgerrors.NewConflictError("lost race")
}

var _ ports.SequenceStore = (*alwaysConflictingStore)(nil)
