package concepts

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeViewStore struct {
	mu     sync.Mutex
	counts map[uuid.UUID]int
	err    error
}

func (f *fakeViewStore) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = make(map[uuid.UUID]int)
	}
	f.counts[id]++
	return nil
}

func TestPlaybackEndedIncrements(t *testing.T) {
	store := &fakeViewStore{}
	r := NewViewRecorder(store, zap.NewNop())
	id := uuid.New()

	r.PlaybackEnded(context.Background(), id)
	if got := store.counts[id]; got != 1 {
		t.Fatalf("view count: want=1 got=%d", got)
	}
}

func TestPlaybackEndedConcurrentPlaysAllCount(t *testing.T) {
	store := &fakeViewStore{}
	r := NewViewRecorder(store, zap.NewNop())
	id := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.PlaybackEnded(context.Background(), id)
		}()
	}
	wg.Wait()

	// Atomic server-side increment: no lost updates under concurrency.
	if got := store.counts[id]; got != 10 {
		t.Fatalf("view count: want=10 got=%d", got)
	}
}

func TestPlaybackEndedSwallowsFailure(t *testing.T) {
	store := &fakeViewStore{err: errors.New("store down")}
	r := NewViewRecorder(store, zap.NewNop())

	// Must not panic or propagate; failure is logged only.
	r.PlaybackEnded(context.Background(), uuid.New())
}
