package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreUnknownSession(t *testing.T) {
	store := NewMemoryStore(time.Hour)

	st, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, State{}, st)
}

func TestMemoryStoreUpdate(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	st, err := store.Update(ctx, "s1", func(st *State) error {
		st.Question = "What is the main conclusion?"
		st.File = &File{Name: "report.pdf", Type: "application/pdf", Size: 3, Data: []byte("pdf")}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "What is the main conclusion?", st.Question)
	assert.False(t, st.UpdatedAt.IsZero())

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, st, got)

	other, err := store.Get(ctx, "s2")
	require.NoError(t, err)
	assert.Nil(t, other.File, "sessions must not leak into each other")
}

func TestMemoryStoreUpdateAbort(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()
	_, err := store.Update(ctx, "s1", func(st *State) error {
		st.Answer = "kept"
		return nil
	})
	require.NoError(t, err)

	errBusy := errors.New("busy")
	_, err = store.Update(ctx, "s1", func(st *State) error {
		st.Answer = "dropped"
		return errBusy
	})
	assert.ErrorIs(t, err, errBusy)

	got, _ := store.Get(ctx, "s1")
	assert.Equal(t, "kept", got.Answer)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := store.Update(ctx, "s1", func(st *State) error {
		st.Answer = "a"
		return nil
	})
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	got, _ := store.Get(ctx, "s1")
	assert.Equal(t, "a", got.Answer)

	now = now.Add(time.Second)
	got, _ = store.Get(ctx, "s1")
	assert.Equal(t, State{}, got)
}

func TestMemoryStoreSweepsAbandonedSessions(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := range 100 {
		_, err := store.Update(ctx, fmt.Sprintf("abandoned-%d", i), func(st *State) error {
			st.File = &File{Name: "big.pdf", Type: "application/pdf", Size: 1 << 20, Data: make([]byte, 1<<20)}
			return nil
		})
		require.NoError(t, err)
	}
	require.Len(t, store.entries, 100)

	now = now.Add(30 * time.Minute)
	_, err := store.Update(ctx, "recent", func(st *State) error {
		st.Answer = "a"
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, store.entries, 101, "nothing has expired yet")

	now = now.Add(24 * time.Hour)
	_, err = store.Update(ctx, "fresh", func(st *State) error {
		st.Answer = "b"
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, store.entries, 1)
	got, _ := store.Get(ctx, "fresh")
	assert.Equal(t, "b", got.Answer)
}

func TestMemoryStoreNoTTL(t *testing.T) {
	store := NewMemoryStore(0)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := store.Update(ctx, "s1", func(st *State) error {
		st.Answer = "a"
		return nil
	})
	require.NoError(t, err)

	now = now.Add(24 * 365 * time.Hour)
	got, _ := store.Get(ctx, "s1")
	assert.Equal(t, "a", got.Answer)
}

func TestMemoryStoreDeleteAndClose(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()
	for _, id := range []string{"s1", "s2"} {
		_, err := store.Update(ctx, id, func(st *State) error {
			st.Answer = id
			return nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, store.Delete(ctx, "s1"))
	got, _ := store.Get(ctx, "s1")
	assert.Equal(t, State{}, got)

	require.NoError(t, store.Close())
	got, _ = store.Get(ctx, "s2")
	assert.Equal(t, State{}, got)
}

// Only one of many concurrent check-and-set updates may win the loading flag.
func TestMemoryStoreUpdateIsAtomic(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()
	errLoading := errors.New("loading")

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "s1", func(st *State) error {
				if st.Loading {
					return errLoading
				}
				st.Loading = true
				return nil
			})
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}
