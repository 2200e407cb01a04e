package searcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filescout/filescout/internal/storage"
	"github.com/filescout/filescout/pkg/types"
)

func TestDebouncerDeliversAfterQuietPeriod(t *testing.T) {
	store := &fakeStore{fulltext: []storage.Hit{hit(1, "/d/a.txt", "debounced term")}}
	d := NewDebouncer(New(store, nil), 10*time.Millisecond)

	matches, ok, err := d.Search(context.Background(), "debounced", "", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, matches, 1)
}

func TestDebouncerSupersededCallYieldsNothing(t *testing.T) {
	store := &fakeStore{fulltext: []storage.Hit{hit(1, "/d/a.txt", "term one two")}}
	d := NewDebouncer(New(store, nil), 50*time.Millisecond)

	type outcome struct {
		matches []types.SearchMatch
		ok      bool
		err     error
	}
	first := make(chan outcome, 1)

	go func() {
		matches, ok, err := d.Search(context.Background(), "one", "", "")
		first <- outcome{matches, ok, err}
	}()

	// Give the first call time to arm its timer, then supersede it.
	time.Sleep(10 * time.Millisecond)
	matches, ok, err := d.Search(context.Background(), "two", "", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, matches, 1)

	got := <-first
	require.NoError(t, got.err)
	assert.False(t, got.ok)
	assert.Empty(t, got.matches)
}

func TestDebouncerCallerCancellation(t *testing.T) {
	store := &fakeStore{}
	d := NewDebouncer(New(store, nil), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, ok, err := d.Search(ctx, "abandoned", "", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDebouncerDefaultDelay(t *testing.T) {
	d := NewDebouncer(New(&fakeStore{}, nil), 0)
	assert.Equal(t, DefaultDebounce, d.delay)
}
