package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func humanTurn(content string) domain.Turn {
	return domain.Turn{Role: domain.TurnHuman, Content: content, Timestamp: time.Now().UTC()}
}

func TestAppendAndLoad_SlidingWindow(t *testing.T) {
	ctx := context.Background()
	s := NewStore(10, time.Hour)

	for i := 1; i <= 12; i++ {
		require.NoError(t, s.Append(ctx, "sess", humanTurn(fmt.Sprintf("turn-%d", i))))
	}

	turns, err := s.Load(ctx, "sess")
	require.NoError(t, err)
	require.Len(t, turns, 10)
	require.Equal(t, "turn-3", turns[0].Content)
	require.Equal(t, "turn-12", turns[9].Content)
}

func TestLoad_FewerAppendsThanWindow(t *testing.T) {
	ctx := context.Background()
	s := NewStore(10, time.Hour)
	for i := 1; i <= 4; i++ {
		require.NoError(t, s.Append(ctx, "sess", humanTurn(fmt.Sprintf("turn-%d", i))))
	}
	turns, err := s.Load(ctx, "sess")
	require.NoError(t, err)
	require.Len(t, turns, 4)
	require.Equal(t, "turn-1", turns[0].Content)
	require.Equal(t, "turn-4", turns[3].Content)
}

func TestLoad_AbsentSessionIsEmptyNotError(t *testing.T) {
	turns, err := NewStore(10, time.Hour).Load(context.Background(), "nope")
	require.NoError(t, err)
	require.Empty(t, turns)
}

func TestTTL_RefreshOnAppendNotOnRead(t *testing.T) {
	ctx := context.Background()
	s := NewStore(10, time.Hour)
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Append(ctx, "sess", humanTurn("one")))

	// Reads must not extend the session's life.
	now = now.Add(30 * time.Minute)
	_, err := s.Load(ctx, "sess")
	require.NoError(t, err)
	info, err := s.Info(ctx, "sess")
	require.NoError(t, err)
	require.True(t, info.Exists)
	require.Equal(t, 30*time.Minute, info.TTL)

	// A second append resets the TTL relative to its own time.
	require.NoError(t, s.Append(ctx, "sess", humanTurn("two")))
	info, err = s.Info(ctx, "sess")
	require.NoError(t, err)
	require.Equal(t, time.Hour, info.TTL)

	// Past expiry the session is gone.
	now = now.Add(time.Hour + time.Second)
	turns, err := s.Load(ctx, "sess")
	require.NoError(t, err)
	require.Empty(t, turns)
}

func TestInfo_DoesNotMutate(t *testing.T) {
	ctx := context.Background()
	s := NewStore(10, time.Hour)
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Append(ctx, "sess", humanTurn("one")))
	now = now.Add(10 * time.Minute)

	for i := 0; i < 3; i++ {
		info, err := s.Info(ctx, "sess")
		require.NoError(t, err)
		require.True(t, info.Exists)
		require.Equal(t, 1, info.TurnCount)
		require.Equal(t, 50*time.Minute, info.TTL)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := NewStore(10, time.Hour)
	require.NoError(t, s.Append(ctx, "sess", humanTurn("one")))

	removed, err := s.Clear(ctx, "sess")
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = s.Clear(ctx, "sess")
	require.NoError(t, err)
	require.False(t, removed)
}

func TestListSessions(t *testing.T) {
	ctx := context.Background()
	s := NewStore(10, time.Hour)
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(t, s.Append(ctx, id, humanTurn("hi")))
	}

	ids, err := s.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "bravo", "charlie"}, ids)

	ids, err = s.ListSessions(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "bravo"}, ids)
}

func TestConcurrentAppends_SameSession(t *testing.T) {
	ctx := context.Background()
	s := NewStore(50, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Append(ctx, "sess", humanTurn(fmt.Sprintf("turn-%d", i)))
		}(i)
	}
	wg.Wait()

	turns, err := s.Load(ctx, "sess")
	require.NoError(t, err)
	require.Len(t, turns, 20)
}

func TestSweep_RemovesExpired(t *testing.T) {
	ctx := context.Background()
	s := NewStore(10, time.Hour)
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Append(ctx, "old", humanTurn("hi")))
	now = now.Add(30 * time.Minute)
	require.NoError(t, s.Append(ctx, "fresh", humanTurn("hi")))
	now = now.Add(45 * time.Minute)

	require.Equal(t, 1, s.sweep())
	ids, err := s.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"fresh"}, ids)
}
