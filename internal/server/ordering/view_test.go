package ordering

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func summaries(ids ...int64) []*models.ConversationSummary {
	out := make([]*models.ConversationSummary, 0, len(ids))
	for i, id := range ids {
		out = append(out, &models.ConversationSummary{ID: id, CreatedAt: t0.Add(-time.Duration(i) * time.Minute)})
	}
	return out
}

func ids(list []*models.ConversationSummary) []int64 {
	out := make([]int64, 0, len(list))
	for _, s := range list {
		out = append(out, s.ID)
	}
	return out
}

func TestView_ListLoadsOnceThenCaches(t *testing.T) {
	var calls int32
	v := NewView(func(ctx context.Context, userID int64) ([]*models.ConversationSummary, error) {
		atomic.AddInt32(&calls, 1)
		return summaries(1, 2, 3), nil
	})

	for i := 0; i < 3; i++ {
		list, err := v.List(context.Background(), 7)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3}, ids(list))
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestView_ListLoadError(t *testing.T) {
	v := NewView(func(ctx context.Context, userID int64) ([]*models.ConversationSummary, error) {
		return nil, errors.New("down")
	})
	_, err := v.List(context.Background(), 1)
	assert.Error(t, err)
}

func TestView_TouchMovesToHead(t *testing.T) {
	v := NewView(func(ctx context.Context, userID int64) ([]*models.ConversationSummary, error) {
		return summaries(1, 2, 3), nil
	})
	_, err := v.List(context.Background(), 7)
	require.NoError(t, err)

	p := &models.Preview{Sequence: 1, Content: "hi", CreatedAt: t0.Add(time.Hour)}
	v.Touch(7, Update{ConversationID: 3, Preview: p})

	list, err := v.List(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, ids(list))
	require.NotNil(t, list[0].Preview)
	assert.Equal(t, "hi", list[0].Preview.Content)
	assert.Equal(t, t0.Add(time.Hour), list[0].LastActivity)
}

func TestView_TouchNeverRegressesPreview(t *testing.T) {
	v := NewView(func(ctx context.Context, userID int64) ([]*models.ConversationSummary, error) {
		return summaries(1, 2), nil
	})
	_, _ = v.List(context.Background(), 7)

	v.Touch(7, Update{ConversationID: 2, Preview: &models.Preview{Sequence: 5, Content: "new"}})
	v.Touch(7, Update{ConversationID: 1, Preview: &models.Preview{Sequence: 1, Content: "other"}})
	v.Touch(7, Update{ConversationID: 2, Preview: &models.Preview{Sequence: 4, Content: "stale"}})

	list, _ := v.List(context.Background(), 7)
	assert.Equal(t, []int64{1, 2}, ids(list))
	assert.Equal(t, "new", list[1].Preview.Content)
}

func TestView_TouchInsertsNewConversation(t *testing.T) {
	v := NewView(func(ctx context.Context, userID int64) ([]*models.ConversationSummary, error) {
		return summaries(1), nil
	})
	_, _ = v.List(context.Background(), 7)

	v.Touch(7, Update{ConversationID: 9, Summary: &models.ConversationSummary{ID: 9, Name: "team", CreatedAt: t0.Add(time.Hour)}})

	list, _ := v.List(context.Background(), 7)
	assert.Equal(t, []int64{9, 1}, ids(list))
	assert.Equal(t, "team", list[0].Name)
}

func TestView_TouchUnknownWithoutSummaryInvalidates(t *testing.T) {
	var calls int32
	v := NewView(func(ctx context.Context, userID int64) ([]*models.ConversationSummary, error) {
		atomic.AddInt32(&calls, 1)
		return summaries(1), nil
	})
	_, _ = v.List(context.Background(), 7)

	v.Touch(7, Update{ConversationID: 42, Preview: &models.Preview{Sequence: 1}})
	_, _ = v.List(context.Background(), 7)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestView_RemoveAndInvalidate(t *testing.T) {
	var calls int32
	v := NewView(func(ctx context.Context, userID int64) ([]*models.ConversationSummary, error) {
		atomic.AddInt32(&calls, 1)
		return summaries(1, 2), nil
	})
	_, _ = v.List(context.Background(), 7)

	v.Remove(7, 1)
	list, _ := v.List(context.Background(), 7)
	assert.Equal(t, []int64{2}, ids(list))

	v.Invalidate(7)
	list, _ = v.List(context.Background(), 7)
	assert.Equal(t, []int64{1, 2}, ids(list))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestView_LoadRacingTouchIsNotCached(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32

	v := NewView(func(ctx context.Context, userID int64) ([]*models.ConversationSummary, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-release
		}
		return summaries(1, 2), nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = v.List(context.Background(), 7)
	}()

	<-started
	v.Touch(7, Update{ConversationID: 2, Preview: &models.Preview{Sequence: 1}})
	close(release)
	<-done

	_, _ = v.List(context.Background(), 7)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "stale load must not be cached")
}

func TestView_ReturnsCopies(t *testing.T) {
	v := NewView(func(ctx context.Context, userID int64) ([]*models.ConversationSummary, error) {
		return summaries(1), nil
	})
	list, _ := v.List(context.Background(), 7)
	list[0].Name = "mutated"

	again, _ := v.List(context.Background(), 7)
	assert.Empty(t, again[0].Name)
}

func TestView_Concurrent(t *testing.T) {
	v := NewView(func(ctx context.Context, userID int64) ([]*models.ConversationSummary, error) {
		return summaries(1, 2, 3), nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uid := int64(i % 4)
			for j := 0; j < 50; j++ {
				_, _ = v.List(context.Background(), uid)
				v.Touch(uid, Update{ConversationID: int64(j%3 + 1), Preview: &models.Preview{Sequence: int64(j)}})
				if j%10 == 0 {
					v.Invalidate(uid)
				}
			}
		}(i)
	}
	wg.Wait()

	for uid := int64(0); uid < 4; uid++ {
		list, err := v.List(context.Background(), uid)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{1, 2, 3}, ids(list))
	}
}
