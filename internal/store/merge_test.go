package store

import (
	"context"
	"testing"
	"time"

	"example.com/socialapi/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeFeedPages(t *testing.T) {
	b := []models.Post{
		{ID: "b2", CreatedAt: t0.Add(3 * time.Second)},
		{ID: "b1", CreatedAt: t0.Add(1 * time.Second)},
	}
	c := []models.Post{
		{ID: "c2", CreatedAt: t0.Add(3 * time.Second)},
		{ID: "c1", CreatedAt: t0.Add(2 * time.Second)},
	}

	merged := mergeFeedPages([][]models.Post{b, nil, c}, 3)
	assert.Equal(t, []string{"c2", "b2", "c1"}, postIDs(merged))

	assert.Empty(t, mergeFeedPages(nil, 5))
}

func TestMockStore_FeedPageMatchesSQLOrdering(t *testing.T) {
	m := NewMock()
	ctx := context.Background()
	_, _ = m.CreateFollow(ctx, "a", "b", t0)
	require.NoError(t, m.CreatePost(ctx, models.Post{ID: "p1", AuthorID: "b", CreatedAt: t0}))
	require.NoError(t, m.CreatePost(ctx, models.Post{ID: "p2", AuthorID: "b", CreatedAt: t0}))
	require.NoError(t, m.CreatePost(ctx, models.Post{ID: "p3", AuthorID: "c", CreatedAt: t0}))

	page, err := m.FeedPage(ctx, "a", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, postIDs(page))

	page, err = m.FeedPage(ctx, "a", &models.FeedCursor{CreatedAt: t0, PostID: "p2"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, postIDs(page))
}

func TestMockStoreFail(t *testing.T) {
	m := NewMockFail()
	_, err := m.CreateFollow(context.Background(), "a", "b", t0)
	assert.Error(t, err)
	_, err = m.Stores().Graph.FeedPage(context.Background(), "a", nil, 1)
	assert.Error(t, err)
}
