// Package social implements the follow graph, feed assembly, posts and comments.
package social

import (
	"context"
	"iter"
	"strings"
	"time"
	"unicode/utf8"

	"example.com/socialapi/internal/activity"
	"example.com/socialapi/internal/apperr"
	appkafka "example.com/socialapi/internal/broker"
	"example.com/socialapi/internal/logger"
	"example.com/socialapi/internal/metrics"
	"example.com/socialapi/internal/models"
	"example.com/socialapi/internal/store"
	"go.uber.org/zap"
)

var logg = logger.New()

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// now is millisecond precision, the finest both graph backends keep.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Graph manages follow edges and assembles feeds on read.
type Graph struct {
	accounts  store.AccountStore
	graph     store.GraphStore
	publisher appkafka.Publisher
	metrics   metrics.Recorder
	pageSize  int
	now       func() time.Time
}

// NewGraph builds a Graph. pageSize is the size of the pages Feed pulls from the store.
func NewGraph(st *store.Stores, pub appkafka.Publisher, rec metrics.Recorder, pageSize int) *Graph {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Graph{
		accounts:  st.Accounts,
		graph:     st.Graph,
		publisher: pub,
		metrics:   rec,
		pageSize:  pageSize,
		now:       now,
	}
}

func (g *Graph) requireAccount(ctx context.Context, id string) error {
	ok, err := g.accounts.AccountExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("account %s not found", id)
	}
	return nil
}

// Follow makes actorID follow targetID. Following twice is a no-op.
func (g *Graph) Follow(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return apperr.Validation("you cannot follow yourself")
	}
	if err := g.requireAccount(ctx, targetID); err != nil {
		return err
	}

	at := g.now()
	created, err := g.graph.CreateFollow(ctx, actorID, targetID, at)
	if err != nil {
		return err
	}
	g.metrics.RecordFollow(created)
	if created {
		publish(ctx, g.publisher, activity.NewEvent(models.EventFollow, actorID, targetID, "", at))
	}
	return nil
}

// Unfollow removes the edge actorID -> targetID if it exists.
func (g *Graph) Unfollow(ctx context.Context, actorID, targetID string) error {
	if err := g.requireAccount(ctx, targetID); err != nil {
		return err
	}
	if actorID == targetID {
		return nil
	}
	if err := g.graph.DeleteFollow(ctx, actorID, targetID); err != nil {
		return err
	}
	g.metrics.RecordUnfollow()
	return nil
}

func (g *Graph) IsFollowing(ctx context.Context, actorID, targetID string) (bool, error) {
	return g.graph.IsFollowing(ctx, actorID, targetID)
}

// Feed yields every post by accounts actorID follows, newest first. Pages are
// fetched lazily; ranging over the result again starts from the newest post.
func (g *Graph) Feed(ctx context.Context, actorID string) iter.Seq2[models.Post, error] {
	return func(yield func(models.Post, error) bool) {
		var before *Cursor
		for {
			page, err := g.graph.FeedPage(ctx, actorID, before, g.pageSize)
			if err != nil {
				yield(models.Post{}, err)
				return
			}
			for _, p := range page {
				if !yield(p, nil) {
					return
				}
			}
			if len(page) < g.pageSize {
				return
			}
			last := page[len(page)-1]
			before = &Cursor{CreatedAt: last.CreatedAt, PostID: last.ID}
		}
	}
}

// FeedPage returns one page of actorID's feed strictly after before.
func (g *Graph) FeedPage(ctx context.Context, actorID string, before *Cursor, limit int) (FeedPage, error) {
	limit = g.limit(limit)
	posts, err := g.graph.FeedPage(ctx, actorID, before, limit)
	if err != nil {
		return FeedPage{}, err
	}
	g.metrics.RecordFeedRead(len(posts))
	return newPage(posts, limit), nil
}

// PostsBy returns one page of authorID's own posts, newest first.
func (g *Graph) PostsBy(ctx context.Context, authorID string, before *Cursor, limit int) (FeedPage, error) {
	if err := g.requireAccount(ctx, authorID); err != nil {
		return FeedPage{}, err
	}
	limit = g.limit(limit)
	posts, err := g.graph.PostsBy(ctx, authorID, before, limit)
	if err != nil {
		return FeedPage{}, err
	}
	return newPage(posts, limit), nil
}

// MaxQueryLength bounds search terms.
const MaxQueryLength = 100

// Search returns one page of posts whose text contains query, ignoring case.
func (g *Graph) Search(ctx context.Context, query string, before *Cursor, limit int) (FeedPage, error) {
	query = strings.TrimSpace(query)
	if n := utf8.RuneCountInString(query); n == 0 || n > MaxQueryLength {
		return FeedPage{}, apperr.Validation("search query must be 1-%d characters", MaxQueryLength)
	}
	limit = g.limit(limit)
	posts, err := g.graph.SearchPosts(ctx, query, before, limit)
	if err != nil {
		return FeedPage{}, err
	}
	return newPage(posts, limit), nil
}

func (g *Graph) limit(limit int) int {
	if limit <= 0 {
		limit = g.pageSize
	}
	return min(limit, MaxPageSize)
}

// newPage sets Next when the page is full and more posts may follow.
func newPage(posts []models.Post, limit int) FeedPage {
	page := FeedPage{Posts: posts}
	if page.Posts == nil {
		page.Posts = []models.Post{}
	}
	if len(posts) == limit {
		last := posts[len(posts)-1]
		page.Next = &Cursor{CreatedAt: last.CreatedAt, PostID: last.ID}
	}
	return page
}

// ListFollowing returns the ids accountID follows. page starts at 1.
func (g *Graph) ListFollowing(ctx context.Context, accountID string, page, pageSize int) ([]string, error) {
	if err := g.requireAccount(ctx, accountID); err != nil {
		return nil, err
	}
	offset, limit := g.window(page, pageSize)
	return g.graph.ListFollowing(ctx, accountID, offset, limit)
}

// ListFollowers returns the ids following accountID. page starts at 1.
func (g *Graph) ListFollowers(ctx context.Context, accountID string, page, pageSize int) ([]string, error) {
	if err := g.requireAccount(ctx, accountID); err != nil {
		return nil, err
	}
	offset, limit := g.window(page, pageSize)
	return g.graph.ListFollowers(ctx, accountID, offset, limit)
}

func (g *Graph) window(page, pageSize int) (offset, limit int) {
	if pageSize <= 0 {
		pageSize = g.pageSize
	}
	pageSize = min(pageSize, MaxPageSize)
	page = max(page, 1)
	return (page - 1) * pageSize, pageSize
}

// publish delivers ev and only logs failures: notifications are not part of
// the action that triggered them.
func publish(ctx context.Context, pub appkafka.Publisher, ev models.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, ev); err != nil {
		logg.Error("social", "Failed to publish activity event", err, zap.String("type", ev.Type))
	}
}
