package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"example.com/socialapi/internal/apperr"
	"example.com/socialapi/internal/models"
	"github.com/gocql/gocql"
	"golang.org/x/sync/errgroup"
)

// --- Follow operations ---

func (g *CassandraGraph) CreateFollow(ctx context.Context, followerID, followeeID string, at time.Time) (bool, error) {
	applied, err := g.Session.Query(`
		INSERT INTO follows_by_follower (follower_id, followee_id, created_at)
		VALUES (?, ?, ?) IF NOT EXISTS`,
		followerID, followeeID, at,
	).WithContext(ctx).MapScanCAS(make(map[string]interface{}))
	if err != nil {
		logg.Error("store", "Failed to create follow relationship", err)
		return false, fmt.Errorf("create follow: %w", err)
	}

	// The reverse row is written even when the edge existed so a previously
	// interrupted follow heals itself.
	if err := g.Session.Query(`
		INSERT INTO followers_by_followee (followee_id, follower_id, created_at)
		VALUES (?, ?, ?)`,
		followeeID, followerID, at,
	).WithContext(ctx).Exec(); err != nil {
		logg.Error("store", "Failed to index follower", err)
		return false, fmt.Errorf("create follow: %w", err)
	}
	return applied, nil
}

func (g *CassandraGraph) DeleteFollow(ctx context.Context, followerID, followeeID string) error {
	batch := g.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM follows_by_follower WHERE follower_id = ? AND followee_id = ?`, followerID, followeeID)
	batch.Query(`DELETE FROM followers_by_followee WHERE followee_id = ? AND follower_id = ?`, followeeID, followerID)

	if err := g.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to delete follow relationship", err)
		return fmt.Errorf("delete follow: %w", err)
	}
	return nil
}

func (g *CassandraGraph) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	var id string
	err := g.Session.Query(
		`SELECT followee_id FROM follows_by_follower WHERE follower_id = ? AND followee_id = ?`,
		followerID, followeeID,
	).WithContext(ctx).Scan(&id)
	if errors.Is(err, gocql.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// listColumn reads one text column of a partition, skipping offset rows.
// limit <= 0 reads everything.
func (g *CassandraGraph) listColumn(ctx context.Context, stmt, key string, offset, limit int) ([]string, error) {
	iter := g.Session.Query(stmt, key).WithContext(ctx).Iter()

	var id string
	var res []string
	skipped := 0
	for iter.Scan(&id) {
		if skipped < offset {
			skipped++
			continue
		}
		res = append(res, id)
		if limit > 0 && len(res) >= limit {
			break
		}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return res, nil
}

// ListFollowing is ordered by followee id, the table's clustering key.
func (g *CassandraGraph) ListFollowing(ctx context.Context, accountID string, offset, limit int) ([]string, error) {
	res, err := g.listColumn(ctx,
		`SELECT followee_id FROM follows_by_follower WHERE follower_id = ?`, accountID, offset, limit)
	if err != nil {
		logg.Error("store", "Failed to list following", err)
		return nil, err
	}
	return res, nil
}

func (g *CassandraGraph) ListFollowers(ctx context.Context, accountID string, offset, limit int) ([]string, error) {
	res, err := g.listColumn(ctx,
		`SELECT follower_id FROM followers_by_followee WHERE followee_id = ?`, accountID, offset, limit)
	if err != nil {
		logg.Error("store", "Failed to get followers", err)
		return nil, err
	}
	return res, nil
}

func (g *CassandraGraph) CountFollows(ctx context.Context, accountID string) (int64, int64, error) {
	var following, followers int64
	if err := g.Session.Query(
		`SELECT COUNT(*) FROM follows_by_follower WHERE follower_id = ?`, accountID,
	).WithContext(ctx).Scan(&following); err != nil {
		return 0, 0, err
	}
	if err := g.Session.Query(
		`SELECT COUNT(*) FROM followers_by_followee WHERE followee_id = ?`, accountID,
	).WithContext(ctx).Scan(&followers); err != nil {
		return 0, 0, err
	}
	return following, followers, nil
}

func (g *CassandraGraph) DeleteFollowsOf(ctx context.Context, accountID string) error {
	following, err := g.ListFollowing(ctx, accountID, 0, 0)
	if err != nil {
		return err
	}
	followers, err := g.ListFollowers(ctx, accountID, 0, 0)
	if err != nil {
		return err
	}

	batch := g.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	for _, id := range following {
		batch.Query(`DELETE FROM followers_by_followee WHERE followee_id = ? AND follower_id = ?`, id, accountID)
	}
	for _, id := range followers {
		batch.Query(`DELETE FROM follows_by_follower WHERE follower_id = ? AND followee_id = ?`, id, accountID)
	}
	batch.Query(`DELETE FROM follows_by_follower WHERE follower_id = ?`, accountID)
	batch.Query(`DELETE FROM followers_by_followee WHERE followee_id = ?`, accountID)

	if err := g.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to delete follow edges of account", err)
		return fmt.Errorf("delete follows: %w", err)
	}
	return nil
}

// --- Post operations ---

func (g *CassandraGraph) CreatePost(ctx context.Context, p models.Post) error {
	batch := g.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`
		INSERT INTO posts (post_id, author_id, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.AuthorID, p.Body, p.CreatedAt, p.UpdatedAt)
	batch.Query(`
		INSERT INTO posts_by_author (author_id, created_at, post_id, body, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.AuthorID, p.CreatedAt, p.ID, p.Body, p.UpdatedAt)

	if err := g.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to add post", err)
		return fmt.Errorf("create post: %w", err)
	}
	logg.Info("store", "Post added to posts table (post content anonymized)")
	return nil
}

func (g *CassandraGraph) GetPost(ctx context.Context, id string) (models.Post, error) {
	var p models.Post
	err := g.Session.Query(`
		SELECT post_id, author_id, body, created_at, updated_at
		FROM posts WHERE post_id = ?`, id,
	).WithContext(ctx).Scan(&p.ID, &p.AuthorID, &p.Body, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, gocql.ErrNotFound) {
		return p, apperr.NotFound("post %s not found", id)
	}
	if err != nil {
		return p, fmt.Errorf("get post: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = p.CreatedAt.UTC(), p.UpdatedAt.UTC()
	return p, nil
}

func (g *CassandraGraph) UpdatePost(ctx context.Context, p models.Post) error {
	cur, err := g.GetPost(ctx, p.ID)
	if err != nil {
		return err
	}

	batch := g.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`UPDATE posts SET body = ?, updated_at = ? WHERE post_id = ?`,
		p.Body, p.UpdatedAt, p.ID)
	batch.Query(`UPDATE posts_by_author SET body = ?, updated_at = ? WHERE author_id = ? AND created_at = ? AND post_id = ?`,
		p.Body, p.UpdatedAt, cur.AuthorID, cur.CreatedAt, p.ID)

	if err := g.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to update post", err)
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

func (g *CassandraGraph) DeletePost(ctx context.Context, id string) error {
	cur, err := g.GetPost(ctx, id)
	if err != nil {
		return err
	}

	batch := g.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM posts WHERE post_id = ?`, id)
	batch.Query(`DELETE FROM posts_by_author WHERE author_id = ? AND created_at = ? AND post_id = ?`,
		cur.AuthorID, cur.CreatedAt, id)

	if err := g.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to delete post", err)
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

func (g *CassandraGraph) CountPostsBy(ctx context.Context, authorID string) (int64, error) {
	var cnt int64
	err := g.Session.Query(
		`SELECT COUNT(*) FROM posts_by_author WHERE author_id = ?`, authorID,
	).WithContext(ctx).Scan(&cnt)
	return cnt, err
}

func (g *CassandraGraph) DeletePostsBy(ctx context.Context, authorID string) ([]string, error) {
	ids, err := g.listColumn(ctx,
		`SELECT post_id FROM posts_by_author WHERE author_id = ?`, authorID, 0, 0)
	if err != nil {
		return nil, err
	}

	batch := g.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	for _, id := range ids {
		batch.Query(`DELETE FROM posts WHERE post_id = ?`, id)
	}
	batch.Query(`DELETE FROM posts_by_author WHERE author_id = ?`, authorID)

	if err := g.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to delete posts of author", err)
		return nil, fmt.Errorf("delete posts: %w", err)
	}
	return ids, nil
}

// --- Feed ---

// authorPage reads up to limit posts of one author strictly after before.
func (g *CassandraGraph) authorPage(ctx context.Context, authorID string, before *models.FeedCursor, limit int) ([]models.Post, error) {
	var q *gocql.Query
	if before == nil {
		q = g.Session.Query(`
			SELECT post_id, author_id, body, created_at, updated_at
			FROM posts_by_author WHERE author_id = ? LIMIT ?`,
			authorID, limit)
	} else {
		q = g.Session.Query(`
			SELECT post_id, author_id, body, created_at, updated_at
			FROM posts_by_author WHERE author_id = ? AND (created_at, post_id) < (?, ?) LIMIT ?`,
			authorID, before.CreatedAt, before.PostID, limit)
	}
	iter := q.WithContext(ctx).Iter()

	var res []models.Post
	var p models.Post
	for iter.Scan(&p.ID, &p.AuthorID, &p.Body, &p.CreatedAt, &p.UpdatedAt) {
		p.CreatedAt, p.UpdatedAt = p.CreatedAt.UTC(), p.UpdatedAt.UTC()
		res = append(res, p)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return res, nil
}

// FeedPage reads one page per followed author concurrently and merges them.
func (g *CassandraGraph) FeedPage(ctx context.Context, followerID string, before *models.FeedCursor, limit int) ([]models.Post, error) {
	followees, err := g.ListFollowing(ctx, followerID, 0, 0)
	if err != nil {
		return nil, err
	}
	if len(followees) == 0 || limit <= 0 {
		return nil, nil
	}

	pages := make([][]models.Post, len(followees))
	eg, egCtx := errgroup.WithContext(ctx)
	fanout := g.Fanout
	if fanout <= 0 {
		fanout = 20
	}
	eg.SetLimit(fanout)
	for i, authorID := range followees {
		eg.Go(func() error {
			page, err := g.authorPage(egCtx, authorID, before, limit)
			if err != nil {
				return err
			}
			pages[i] = page
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		logg.Error("store", "Failed to retrieve user feed", err)
		return nil, fmt.Errorf("feed page: %w", err)
	}

	return mergeFeedPages(pages, limit), nil
}

func (g *CassandraGraph) PostsBy(ctx context.Context, authorID string, before *models.FeedCursor, limit int) ([]models.Post, error) {
	if limit <= 0 {
		return nil, nil
	}
	res, err := g.authorPage(ctx, authorID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("posts by author: %w", err)
	}
	return res, nil
}

// SearchPosts scans the posts table page by page and filters in memory;
// Cassandra has no substring index to push the match down to.
func (g *CassandraGraph) SearchPosts(ctx context.Context, query string, before *models.FeedCursor, limit int) ([]models.Post, error) {
	if limit <= 0 {
		return nil, nil
	}
	needle := strings.ToLower(query)
	iter := g.Session.Query(`
		SELECT post_id, author_id, body, created_at, updated_at FROM posts`,
	).WithContext(ctx).PageSize(500).Iter()

	var matches []models.Post
	var p models.Post
	for iter.Scan(&p.ID, &p.AuthorID, &p.Body, &p.CreatedAt, &p.UpdatedAt) {
		p.CreatedAt, p.UpdatedAt = p.CreatedAt.UTC(), p.UpdatedAt.UTC()
		if !strings.Contains(strings.ToLower(p.Body), needle) {
			continue
		}
		if before != nil && !before.Before(p) {
			continue
		}
		matches = append(matches, p)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	return mergeFeedPages([][]models.Post{matches}, limit), nil
}
