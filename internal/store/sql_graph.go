package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"example.com/socialapi/internal/apperr"
	"example.com/socialapi/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Follow operations ---

func (s *SQLStore) CreateFollow(ctx context.Context, followerID, followeeID string, at time.Time) (bool, error) {
	f := &models.Follow{FollowerID: followerID, FolloweeID: followeeID, CreatedAt: at}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(f)
	if res.Error != nil {
		logg.Error("store", "Failed to create follow relationship", res.Error)
		return false, fmt.Errorf("create follow: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *SQLStore) DeleteFollow(ctx context.Context, followerID, followeeID string) error {
	err := s.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{}).Error
	if err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	return nil
}

func (s *SQLStore) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	var cnt int64
	if err := s.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (s *SQLStore) ListFollowing(ctx context.Context, accountID string, offset, limit int) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", accountID).
		Order("created_at DESC").Order("followee_id").
		Offset(offset).Limit(limit).
		Pluck("followee_id", &ids).Error
	return ids, err
}

func (s *SQLStore) ListFollowers(ctx context.Context, accountID string, offset, limit int) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("followee_id = ?", accountID).
		Order("created_at DESC").Order("follower_id").
		Offset(offset).Limit(limit).
		Pluck("follower_id", &ids).Error
	return ids, err
}

func (s *SQLStore) CountFollows(ctx context.Context, accountID string) (int64, int64, error) {
	var following, followers int64
	db := s.db.WithContext(ctx).Model(&models.Follow{})
	if err := db.Where("follower_id = ?", accountID).Count(&following).Error; err != nil {
		return 0, 0, err
	}
	db = s.db.WithContext(ctx).Model(&models.Follow{})
	if err := db.Where("followee_id = ?", accountID).Count(&followers).Error; err != nil {
		return 0, 0, err
	}
	return following, followers, nil
}

func (s *SQLStore) DeleteFollowsOf(ctx context.Context, accountID string) error {
	return s.db.WithContext(ctx).
		Where("follower_id = ? OR followee_id = ?", accountID, accountID).
		Delete(&models.Follow{}).Error
}

// --- Post operations ---

func (s *SQLStore) CreatePost(ctx context.Context, p models.Post) error {
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		logg.Error("store", "Failed to add post", err)
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

func (s *SQLStore) GetPost(ctx context.Context, id string) (models.Post, error) {
	var p models.Post
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error
	return p, notFound(err, "post %s not found", id)
}

func (s *SQLStore) UpdatePost(ctx context.Context, p models.Post) error {
	res := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", p.ID).
		Updates(map[string]any{"body": p.Body, "updated_at": p.UpdatedAt})
	if res.Error != nil {
		return fmt.Errorf("update post: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("post %s not found", p.ID)
	}
	return nil
}

func (s *SQLStore) DeletePost(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Post{})
	if res.Error != nil {
		return fmt.Errorf("delete post: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("post %s not found", id)
	}
	return nil
}

func (s *SQLStore) CountPostsBy(ctx context.Context, authorID string) (int64, error) {
	var cnt int64
	err := s.db.WithContext(ctx).Model(&models.Post{}).Where("author_id = ?", authorID).Count(&cnt).Error
	return cnt, err
}

func (s *SQLStore) DeletePostsBy(ctx context.Context, authorID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Post{}).Where("author_id = ?", authorID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		return tx.Where("author_id = ?", authorID).Delete(&models.Post{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("delete posts: %w", err)
	}
	return ids, nil
}

// FeedPage is a live join of follows and posts; nothing is materialised per reader.
func (s *SQLStore) FeedPage(ctx context.Context, followerID string, before *models.FeedCursor, limit int) ([]models.Post, error) {
	q := s.db.WithContext(ctx).
		Model(&models.Post{}).
		Select("posts.*").
		Joins("JOIN follows ON follows.followee_id = posts.author_id").
		Where("follows.follower_id = ?", followerID)

	res, err := postPage(q, before, limit)
	if err != nil {
		logg.Error("store", "Failed to retrieve user feed", err)
		return nil, fmt.Errorf("feed page: %w", err)
	}
	return res, nil
}

func (s *SQLStore) PostsBy(ctx context.Context, authorID string, before *models.FeedCursor, limit int) ([]models.Post, error) {
	q := s.db.WithContext(ctx).Model(&models.Post{}).Where("posts.author_id = ?", authorID)
	res, err := postPage(q, before, limit)
	if err != nil {
		return nil, fmt.Errorf("posts by author: %w", err)
	}
	return res, nil
}

func (s *SQLStore) SearchPosts(ctx context.Context, query string, before *models.FeedCursor, limit int) ([]models.Post, error) {
	q := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("LOWER(posts.body) LIKE ?", "%"+strings.ToLower(query)+"%")
	res, err := postPage(q, before, limit)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	return res, nil
}

// postPage applies the feed keyset order to q.
func postPage(q *gorm.DB, before *models.FeedCursor, limit int) ([]models.Post, error) {
	if before != nil {
		q = q.Where("(posts.created_at < ? OR (posts.created_at = ? AND posts.id < ?))",
			before.CreatedAt, before.CreatedAt, before.PostID)
	}
	var res []models.Post
	err := q.Order("posts.created_at DESC").Order("posts.id DESC").
		Limit(limit).
		Find(&res).Error
	return res, err
}
