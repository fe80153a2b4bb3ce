package store

import (
	"context"
	"fmt"

	"example.com/socialapi/internal/apperr"
	"example.com/socialapi/internal/models"
)

// --- Comments ---

func (s *SQLStore) CreateComment(ctx context.Context, c models.Comment) error {
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func (s *SQLStore) GetComment(ctx context.Context, id string) (models.Comment, error) {
	var c models.Comment
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error
	return c, notFound(err, "comment %s not found", id)
}

func (s *SQLStore) UpdateComment(ctx context.Context, c models.Comment) error {
	res := s.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", c.ID).
		Updates(map[string]any{"body": c.Body, "updated_at": c.UpdatedAt})
	if res.Error != nil {
		return fmt.Errorf("update comment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("comment %s not found", c.ID)
	}
	return nil
}

func (s *SQLStore) DeleteComment(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Comment{})
	if res.Error != nil {
		return fmt.Errorf("delete comment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("comment %s not found", id)
	}
	return nil
}

func (s *SQLStore) ListComments(ctx context.Context, postID string, offset, limit int) ([]models.Comment, error) {
	var res []models.Comment
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at").Order("id").
		Offset(offset).Limit(limit).
		Find(&res).Error
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return res, nil
}

func (s *SQLStore) DeleteCommentsOnPosts(ctx context.Context, postIDs []string) error {
	if len(postIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("post_id IN ?", postIDs).Delete(&models.Comment{}).Error
}

func (s *SQLStore) DeleteCommentsBy(ctx context.Context, accountID string) error {
	return s.db.WithContext(ctx).Where("author_id = ?", accountID).Delete(&models.Comment{}).Error
}
