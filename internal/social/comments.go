package social

import (
	"context"

	"example.com/socialapi/internal/access"
	"example.com/socialapi/internal/activity"
	"example.com/socialapi/internal/apperr"
	"example.com/socialapi/internal/models"
	"github.com/google/uuid"
)

const MaxCommentLength = 500

// Comment adds a comment by actorID to post postID and notifies the post's author.
func (s *Posts) Comment(ctx context.Context, actorID, postID, body string) (models.Comment, error) {
	p, err := s.graph.GetPost(ctx, postID)
	if err != nil {
		return models.Comment{}, err
	}
	clean, err := s.cleanText(body, "comment", MaxCommentLength)
	if err != nil {
		return models.Comment{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return models.Comment{}, err
	}
	at := s.now()
	c := models.Comment{
		ID:        id.String(),
		PostID:    p.ID,
		AuthorID:  actorID,
		Body:      clean,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := s.comments.CreateComment(ctx, c); err != nil {
		return models.Comment{}, err
	}
	publish(ctx, s.publisher, activity.NewEvent(models.EventComment, actorID, p.AuthorID, p.ID, at))
	return c, nil
}

// Comments lists the comments on post postID, oldest first. page starts at 1.
func (s *Posts) Comments(ctx context.Context, postID string, page, pageSize int) ([]models.Comment, error) {
	if _, err := s.graph.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	pageSize = min(pageSize, MaxPageSize)
	page = max(page, 1)
	list, err := s.comments.ListComments(ctx, postID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Comment{}
	}
	return list, nil
}

// comment loads commentID and checks that it belongs to postID.
func (s *Posts) comment(ctx context.Context, postID, commentID string) (models.Comment, error) {
	c, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		return models.Comment{}, err
	}
	if c.PostID != postID {
		return models.Comment{}, apperr.NotFound("comment %s not found", commentID)
	}
	return c, nil
}

// UpdateComment replaces the body of a comment. Only its author, or an
// account that may edit posts, can do this.
func (s *Posts) UpdateComment(ctx context.Context, actor access.Actor, postID, commentID, body string) (models.Comment, error) {
	c, err := s.comment(ctx, postID, commentID)
	if err != nil {
		return models.Comment{}, err
	}
	if err := s.authorize(actor, c.AuthorID, access.CanEdit); err != nil {
		return models.Comment{}, err
	}
	clean, err := s.cleanText(body, "comment", MaxCommentLength)
	if err != nil {
		return models.Comment{}, err
	}

	c.Body = clean
	c.UpdatedAt = s.now()
	if err := s.comments.UpdateComment(ctx, c); err != nil {
		return models.Comment{}, err
	}
	return c, nil
}

// DeleteComment removes a comment. Only its author, or an account that may
// delete posts, can do this.
func (s *Posts) DeleteComment(ctx context.Context, actor access.Actor, postID, commentID string) error {
	c, err := s.comment(ctx, postID, commentID)
	if err != nil {
		return err
	}
	if err := s.authorize(actor, c.AuthorID, access.CanDelete); err != nil {
		return err
	}
	return s.comments.DeleteComment(ctx, commentID)
}
