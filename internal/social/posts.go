package social

import (
	"context"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"example.com/socialapi/internal/access"
	"example.com/socialapi/internal/activity"
	"example.com/socialapi/internal/apperr"
	appkafka "example.com/socialapi/internal/broker"
	"example.com/socialapi/internal/metrics"
	"example.com/socialapi/internal/models"
	"example.com/socialapi/internal/store"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

const MaxPostLength = 1000

// Posts manages the post lifecycle, likes and comments.
type Posts struct {
	graph     store.GraphStore
	likes     store.LikeStore
	comments  store.CommentStore
	publisher appkafka.Publisher
	policy    *access.Policy
	metrics   metrics.Recorder
	sanitizer *bluemonday.Policy
	now       func() time.Time
}

func NewPosts(st *store.Stores, pub appkafka.Publisher, policy *access.Policy, rec metrics.Recorder) *Posts {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Posts{
		graph:     st.Graph,
		likes:     st.Likes,
		comments:  st.Comments,
		publisher: pub,
		policy:    policy,
		metrics:   rec,
		sanitizer: bluemonday.StrictPolicy(),
		now:       now,
	}
}

// PostView is a post plus its like count.
type PostView struct {
	models.Post
	Likes int64 `json:"likes"`
}

// cleanText strips markup and keeps the plain text. The sanitizer escapes
// what it keeps, so the result is unescaped before it is measured.
func (s *Posts) cleanText(text, what string, maxLen int) (string, error) {
	text = strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
	if n := utf8.RuneCountInString(text); n == 0 || n > maxLen {
		return "", apperr.Validation("%s must be 1-%d characters", what, maxLen)
	}
	return text, nil
}

func (s *Posts) cleanBody(body string) (string, error) {
	return s.cleanText(body, "post body", MaxPostLength)
}

// Create stores a new post by authorID. HTML is stripped from body.
func (s *Posts) Create(ctx context.Context, authorID, body string) (models.Post, error) {
	clean, err := s.cleanBody(body)
	if err != nil {
		return models.Post{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return models.Post{}, err
	}
	at := s.now()
	p := models.Post{
		ID:        id.String(),
		AuthorID:  authorID,
		Body:      clean,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := s.graph.CreatePost(ctx, p); err != nil {
		return models.Post{}, err
	}
	return p, nil
}

func (s *Posts) Get(ctx context.Context, id string) (PostView, error) {
	p, err := s.graph.GetPost(ctx, id)
	if err != nil {
		return PostView{}, err
	}
	n, err := s.likes.CountLikes(ctx, id)
	if err != nil {
		return PostView{}, err
	}
	return PostView{Post: p, Likes: n}, nil
}

// authorize lets the author through, anyone else needs c on posts.
func (s *Posts) authorize(actor access.Actor, authorID string, c access.Capability) error {
	if authorID == actor.AccountID {
		return nil
	}
	if err := s.policy.Authorize(actor, access.ResourcePost, c); err != nil {
		s.metrics.RecordPermissionDenied(string(access.ResourcePost), c.String())
		return err
	}
	return nil
}

// Update replaces the body of post id. The author never changes.
func (s *Posts) Update(ctx context.Context, actor access.Actor, id, body string) (models.Post, error) {
	p, err := s.graph.GetPost(ctx, id)
	if err != nil {
		return models.Post{}, err
	}
	if err := s.authorize(actor, p.AuthorID, access.CanEdit); err != nil {
		return models.Post{}, err
	}
	clean, err := s.cleanBody(body)
	if err != nil {
		return models.Post{}, err
	}

	p.Body = clean
	p.UpdatedAt = s.now()
	if err := s.graph.UpdatePost(ctx, p); err != nil {
		return models.Post{}, err
	}
	return p, nil
}

// Delete removes post id with its likes and comments.
func (s *Posts) Delete(ctx context.Context, actor access.Actor, id string) error {
	p, err := s.graph.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(actor, p.AuthorID, access.CanDelete); err != nil {
		return err
	}
	if err := s.graph.DeletePost(ctx, id); err != nil {
		return err
	}
	if err := s.comments.DeleteCommentsOnPosts(ctx, []string{id}); err != nil {
		return err
	}
	return s.likes.DeleteLikesOnPosts(ctx, []string{id})
}

// Like records that actorID likes post id. Liking twice is rejected.
func (s *Posts) Like(ctx context.Context, actorID, id string) error {
	p, err := s.graph.GetPost(ctx, id)
	if err != nil {
		return err
	}
	at := s.now()
	created, err := s.likes.CreateLike(ctx, actorID, id, at)
	if err != nil {
		return err
	}
	if !created {
		return apperr.Validation("you have already liked this post")
	}
	publish(ctx, s.publisher, activity.NewEvent(models.EventLike, actorID, p.AuthorID, p.ID, at))
	return nil
}

// Unlike removes actorID's like from post id.
func (s *Posts) Unlike(ctx context.Context, actorID, id string) error {
	if _, err := s.graph.GetPost(ctx, id); err != nil {
		return err
	}
	removed, err := s.likes.DeleteLike(ctx, actorID, id)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.Validation("you have not liked this post")
	}
	return nil
}
