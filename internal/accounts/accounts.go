// Package accounts handles registration, login, profiles, account deletion
// and group membership.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/socialapi/internal/access"
	"example.com/socialapi/internal/apperr"
	"example.com/socialapi/internal/auth"
	"example.com/socialapi/internal/logger"
	"example.com/socialapi/internal/models"
	"example.com/socialapi/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var logg = logger.New()

// DeletePolicy decides what happens to an account's posts when it is deleted.
type DeletePolicy string

const (
	DeleteCascade  DeletePolicy = "cascade"
	DeleteRestrict DeletePolicy = "restrict"
)

// ParseDeletePolicy accepts "cascade" or "restrict".
func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch p := DeletePolicy(s); p {
	case DeleteCascade, DeleteRestrict:
		return p, nil
	default:
		return "", fmt.Errorf("unknown account delete policy %q", s)
	}
}

type Service struct {
	stores        *store.Stores
	accounts      store.AccountStore
	memberships   store.MembershipStore
	graph         store.GraphStore
	notifications store.NotificationStore

	tokens       *auth.Tokens
	policy       *access.Policy
	defaultGroup string
	deletePolicy DeletePolicy

	validate *validator.Validate
	now      func() time.Time
}

type Options struct {
	DefaultGroup string
	DeletePolicy DeletePolicy
}

func NewService(st *store.Stores, tokens *auth.Tokens, policy *access.Policy, opts Options) *Service {
	if opts.DeletePolicy == "" {
		opts.DeletePolicy = DeleteCascade
	}
	return &Service{
		stores:        st,
		accounts:      st.Accounts,
		memberships:   st.Memberships,
		graph:         st.Graph,
		notifications: st.Notifications,
		tokens:        tokens,
		policy:        policy,
		defaultGroup:  opts.DefaultGroup,
		deletePolicy:  opts.DeletePolicy,
		validate:      newValidator(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=1,max=50,username"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Bio      string `json:"bio" validate:"max=500"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateInput changes only the fields that are set.
type UpdateInput struct {
	Email *string `json:"email" validate:"omitempty,email,max=254"`
	Bio   *string `json:"bio" validate:"omitempty,max=500"`
}

// Session is returned by Register and Login.
type Session struct {
	Account models.Account `json:"account"`
	Token   string         `json:"token"`
}

// Register creates an account in the default group and signs it in. The
// account and its membership are stored together or not at all.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	if err := s.validate.Struct(in); err != nil {
		return Session{}, validationError(err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Session{}, err
	}
	now := s.now()
	a := models.Account{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		Bio:          in.Bio,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.stores.Atomic(ctx, func(tx *store.Stores) error {
		if err := tx.Accounts.CreateAccount(ctx, &a); err != nil {
			return err
		}
		if s.defaultGroup == "" {
			return nil
		}
		if err := tx.Memberships.AddMembership(ctx, a.ID, s.defaultGroup); err != nil {
			return fmt.Errorf("join default group: %w", err)
		}
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	logg.Info("accounts", "Account registered with account_id="+a.ID)

	token, err := s.tokens.Issue(a.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Account: a, Token: token}, nil
}

// Login checks credentials and issues a token.
func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	if err := s.validate.Struct(in); err != nil {
		return Session{}, validationError(err)
	}

	a, err := s.accounts.GetAccountByUsername(ctx, in.Username)
	var nf *apperr.NotFoundError
	if errors.As(err, &nf) {
		return Session{}, apperr.Authentication("invalid username or password")
	}
	if err != nil {
		return Session{}, err
	}

	ok, err := auth.CheckPassword(a.PasswordHash, in.Password)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, apperr.Authentication("invalid username or password")
	}

	token, err := s.tokens.Issue(a.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Account: a, Token: token}, nil
}

// Logout revokes the token the claims were parsed from.
func (s *Service) Logout(ctx context.Context, claims *auth.Claims) error {
	return s.tokens.Revoke(ctx, claims)
}

// Profile is an account with its graph counters.
type Profile struct {
	models.Account
	Following int64    `json:"following_count"`
	Followers int64    `json:"followers_count"`
	Posts     int64    `json:"posts_count"`
	Groups    []string `json:"groups"`
}

func (s *Service) Profile(ctx context.Context, id string) (Profile, error) {
	a, err := s.accounts.GetAccount(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	following, followers, err := s.graph.CountFollows(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	posts, err := s.graph.CountPostsBy(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	groups, err := s.memberships.GroupsOf(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	if groups == nil {
		groups = []string{}
	}
	return Profile{Account: a, Following: following, Followers: followers, Posts: posts, Groups: groups}, nil
}

// Update applies in to account id.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (models.Account, error) {
	if err := s.validate.Struct(in); err != nil {
		return models.Account{}, validationError(err)
	}
	a, err := s.accounts.GetAccount(ctx, id)
	if err != nil {
		return models.Account{}, err
	}
	if in.Email != nil {
		a.Email = *in.Email
	}
	if in.Bio != nil {
		a.Bio = *in.Bio
	}
	a.UpdatedAt = s.now()
	if err := s.accounts.UpdateAccount(ctx, &a); err != nil {
		return models.Account{}, err
	}
	return a, nil
}

// Delete removes account id. Accounts may delete themselves; deleting anyone
// else needs account:delete. Follow edges, likes, comments and memberships
// always go; posts follow the configured DeletePolicy. On a relational
// backend everything is removed in one transaction.
func (s *Service) Delete(ctx context.Context, actor access.Actor, id string) error {
	if actor.AccountID != id {
		if err := s.policy.Authorize(actor, access.ResourceAccount, access.CanDelete); err != nil {
			return err
		}
	}
	if _, err := s.accounts.GetAccount(ctx, id); err != nil {
		return err
	}

	if err := s.stores.Atomic(ctx, func(tx *store.Stores) error {
		return s.purge(ctx, tx, id)
	}); err != nil {
		return err
	}
	logg.Info("accounts", "Account deleted with account_id="+id)
	return nil
}

func (s *Service) purge(ctx context.Context, tx *store.Stores, id string) error {
	if s.deletePolicy == DeleteRestrict {
		n, err := tx.Graph.CountPostsBy(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("account still has %d posts", n)
		}
	} else {
		postIDs, err := tx.Graph.DeletePostsBy(ctx, id)
		if err != nil {
			return fmt.Errorf("delete posts: %w", err)
		}
		if err := tx.Comments.DeleteCommentsOnPosts(ctx, postIDs); err != nil {
			return fmt.Errorf("delete comments on posts: %w", err)
		}
		if err := tx.Likes.DeleteLikesOnPosts(ctx, postIDs); err != nil {
			return fmt.Errorf("delete likes on posts: %w", err)
		}
	}

	if err := tx.Likes.DeleteLikesOf(ctx, id); err != nil {
		return fmt.Errorf("delete likes: %w", err)
	}
	if err := tx.Comments.DeleteCommentsBy(ctx, id); err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}
	if err := tx.Notifications.DeleteNotificationsOf(ctx, id); err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}
	if err := tx.Graph.DeleteFollowsOf(ctx, id); err != nil {
		return fmt.Errorf("delete follows: %w", err)
	}
	if err := tx.Memberships.DeleteMembershipsOf(ctx, id); err != nil {
		return fmt.Errorf("delete memberships: %w", err)
	}
	return tx.Accounts.DeleteAccount(ctx, id)
}
