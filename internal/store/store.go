package store

import (
	"context"
	"time"

	"example.com/socialapi/internal/logger"
	"example.com/socialapi/internal/models"
)

var logg = logger.New()

// --- Interfaces ---

type AccountStore interface {
	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccount(ctx context.Context, id string) (models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (models.Account, error)
	UpdateAccount(ctx context.Context, a *models.Account) error
	DeleteAccount(ctx context.Context, id string) error
	AccountExists(ctx context.Context, id string) (bool, error)
}

type MembershipStore interface {
	AddMembership(ctx context.Context, accountID, group string) error
	RemoveMembership(ctx context.Context, accountID, group string) error
	GroupsOf(ctx context.Context, accountID string) ([]string, error)
	MembersOf(ctx context.Context, group string) ([]string, error)
	DeleteMembershipsOf(ctx context.Context, accountID string) error
}

// GraphStore holds follow edges and posts, the two inputs of feed assembly.
type GraphStore interface {
	// CreateFollow inserts follower->followee if absent and reports whether it did.
	CreateFollow(ctx context.Context, followerID, followeeID string, at time.Time) (bool, error)
	DeleteFollow(ctx context.Context, followerID, followeeID string) error
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	ListFollowing(ctx context.Context, accountID string, offset, limit int) ([]string, error)
	ListFollowers(ctx context.Context, accountID string, offset, limit int) ([]string, error)
	CountFollows(ctx context.Context, accountID string) (following, followers int64, err error)
	DeleteFollowsOf(ctx context.Context, accountID string) error

	CreatePost(ctx context.Context, p models.Post) error
	GetPost(ctx context.Context, id string) (models.Post, error)
	UpdatePost(ctx context.Context, p models.Post) error
	DeletePost(ctx context.Context, id string) error
	CountPostsBy(ctx context.Context, authorID string) (int64, error)
	// DeletePostsBy removes every post of authorID and returns their ids.
	DeletePostsBy(ctx context.Context, authorID string) ([]string, error)

	// FeedPage returns up to limit posts authored by accounts followerID
	// follows, newest first (created_at DESC, id DESC), strictly after before.
	FeedPage(ctx context.Context, followerID string, before *models.FeedCursor, limit int) ([]models.Post, error)
	// PostsBy is FeedPage restricted to one author.
	PostsBy(ctx context.Context, authorID string, before *models.FeedCursor, limit int) ([]models.Post, error)
	// SearchPosts returns posts whose body contains query, ignoring case, in
	// feed order strictly after before.
	SearchPosts(ctx context.Context, query string, before *models.FeedCursor, limit int) ([]models.Post, error)
	Close()
}

type LikeStore interface {
	CreateLike(ctx context.Context, accountID, postID string, at time.Time) (bool, error)
	DeleteLike(ctx context.Context, accountID, postID string) (bool, error)
	CountLikes(ctx context.Context, postID string) (int64, error)
	DeleteLikesOf(ctx context.Context, accountID string) error
	DeleteLikesOnPosts(ctx context.Context, postIDs []string) error
}

type CommentStore interface {
	CreateComment(ctx context.Context, c models.Comment) error
	GetComment(ctx context.Context, id string) (models.Comment, error)
	UpdateComment(ctx context.Context, c models.Comment) error
	DeleteComment(ctx context.Context, id string) error
	// ListComments returns the comments on postID oldest first.
	ListComments(ctx context.Context, postID string, offset, limit int) ([]models.Comment, error)
	DeleteCommentsOnPosts(ctx context.Context, postIDs []string) error
	DeleteCommentsBy(ctx context.Context, accountID string) error
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n models.Notification) error
	ListNotifications(ctx context.Context, recipientID string, limit int) ([]models.Notification, error)
	MarkNotificationsRead(ctx context.Context, recipientID string) error
	// DeleteNotificationsOf removes notifications the account received or caused.
	DeleteNotificationsOf(ctx context.Context, accountID string) error
}

// BookFilter narrows ListBooks. Zero values mean "no filter".
type BookFilter struct {
	AuthorID        int64
	PublicationYear int
	YearFrom        int
	YearTo          int
	Search          string
	Ordering        []string
}

type LibraryStore interface {
	ListBooks(ctx context.Context, f BookFilter) ([]models.Book, error)
	GetBook(ctx context.Context, id int64) (models.Book, error)
	CreateBook(ctx context.Context, b *models.Book) error
	UpdateBook(ctx context.Context, b *models.Book) error
	DeleteBook(ctx context.Context, id int64) error
	BookStats(ctx context.Context) (models.BookStats, error)

	ListAuthors(ctx context.Context, search string) ([]models.Author, error)
	GetAuthor(ctx context.Context, id int64) (models.Author, error)
	CreateAuthor(ctx context.Context, a *models.Author) error
}

// Stores bundles every store the services need. Graph may be backed by a
// different database than the rest.
type Stores struct {
	Accounts      AccountStore
	Memberships   MembershipStore
	Graph         GraphStore
	Likes         LikeStore
	Comments      CommentStore
	Notifications NotificationStore
	Library       LibraryStore

	atomic  func(ctx context.Context, outer *Stores, fn func(tx *Stores) error) error
	closers []func()
}

// Atomic runs fn against stores whose relational parts share one
// transaction: fn's error rolls all of them back. Stores that cannot take
// part, such as a Cassandra graph, are passed through and commit on their own.
// Without a transactional backend fn simply runs against s.
func (s *Stores) Atomic(ctx context.Context, fn func(tx *Stores) error) error {
	if s.atomic == nil {
		return fn(s)
	}
	return s.atomic(ctx, s, fn)
}

// Close releases every underlying connection.
func (s *Stores) Close() {
	for _, c := range s.closers {
		c()
	}
}

// FromSQL uses one SQLStore for everything.
func FromSQL(sql *SQLStore) *Stores {
	return &Stores{
		Accounts:      sql,
		Memberships:   sql,
		Graph:         sql,
		Likes:         sql,
		Comments:      sql,
		Notifications: sql,
		Library:       sql,
		atomic:        sql.inTx,
		closers:       []func(){sql.Close},
	}
}

// WithGraph replaces the graph backend and takes ownership of it.
func (s *Stores) WithGraph(g GraphStore) *Stores {
	s.Graph = g
	s.closers = append(s.closers, g.Close)
	return s
}
