package models

import "time"

// Account is a registered user. PasswordHash never leaves the server.
type Account struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username     string    `json:"username" gorm:"type:varchar(50);uniqueIndex;not null"`
	Email        string    `json:"email,omitempty" gorm:"type:varchar(254)"`
	Bio          string    `json:"bio,omitempty" gorm:"type:text"`
	PasswordHash string    `json:"-" gorm:"type:varchar(100);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

// Membership places an account in a named permission group.
type Membership struct {
	AccountID string    `json:"account_id" gorm:"primaryKey;type:varchar(36)"`
	GroupName string    `json:"group" gorm:"primaryKey;type:varchar(64);index"`
	CreatedAt time.Time `json:"created_at"`
}

func (Membership) TableName() string { return "memberships" }

// Follow is a directed edge: FollowerID receives FolloweeID's posts in its feed.
type Follow struct {
	FollowerID string    `json:"follower_id" gorm:"primaryKey;type:varchar(36)"`
	FolloweeID string    `json:"followee_id" gorm:"primaryKey;type:varchar(36);index:idx_follow_followee"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Follow) TableName() string { return "follows" }

// Post is authored by exactly one account; AuthorID never changes.
type Post struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	AuthorID  string    `json:"author_id" gorm:"type:varchar(36);not null;index:idx_post_author_created,priority:1"`
	Body      string    `json:"body" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created" gorm:"not null;index:idx_post_author_created,priority:2"`
	UpdatedAt time.Time `json:"updated"`
}

func (Post) TableName() string { return "posts" }

// FeedCursor is the keyset position of the last post a reader has seen.
// Feed order is created_at DESC, then post id DESC.
type FeedCursor struct {
	CreatedAt time.Time
	PostID    string
}

// Before reports whether p sorts strictly after the cursor position,
// i.e. whether p belongs on a page requested with this cursor.
func (c FeedCursor) Before(p Post) bool {
	if p.CreatedAt.Before(c.CreatedAt) {
		return true
	}
	return p.CreatedAt.Equal(c.CreatedAt) && p.ID < c.PostID
}

// Comment is left on a post by AuthorID. Only Body changes after creation.
type Comment struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	PostID    string    `json:"post_id" gorm:"type:varchar(36);not null;index:idx_comment_post_created,priority:1"`
	AuthorID  string    `json:"author_id" gorm:"type:varchar(36);not null;index"`
	Body      string    `json:"body" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created" gorm:"not null;index:idx_comment_post_created,priority:2"`
	UpdatedAt time.Time `json:"updated"`
}

func (Comment) TableName() string { return "comments" }

// Like records that an account liked a post.
type Like struct {
	AccountID string    `json:"account_id" gorm:"primaryKey;type:varchar(36)"`
	PostID    string    `json:"post_id" gorm:"primaryKey;type:varchar(36);index"`
	CreatedAt time.Time `json:"created_at"`
}

func (Like) TableName() string { return "likes" }

// Notification is delivered to RecipientID when another account acts on it.
type Notification struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RecipientID string    `json:"recipient_id" gorm:"type:varchar(36);not null;index:idx_notification_recipient"`
	ActorID     string    `json:"actor_id" gorm:"type:varchar(36);not null;index"`
	Verb        string    `json:"verb" gorm:"type:varchar(64);not null"`
	TargetID    string    `json:"target_id,omitempty" gorm:"type:varchar(36)"`
	Read        bool      `json:"read" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at" gorm:"index:idx_notification_recipient"`
}

func (Notification) TableName() string { return "notifications" }

// Event types published on the activity topic.
const (
	EventFollow  = "follow"
	EventLike    = "like"
	EventComment = "comment"
)

// Event is an activity published by the API and turned into a Notification by the worker.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	ActorID     string    `json:"actor_id"`
	RecipientID string    `json:"recipient_id"`
	TargetID    string    `json:"target_id,omitempty"`
	Created     time.Time `json:"created"`
}

// Author wrote one or more books.
type Author struct {
	ID    int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Name  string `json:"name" gorm:"type:varchar(100);not null;index"`
	Books []Book `json:"books,omitempty" gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
}

func (Author) TableName() string { return "authors" }

// Book is the capability-gated library resource.
type Book struct {
	ID              int64   `json:"id" gorm:"primaryKey;autoIncrement"`
	Title           string  `json:"title" gorm:"type:varchar(200);not null;uniqueIndex:ux_book_title_author"`
	PublicationYear int     `json:"publication_year" gorm:"not null;index"`
	AuthorID        int64   `json:"author" gorm:"not null;uniqueIndex:ux_book_title_author"`
	Author          *Author `json:"-" gorm:"foreignKey:AuthorID"`
}

func (Book) TableName() string { return "books" }

// BookStats summarises the library.
type BookStats struct {
	TotalBooks   int64         `json:"total_books"`
	TotalAuthors int64         `json:"total_authors"`
	LatestBook   *Book         `json:"latest_book,omitempty"`
	OldestBook   *Book         `json:"oldest_book,omitempty"`
	ByDecade     []DecadeCount `json:"books_by_decade"`
}

// DecadeCount is the number of books published in a decade.
type DecadeCount struct {
	Decade int   `json:"decade"`
	Count  int64 `json:"count"`
}
