package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/socialapi/internal/apperr"
	"example.com/socialapi/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// SQLStore implements every store interface on a relational database via gorm.
type SQLStore struct {
	db *gorm.DB
}

// OpenSQL connects to driver ("sqlite" or "postgres") and migrates the schema.
func OpenSQL(driver, dsn string) (*SQLStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver != "postgres" {
		// SQLite allows a single writer.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	s := &SQLStore{db: db}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	logg.Info("store", "Connected to "+driver+" database")
	return s, nil
}

// Migrate creates or updates tables for every model.
func (s *SQLStore) Migrate() error {
	if err := s.db.AutoMigrate(
		&models.Account{},
		&models.Membership{},
		&models.Follow{},
		&models.Post{},
		&models.Like{},
		&models.Comment{},
		&models.Notification{},
		&models.Author{},
		&models.Book{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
		logg.Info("store", "SQL connection closed")
	}
}

// inTx runs fn inside one gorm transaction. Every store of outer that is s
// itself is swapped for the transaction; the others are left as they are.
func (s *SQLStore) inTx(ctx context.Context, outer *Stores, fn func(tx *Stores) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		txs := &SQLStore{db: db}
		tx := &Stores{
			Accounts:      outer.Accounts,
			Memberships:   outer.Memberships,
			Graph:         outer.Graph,
			Likes:         outer.Likes,
			Comments:      outer.Comments,
			Notifications: outer.Notifications,
			Library:       outer.Library,
		}
		if outer.Accounts == AccountStore(s) {
			tx.Accounts = txs
		}
		if outer.Memberships == MembershipStore(s) {
			tx.Memberships = txs
		}
		if outer.Graph == GraphStore(s) {
			tx.Graph = txs
		}
		if outer.Likes == LikeStore(s) {
			tx.Likes = txs
		}
		if outer.Comments == CommentStore(s) {
			tx.Comments = txs
		}
		if outer.Notifications == NotificationStore(s) {
			tx.Notifications = txs
		}
		if outer.Library == LibraryStore(s) {
			tx.Library = txs
		}
		return fn(tx)
	})
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(format, args...)
	}
	return err
}

// --- Accounts ---

func (s *SQLStore) CreateAccount(ctx context.Context, a *models.Account) error {
	err := s.db.WithContext(ctx).Create(a).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict("username %q is already taken", a.Username)
	}
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *SQLStore) GetAccount(ctx context.Context, id string) (models.Account, error) {
	var a models.Account
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&a).Error
	return a, notFound(err, "account %s not found", id)
}

func (s *SQLStore) GetAccountByUsername(ctx context.Context, username string) (models.Account, error) {
	var a models.Account
	err := s.db.WithContext(ctx).Where("username = ?", username).Take(&a).Error
	return a, notFound(err, "account %q not found", username)
}

func (s *SQLStore) UpdateAccount(ctx context.Context, a *models.Account) error {
	res := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", a.ID).
		Updates(map[string]any{"email": a.Email, "bio": a.Bio, "updated_at": a.UpdatedAt})
	if res.Error != nil {
		return fmt.Errorf("update account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("account %s not found", a.ID)
	}
	return nil
}

func (s *SQLStore) DeleteAccount(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Account{})
	if res.Error != nil {
		return fmt.Errorf("delete account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("account %s not found", id)
	}
	return nil
}

func (s *SQLStore) AccountExists(ctx context.Context, id string) (bool, error) {
	var cnt int64
	if err := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// --- Memberships ---

func (s *SQLStore) AddMembership(ctx context.Context, accountID, group string) error {
	m := &models.Membership{AccountID: accountID, GroupName: group}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(m).Error
}

func (s *SQLStore) RemoveMembership(ctx context.Context, accountID, group string) error {
	return s.db.WithContext(ctx).
		Where("account_id = ? AND group_name = ?", accountID, group).
		Delete(&models.Membership{}).Error
}

func (s *SQLStore) GroupsOf(ctx context.Context, accountID string) ([]string, error) {
	var groups []string
	err := s.db.WithContext(ctx).Model(&models.Membership{}).
		Where("account_id = ?", accountID).Order("group_name").
		Pluck("group_name", &groups).Error
	return groups, err
}

func (s *SQLStore) MembersOf(ctx context.Context, group string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Membership{}).
		Where("group_name = ?", group).Order("account_id").
		Pluck("account_id", &ids).Error
	return ids, err
}

func (s *SQLStore) DeleteMembershipsOf(ctx context.Context, accountID string) error {
	return s.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&models.Membership{}).Error
}

// --- Likes ---

func (s *SQLStore) CreateLike(ctx context.Context, accountID, postID string, at time.Time) (bool, error) {
	l := &models.Like{AccountID: accountID, PostID: postID, CreatedAt: at}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(l)
	if res.Error != nil {
		return false, fmt.Errorf("create like: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *SQLStore) DeleteLike(ctx context.Context, accountID, postID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("account_id = ? AND post_id = ?", accountID, postID).
		Delete(&models.Like{})
	if res.Error != nil {
		return false, fmt.Errorf("delete like: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *SQLStore) CountLikes(ctx context.Context, postID string) (int64, error) {
	var cnt int64
	err := s.db.WithContext(ctx).Model(&models.Like{}).Where("post_id = ?", postID).Count(&cnt).Error
	return cnt, err
}

func (s *SQLStore) DeleteLikesOf(ctx context.Context, accountID string) error {
	return s.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&models.Like{}).Error
}

func (s *SQLStore) DeleteLikesOnPosts(ctx context.Context, postIDs []string) error {
	if len(postIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("post_id IN ?", postIDs).Delete(&models.Like{}).Error
}

// --- Notifications ---

func (s *SQLStore) CreateNotification(ctx context.Context, n models.Notification) error {
	// Redelivered events carry the same id.
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&n).Error
}

func (s *SQLStore) ListNotifications(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	var res []models.Notification
	err := s.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Find(&res).Error
	return res, err
}

func (s *SQLStore) MarkNotificationsRead(ctx context.Context, recipientID string) error {
	return s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Update("read", true).Error
}

func (s *SQLStore) DeleteNotificationsOf(ctx context.Context, accountID string) error {
	return s.db.WithContext(ctx).
		Where("recipient_id = ? OR actor_id = ?", accountID, accountID).
		Delete(&models.Notification{}).Error
}
