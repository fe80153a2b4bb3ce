package accounts

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"example.com/socialapi/internal/access"
	"example.com/socialapi/internal/apperr"
	"example.com/socialapi/internal/auth"
	"example.com/socialapi/internal/models"
	"example.com/socialapi/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMembershipsDown = errors.New("membership store unavailable")

// failingMemberships fails the selected writes before they reach the database.
type failingMemberships struct {
	store.MembershipStore
	failAdd    bool
	failDelete bool
}

func (f failingMemberships) AddMembership(ctx context.Context, accountID, group string) error {
	if f.failAdd {
		return errMembershipsDown
	}
	return f.MembershipStore.AddMembership(ctx, accountID, group)
}

func (f failingMemberships) DeleteMembershipsOf(ctx context.Context, accountID string) error {
	if f.failDelete {
		return errMembershipsDown
	}
	return f.MembershipStore.DeleteMembershipsOf(ctx, accountID)
}

func openSQL(t *testing.T) *store.SQLStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "accounts.db") + "?_foreign_keys=on&_busy_timeout=5000"
	sql, err := store.OpenSQL("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(sql.Close)
	return sql
}

func sqlService(st *store.Stores, policy DeletePolicy) *Service {
	tokens := auth.NewTokens("test-secret", time.Hour, auth.NewMemoryRevocations())
	return NewService(st, tokens, access.DefaultPolicy(), Options{
		DefaultGroup: access.GroupViewers,
		DeletePolicy: policy,
	})
}

func TestRegister_SQLRollsBackWithoutMembership(t *testing.T) {
	sql := openSQL(t)
	ctx := context.Background()
	in := RegisterInput{Username: "alice", Password: "password123"}

	st := store.FromSQL(sql)
	st.Memberships = failingMemberships{MembershipStore: sql, failAdd: true}
	_, err := sqlService(st, DeleteCascade).Register(ctx, in)
	require.ErrorIs(t, err, errMembershipsDown)

	_, err = sql.GetAccountByUsername(ctx, "alice")
	var nf *apperr.NotFoundError
	require.ErrorAs(t, err, &nf, "the account must not outlive its failed membership")

	sess, err := sqlService(store.FromSQL(sql), DeleteCascade).Register(ctx, in)
	require.NoError(t, err, "the username is still free")
	groups, err := sql.GroupsOf(ctx, sess.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{access.GroupViewers}, groups)
}

func TestDelete_SQLCascadeIsAllOrNothing(t *testing.T) {
	sql := openSQL(t)
	ctx := context.Background()
	svc := sqlService(store.FromSQL(sql), DeleteCascade)
	a := register(t, svc, "alice")
	b := register(t, svc, "bob")

	now := time.Now().UTC().Truncate(time.Millisecond)
	_, err := sql.CreateFollow(ctx, a.ID, b.ID, now)
	require.NoError(t, err)
	require.NoError(t, sql.CreatePost(ctx, models.Post{ID: "pa", AuthorID: a.ID, Body: "x", CreatedAt: now, UpdatedAt: now}))
	_, err = sql.CreateLike(ctx, b.ID, "pa", now)
	require.NoError(t, err)
	require.NoError(t, sql.CreateComment(ctx, models.Comment{ID: "c1", PostID: "pa", AuthorID: b.ID, Body: "hi", CreatedAt: now}))

	st := store.FromSQL(sql)
	st.Memberships = failingMemberships{MembershipStore: sql, failDelete: true}
	self := access.Actor{AccountID: a.ID}
	require.ErrorIs(t, sqlService(st, DeleteCascade).Delete(ctx, self, a.ID), errMembershipsDown)

	exists, err := sql.AccountExists(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, exists)
	posts, err := sql.CountPostsBy(ctx, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, posts)
	likes, err := sql.CountLikes(ctx, "pa")
	require.NoError(t, err)
	assert.EqualValues(t, 1, likes)
	following, _, err := sql.CountFollows(ctx, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, following)
	comments, err := sql.ListComments(ctx, "pa", 0, 10)
	require.NoError(t, err)
	assert.Len(t, comments, 1)

	require.NoError(t, svc.Delete(ctx, self, a.ID))
	exists, err = sql.AccountExists(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, exists)
	posts, err = sql.CountPostsBy(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, posts)
	comments, err = sql.ListComments(ctx, "pa", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, comments)
}
