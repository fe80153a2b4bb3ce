package social

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"example.com/socialapi/internal/access"
	"example.com/socialapi/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComments_CreateListAndNotify(t *testing.T) {
	f := newFixture(t, 10, "author", "reader")
	ctx := context.Background()
	p := f.post(t, "author", "hello")

	c1, err := f.posts.Comment(ctx, "reader", p.ID, "  nice <b>post</b> & more ")
	require.NoError(t, err)
	assert.Equal(t, "nice post & more", c1.Body)
	assert.Equal(t, p.ID, c1.PostID)
	assert.Equal(t, "reader", c1.AuthorID)
	_, err = f.posts.Comment(ctx, "author", p.ID, "thanks")
	require.NoError(t, err)

	list, err := f.posts.Comments(ctx, p.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{"nice post & more", "thanks"}, []string{list[0].Body, list[1].Body}, "oldest first")

	second, err := f.posts.Comments(ctx, p.ID, 2, 1)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "thanks", second[0].Body)

	notes, err := f.st.ListNotifications(ctx, "author", 10)
	require.NoError(t, err)
	require.Len(t, notes, 1, "commenting on your own post does not notify")
	assert.Equal(t, "commented on your post", notes[0].Verb)
	assert.Equal(t, p.ID, notes[0].TargetID)
}

func TestComments_Validation(t *testing.T) {
	f := newFixture(t, 10, "a")
	ctx := context.Background()
	p := f.post(t, "a", "hello")

	var verr *apperr.ValidationError
	_, err := f.posts.Comment(ctx, "a", p.ID, "<i></i>")
	assert.ErrorAs(t, err, &verr)
	_, err = f.posts.Comment(ctx, "a", p.ID, strings.Repeat("x", MaxCommentLength+1))
	assert.ErrorAs(t, err, &verr)

	var nf *apperr.NotFoundError
	_, err = f.posts.Comment(ctx, "a", "missing", "hi")
	assert.ErrorAs(t, err, &nf)
	_, err = f.posts.Comments(ctx, "missing", 1, 10)
	assert.ErrorAs(t, err, &nf)
}

func TestComments_OwnerOrModeratorMayChange(t *testing.T) {
	f := newFixture(t, 10, "author", "commenter", "other", "admin")
	ctx := context.Background()
	p := f.post(t, "author", "hello")
	other := f.post(t, "author", "another post")
	c, err := f.posts.Comment(ctx, "commenter", p.ID, "first")
	require.NoError(t, err)

	commenter := access.Actor{AccountID: "commenter", Groups: []string{access.GroupViewers}}
	postAuthor := access.Actor{AccountID: "author", Groups: []string{access.GroupViewers}}
	stranger := access.Actor{AccountID: "other", Groups: []string{access.GroupEditors}}
	admin := access.Actor{AccountID: "admin", Groups: []string{access.GroupAdmins}}

	var denied *apperr.PermissionDeniedError
	_, err = f.posts.UpdateComment(ctx, stranger, p.ID, c.ID, "hijack")
	assert.ErrorAs(t, err, &denied)
	_, err = f.posts.UpdateComment(ctx, postAuthor, p.ID, c.ID, "hijack")
	assert.ErrorAs(t, err, &denied, "owning the post does not own its comments")

	updated, err := f.posts.UpdateComment(ctx, commenter, p.ID, c.ID, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Body)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))
	_, err = f.posts.UpdateComment(ctx, admin, p.ID, c.ID, "moderated")
	require.NoError(t, err)

	var nf *apperr.NotFoundError
	_, err = f.posts.UpdateComment(ctx, commenter, other.ID, c.ID, "wrong post")
	assert.ErrorAs(t, err, &nf)
	assert.ErrorAs(t, f.posts.DeleteComment(ctx, commenter, p.ID, "missing"), &nf)

	assert.ErrorAs(t, f.posts.DeleteComment(ctx, stranger, p.ID, c.ID), &denied)
	require.NoError(t, f.posts.DeleteComment(ctx, commenter, p.ID, c.ID))
	assert.Empty(t, f.st.Comments)
}

func TestPosts_DeleteRemovesComments(t *testing.T) {
	f := newFixture(t, 10, "author", "reader")
	ctx := context.Background()
	p := f.post(t, "author", "hello")
	keep := f.post(t, "author", "stays")
	_, err := f.posts.Comment(ctx, "reader", p.ID, "bye")
	require.NoError(t, err)
	kept, err := f.posts.Comment(ctx, "reader", keep.ID, "still here")
	require.NoError(t, err)

	require.NoError(t, f.posts.Delete(ctx, access.Actor{AccountID: "author"}, p.ID))
	assert.Len(t, f.st.Comments, 1)
	assert.Contains(t, f.st.Comments, kept.ID)
}

func TestGraph_PostsByPagesOneAuthor(t *testing.T) {
	f := newFixture(t, 10, "a", "b")
	ctx := context.Background()
	for i := range 3 {
		f.post(t, "a", fmt.Sprintf("a%d", i))
	}
	f.post(t, "b", "b0")

	page, err := f.graph.PostsBy(ctx, "a", nil, 2)
	require.NoError(t, err)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, "a2", page.Posts[0].Body)
	require.NotNil(t, page.Next)

	page, err = f.graph.PostsBy(ctx, "a", page.Next, 2)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "a0", page.Posts[0].Body)
	assert.Nil(t, page.Next)

	var nf *apperr.NotFoundError
	_, err = f.graph.PostsBy(ctx, "ghost", nil, 10)
	assert.ErrorAs(t, err, &nf)
}

func TestGraph_Search(t *testing.T) {
	f := newFixture(t, 10, "a", "b")
	ctx := context.Background()
	f.post(t, "a", "Learning Go")
	f.post(t, "b", "go home")
	f.post(t, "b", "rust")

	page, err := f.graph.Search(ctx, "  GO ", nil, 10)
	require.NoError(t, err)
	var bodies []string
	for _, p := range page.Posts {
		bodies = append(bodies, p.Body)
	}
	assert.Equal(t, []string{"go home", "Learning Go"}, bodies)

	page, err = f.graph.Search(ctx, "python", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
	assert.NotNil(t, page.Posts)

	var verr *apperr.ValidationError
	_, err = f.graph.Search(ctx, "   ", nil, 10)
	assert.ErrorAs(t, err, &verr)
	_, err = f.graph.Search(ctx, strings.Repeat("q", MaxQueryLength+1), nil, 10)
	assert.ErrorAs(t, err, &verr)
}
