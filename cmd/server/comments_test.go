package server

import (
	"net/http"
	"net/url"
	"testing"

	"example.com/socialapi/internal/accounts"
	"example.com/socialapi/internal/models"
)

type commentsResponse struct {
	Comments []models.Comment `json:"comments"`
	Page     int              `json:"page"`
}

func TestCommentFlow(t *testing.T) {
	env := setupTestServer(t, accounts.DeleteCascade)
	_, authorToken := registerHelper(t, env, "author")
	_, readerToken := registerHelper(t, env, "reader")

	p := decode[models.Post](t, sendJSONRequest(t, http.MethodPost, env.ts.URL+"/posts",
		map[string]string{"body": "discuss"}, authorToken, http.StatusCreated))
	base := env.ts.URL + "/posts/" + p.ID + "/comments"

	c := decode[models.Comment](t, sendJSONRequest(t, http.MethodPost, base,
		map[string]string{"body": "Tom & Jerry"}, readerToken, http.StatusCreated))
	if c.Body != "Tom & Jerry" || c.PostID != p.ID {
		t.Fatalf("unexpected comment: %+v", c)
	}
	sendJSONRequest(t, http.MethodPost, base, map[string]string{"body": " "}, readerToken, http.StatusBadRequest)
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/posts/missing/comments",
		map[string]string{"body": "hi"}, readerToken, http.StatusNotFound)

	list := decode[commentsResponse](t, sendJSONRequest(t, http.MethodGet, base, nil, authorToken, http.StatusOK))
	if len(list.Comments) != 1 || list.Comments[0].ID != c.ID || list.Page != 1 {
		t.Fatalf("unexpected comment list: %+v", list)
	}

	notes := decode[[]models.Notification](t, sendJSONRequest(t, http.MethodGet, env.ts.URL+"/notifications", nil, authorToken, http.StatusOK))
	if len(notes) != 1 || notes[0].Verb != "commented on your post" {
		t.Fatalf("expected comment notification, got %+v", notes)
	}

	// Only the comment's author may change it without post capabilities.
	sendJSONRequest(t, http.MethodPut, base+"/"+c.ID, map[string]string{"body": "hijack"}, authorToken, http.StatusForbidden)
	edited := decode[models.Comment](t, sendJSONRequest(t, http.MethodPut, base+"/"+c.ID,
		map[string]string{"body": "edited"}, readerToken, http.StatusOK))
	if edited.Body != "edited" {
		t.Fatalf("expected edited body, got %q", edited.Body)
	}
	sendJSONRequest(t, http.MethodDelete, base+"/"+c.ID, nil, authorToken, http.StatusForbidden)
	sendJSONRequest(t, http.MethodDelete, base+"/"+c.ID, nil, readerToken, http.StatusNoContent)
	sendJSONRequest(t, http.MethodDelete, base+"/"+c.ID, nil, readerToken, http.StatusNotFound)
}

func TestAccountPostsAndSearch(t *testing.T) {
	env := setupTestServer(t, accounts.DeleteCascade)
	almazID, almazToken := registerHelper(t, env, "almaz")
	_, nurToken := registerHelper(t, env, "nur")

	for _, b := range []string{"Go tips", "weekend", "more go"} {
		sendJSONRequest(t, http.MethodPost, env.ts.URL+"/posts", map[string]string{"body": b}, almazToken, http.StatusCreated)
	}
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/posts", map[string]string{"body": "going out"}, nurToken, http.StatusCreated)

	// Page size 2.
	first := decode[feedResponse](t, sendJSONRequest(t, http.MethodGet,
		env.ts.URL+"/accounts/"+almazID+"/posts", nil, nurToken, http.StatusOK))
	if len(first.Posts) != 2 || first.Posts[0].Body != "more go" || first.NextCursor == nil {
		t.Fatalf("unexpected first page: %+v", first)
	}
	second := decode[feedResponse](t, sendJSONRequest(t, http.MethodGet,
		env.ts.URL+"/accounts/"+almazID+"/posts?before="+*first.NextCursor, nil, nurToken, http.StatusOK))
	if len(second.Posts) != 1 || second.Posts[0].Body != "Go tips" || second.NextCursor != nil {
		t.Fatalf("unexpected second page: %+v", second)
	}
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/accounts/missing/posts", nil, nurToken, http.StatusNotFound)

	found := decode[feedResponse](t, sendJSONRequest(t, http.MethodGet,
		env.ts.URL+"/posts?limit=10&search="+url.QueryEscape("GO"), nil, almazToken, http.StatusOK))
	var bodies []string
	for _, p := range found.Posts {
		bodies = append(bodies, p.Body)
	}
	if len(bodies) != 3 || bodies[0] != "going out" || bodies[2] != "Go tips" {
		t.Fatalf("unexpected search results: %v", bodies)
	}
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/posts", nil, almazToken, http.StatusBadRequest)
}
