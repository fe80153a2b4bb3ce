package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"example.com/socialapi/internal/access"
	"example.com/socialapi/internal/accounts"
	"example.com/socialapi/internal/activity"
	"example.com/socialapi/internal/auth"
	"example.com/socialapi/internal/metrics"
	"example.com/socialapi/internal/models"
	"example.com/socialapi/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

//
// --- Helpers ---
//

type testEnv struct {
	store  *store.MockStore
	server *Server
	ts     *httptest.Server
}

func setupTestServer(t *testing.T, policy accounts.DeletePolicy) *testEnv {
	t.Helper()
	mockStore := store.NewMock()
	reg := prometheus.NewRegistry()

	s := New(Deps{
		Stores:    mockStore.Stores(),
		Publisher: activity.NewDirectPublisher(activity.NewHandler(mockStore), nil),
		Tokens:    auth.NewTokens("test-secret", time.Hour, auth.NewMemoryRevocations()),
		Policy:    access.DefaultPolicy(),
		Metrics:   metrics.NewCollector(reg),
		Gatherer:  reg,
	}, Options{
		DefaultGroup:   access.GroupViewers,
		DeletePolicy:   policy,
		FeedPageSize:   2,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	})
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return &testEnv{store: mockStore, server: s, ts: ts}
}

// sendJSONRequest sends body as JSON and fails unless the status matches.
func sendJSONRequest(t *testing.T, method, url string, body any, token string, expectedStatus int) []byte {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal failed: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expectedStatus {
		t.Fatalf("%s %s: expected %d, got %d: %s", method, url, expectedStatus, resp.StatusCode, string(b))
	}
	return b
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", string(data), err)
	}
	return v
}

// registerHelper registers username and returns its id and token.
func registerHelper(t *testing.T, env *testEnv, username string) (string, string) {
	t.Helper()
	body := sendJSONRequest(t, http.MethodPost, env.ts.URL+"/accounts/register",
		map[string]string{"username": username, "password": "password123"}, "", http.StatusCreated)
	sess := decode[accounts.Session](t, body)
	if sess.Account.ID == "" || sess.Token == "" {
		t.Fatalf("expected account id and token, got %s", string(body))
	}
	return sess.Account.ID, sess.Token
}

type feedResponse struct {
	Posts      []models.Post `json:"posts"`
	NextCursor *string       `json:"next_cursor"`
}

//
// --- Tests ---
//

func TestRegisterAndLogin(t *testing.T) {
	env := setupTestServer(t, accounts.DeleteCascade)

	id, _ := registerHelper(t, env, "almaz")

	body := sendJSONRequest(t, http.MethodPost, env.ts.URL+"/accounts/login",
		map[string]string{"username": "almaz", "password": "password123"}, "", http.StatusOK)
	sess := decode[accounts.Session](t, body)
	if sess.Account.ID != id {
		t.Fatalf("expected account %s, got %s", id, sess.Account.ID)
	}

	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/accounts/login",
		map[string]string{"username": "almaz", "password": "wrong-password"}, "", http.StatusUnauthorized)
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/accounts/register",
		map[string]string{"username": "almaz", "password": "password123"}, "", http.StatusConflict)
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/accounts/register",
		map[string]string{"username": "", "password": "password123"}, "", http.StatusBadRequest)
}

func TestRegister_InvalidJSON(t *testing.T) {
	env := setupTestServer(t, accounts.DeleteCascade)

	resp, err := http.Post(env.ts.URL+"/accounts/register", "application/json", strings.NewReader("{invalid-json}"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.Code != "validation_error" {
		t.Fatalf("expected validation_error, got %q", body.Error.Code)
	}
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	env := setupTestServer(t, accounts.DeleteCascade)

	for _, path := range []string{"/feed", "/accounts/me", "/books", "/notifications"} {
		sendJSONRequest(t, http.MethodGet, env.ts.URL+path, nil, "", http.StatusUnauthorized)
		sendJSONRequest(t, http.MethodGet, env.ts.URL+path, nil, "garbage", http.StatusUnauthorized)
	}
}

// full flow: follow -> post -> feed
func TestFollowAndFeedFlow(t *testing.T) {
	env := setupTestServer(t, accounts.DeleteCascade)

	almazID, almazToken := registerHelper(t, env, "almaz")
	nurID, nurToken := registerHelper(t, env, "nur")
	_, aiganToken := registerHelper(t, env, "aigan")

	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/accounts/follow/"+nurID, nil, almazToken, http.StatusOK)
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/accounts/follow/"+nurID, nil, almazToken, http.StatusOK)
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/accounts/follow/"+almazID, nil, almazToken, http.StatusBadRequest)
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/accounts/follow/missing", nil, almazToken, http.StatusNotFound)

	for _, b := range []string{"one", "two", "three"} {
		sendJSONRequest(t, http.MethodPost, env.ts.URL+"/posts", map[string]string{"body": b}, nurToken, http.StatusCreated)
	}
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/posts", map[string]string{"body": "own"}, almazToken, http.StatusCreated)

	// Page size 2: first page carries a cursor, second page ends the feed.
	first := decode[feedResponse](t, sendJSONRequest(t, http.MethodGet, env.ts.URL+"/feed", nil, almazToken, http.StatusOK))
	if len(first.Posts) != 2 || first.Posts[0].Body != "three" || first.Posts[1].Body != "two" {
		t.Fatalf("unexpected first page: %+v", first.Posts)
	}
	if first.NextCursor == nil {
		t.Fatalf("expected next_cursor on a full page")
	}
	second := decode[feedResponse](t, sendJSONRequest(t, http.MethodGet,
		env.ts.URL+"/feed?before="+*first.NextCursor, nil, almazToken, http.StatusOK))
	if len(second.Posts) != 1 || second.Posts[0].Body != "one" || second.NextCursor != nil {
		t.Fatalf("unexpected second page: %+v", second)
	}

	empty := decode[feedResponse](t, sendJSONRequest(t, http.MethodGet, env.ts.URL+"/feed", nil, aiganToken, http.StatusOK))
	if len(empty.Posts) != 0 {
		t.Fatalf("expected empty feed, got %+v", empty.Posts)
	}

	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/feed?before=!!!", nil, almazToken, http.StatusBadRequest)
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/feed?limit=abc", nil, almazToken, http.StatusBadRequest)

	// Unfollow empties the feed.
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/accounts/unfollow/"+nurID, nil, almazToken, http.StatusOK)
	after := decode[feedResponse](t, sendJSONRequest(t, http.MethodGet, env.ts.URL+"/feed", nil, almazToken, http.StatusOK))
	if len(after.Posts) != 0 {
		t.Fatalf("expected empty feed after unfollow, got %+v", after.Posts)
	}

	notes := decode[[]models.Notification](t, sendJSONRequest(t, http.MethodGet, env.ts.URL+"/notifications", nil, nurToken, http.StatusOK))
	if len(notes) != 1 || notes[0].ActorID != almazID {
		t.Fatalf("expected one follow notification, got %+v", notes)
	}
}

func TestLikeFlow(t *testing.T) {
	env := setupTestServer(t, accounts.DeleteCascade)
	_, authorToken := registerHelper(t, env, "author")
	_, fanToken := registerHelper(t, env, "fan")

	p := decode[models.Post](t, sendJSONRequest(t, http.MethodPost, env.ts.URL+"/posts",
		map[string]string{"body": "like me"}, authorToken, http.StatusCreated))

	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/posts/"+p.ID+"/like", nil, fanToken, http.StatusCreated)
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/posts/"+p.ID+"/like", nil, fanToken, http.StatusBadRequest)
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/posts/missing/like", nil, fanToken, http.StatusNotFound)

	notes := decode[[]models.Notification](t, sendJSONRequest(t, http.MethodGet, env.ts.URL+"/notifications", nil, authorToken, http.StatusOK))
	if len(notes) != 1 || notes[0].Verb != "liked your post" {
		t.Fatalf("expected like notification, got %+v", notes)
	}
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/notifications/read", nil, authorToken, http.StatusNoContent)

	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/posts/"+p.ID+"/unlike", nil, fanToken, http.StatusOK)
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/posts/"+p.ID+"/unlike", nil, fanToken, http.StatusBadRequest)

	// Only the author may edit without post:edit.
	sendJSONRequest(t, http.MethodPut, env.ts.URL+"/posts/"+p.ID, map[string]string{"body": "hijack"}, fanToken, http.StatusForbidden)
	sendJSONRequest(t, http.MethodPut, env.ts.URL+"/posts/"+p.ID, map[string]string{"body": "edited"}, authorToken, http.StatusOK)
	sendJSONRequest(t, http.MethodDelete, env.ts.URL+"/posts/"+p.ID, nil, authorToken, http.StatusNoContent)
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/posts/"+p.ID, nil, authorToken, http.StatusNotFound)
}

func TestBookPermissions(t *testing.T) {
	env := setupTestServer(t, accounts.DeleteCascade)
	ctx := context.Background()

	_, viewerToken := registerHelper(t, env, "viewer")
	editorID, editorToken := registerHelper(t, env, "editor")
	adminID, adminToken := registerHelper(t, env, "admin")
	if err := env.store.AddMembership(ctx, editorID, access.GroupEditors); err != nil {
		t.Fatalf("add membership: %v", err)
	}
	if err := env.store.AddMembership(ctx, adminID, access.GroupAdmins); err != nil {
		t.Fatalf("add membership: %v", err)
	}

	author := decode[models.Author](t, sendJSONRequest(t, http.MethodPost, env.ts.URL+"/authors",
		map[string]string{"name": "Chinghiz Aitmatov"}, editorToken, http.StatusCreated))
	book := map[string]any{"title": "Jamilia", "publication_year": 1958, "author": author.ID}

	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/books", nil, viewerToken, http.StatusOK)
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/books", book, viewerToken, http.StatusForbidden)
	created := decode[models.Book](t, sendJSONRequest(t, http.MethodPost, env.ts.URL+"/books", book, editorToken, http.StatusCreated))

	bookURL := env.ts.URL + "/books/" + strconv.FormatInt(created.ID, 10)
	sendJSONRequest(t, http.MethodPatch, bookURL, map[string]any{"publication_year": 1959}, viewerToken, http.StatusForbidden)
	sendJSONRequest(t, http.MethodPatch, bookURL, map[string]any{"publication_year": 1959}, editorToken, http.StatusOK)
	sendJSONRequest(t, http.MethodDelete, bookURL, nil, editorToken, http.StatusForbidden)
	sendJSONRequest(t, http.MethodDelete, bookURL, nil, adminToken, http.StatusNoContent)
	sendJSONRequest(t, http.MethodGet, bookURL, nil, viewerToken, http.StatusNotFound)

	stats := decode[models.BookStats](t, sendJSONRequest(t, http.MethodGet, env.ts.URL+"/books/stats", nil, viewerToken, http.StatusOK))
	if stats.TotalBooks != 0 || stats.TotalAuthors != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/books?ordering=password", nil, viewerToken, http.StatusBadRequest)
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/books?year_from=abc", nil, viewerToken, http.StatusBadRequest)
}

func TestGroupsRequireCapability(t *testing.T) {
	env := setupTestServer(t, accounts.DeleteCascade)
	userID, userToken := registerHelper(t, env, "user")
	adminID, adminToken := registerHelper(t, env, "admin")
	if err := env.store.AddMembership(context.Background(), adminID, access.GroupAdmins); err != nil {
		t.Fatalf("add membership: %v", err)
	}

	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/groups", nil, userToken, http.StatusForbidden)
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/groups/Editors/members/"+userID, nil, userToken, http.StatusForbidden)
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/groups/Editors/members/"+userID, nil, adminToken, http.StatusNoContent)
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/groups/Nope/members/"+userID, nil, adminToken, http.StatusNotFound)

	// Membership changes apply to the next request.
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/authors", map[string]string{"name": "Someone"}, userToken, http.StatusCreated)

	sendJSONRequest(t, http.MethodDelete, env.ts.URL+"/groups/Editors/members/"+userID, nil, adminToken, http.StatusNoContent)
	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/authors", map[string]string{"name": "Someone Else"}, userToken, http.StatusForbidden)
}

func TestLogoutAndDelete(t *testing.T) {
	env := setupTestServer(t, accounts.DeleteRestrict)
	_, token := registerHelper(t, env, "leaver")
	otherID, otherToken := registerHelper(t, env, "other")

	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/posts", map[string]string{"body": "still here"}, token, http.StatusCreated)
	sendJSONRequest(t, http.MethodDelete, env.ts.URL+"/accounts/me", nil, token, http.StatusConflict)
	sendJSONRequest(t, http.MethodDelete, env.ts.URL+"/accounts/"+otherID, nil, token, http.StatusForbidden)

	sendJSONRequest(t, http.MethodDelete, env.ts.URL+"/accounts/me", nil, otherToken, http.StatusNoContent)
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/accounts/me", nil, otherToken, http.StatusUnauthorized)

	sendJSONRequest(t, http.MethodPost, env.ts.URL+"/accounts/logout", nil, token, http.StatusNoContent)
	sendJSONRequest(t, http.MethodGet, env.ts.URL+"/accounts/me", nil, token, http.StatusUnauthorized)
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupTestServer(t, accounts.DeleteCascade)

	resp, err := http.Get(env.ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Frame-Options") != "DENY" {
		t.Fatalf("expected security headers on every response")
	}

	resp, err = http.Get(env.ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "socialapi_http_status_total") {
		t.Fatalf("expected socialapi_http_status_total in metrics output")
	}
}
