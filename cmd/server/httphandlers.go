package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"example.com/socialapi/internal/access"
	"example.com/socialapi/internal/accounts"
	"example.com/socialapi/internal/apperr"
	"example.com/socialapi/internal/library"
	"example.com/socialapi/internal/middleware"
	"example.com/socialapi/internal/social"
	"example.com/socialapi/internal/store"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logg.Error("http", "Failed to encode response", err)
	}
}

// fail writes err and logs it when it is not a client error.
func fail(w http.ResponseWriter, module string, err error) {
	if apperr.HTTPStatus(err) >= http.StatusInternalServerError {
		logg.Error(module, "Request failed", err)
	}
	apperr.Write(w, err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid request body")
	}
	return nil
}

func actorFrom(r *http.Request) access.Actor {
	a, _ := access.ActorFromContext(r.Context())
	return a
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", name)
	}
	return n, nil
}

func int64Path(r *http.Request, name string) (int64, error) {
	n, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, apperr.NotFound("%s not found", chi.URLParam(r, name))
	}
	return n, nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- accounts ---

// registerHandler expects {"username", "password", "email"?, "bio"?} and
// returns the new account with a token.
func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var in accounts.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, "http/accounts", err)
		return
	}
	sess, err := s.accounts.Register(r.Context(), in)
	if err != nil {
		fail(w, "http/accounts", err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var in accounts.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, "http/accounts", err)
		return
	}
	sess, err := s.accounts.Login(r.Context(), in)
	if err != nil {
		fail(w, "http/accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		fail(w, "http/accounts", apperr.Authentication("authentication required"))
		return
	}
	if err := s.accounts.Logout(r.Context(), claims); err != nil {
		fail(w, "http/accounts", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.accounts.Profile(r.Context(), actorFrom(r).AccountID)
	if err != nil {
		fail(w, "http/accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) updateMeHandler(w http.ResponseWriter, r *http.Request) {
	var in accounts.UpdateInput
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, "http/accounts", err)
		return
	}
	a, err := s.accounts.Update(r.Context(), actorFrom(r).AccountID, in)
	if err != nil {
		fail(w, "http/accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) deleteMeHandler(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if err := s.accounts.Delete(r.Context(), actor, actor.AccountID); err != nil {
		fail(w, "http/accounts", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.accounts.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, "http/accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		fail(w, "http/accounts", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- follow graph ---

func (s *Server) followHandler(w http.ResponseWriter, r *http.Request) {
	actor, target := actorFrom(r).AccountID, chi.URLParam(r, "id")
	if err := s.graph.Follow(r.Context(), actor, target); err != nil {
		fail(w, "http/follow", err)
		return
	}
	logg.Debug("http/follow", "account_id="+actor+" followed account_id="+target)
	writeJSON(w, http.StatusOK, map[string]any{"following": true, "account_id": target})
}

func (s *Server) unfollowHandler(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "id")
	if err := s.graph.Unfollow(r.Context(), actorFrom(r).AccountID, target); err != nil {
		fail(w, "http/follow", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"following": false, "account_id": target})
}

func (s *Server) listEdges(w http.ResponseWriter, r *http.Request, list func(id string, page, size int) ([]string, error)) {
	page, err := intParam(r, "page")
	if err != nil {
		fail(w, "http/follow", err)
		return
	}
	size, err := intParam(r, "page_size")
	if err != nil {
		fail(w, "http/follow", err)
		return
	}
	ids, err := list(chi.URLParam(r, "id"), page, size)
	if err != nil {
		fail(w, "http/follow", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": ids, "page": max(page, 1)})
}

func (s *Server) followingHandler(w http.ResponseWriter, r *http.Request) {
	s.listEdges(w, r, func(id string, page, size int) ([]string, error) {
		return s.graph.ListFollowing(r.Context(), id, page, size)
	})
}

func (s *Server) followersHandler(w http.ResponseWriter, r *http.Request) {
	s.listEdges(w, r, func(id string, page, size int) ([]string, error) {
		return s.graph.ListFollowers(r.Context(), id, page, size)
	})
}

// pageQuery reads ?limit=50&before=<next_cursor of the previous page>.
func pageQuery(r *http.Request) (*social.Cursor, int, error) {
	limit, err := intParam(r, "limit")
	if err != nil {
		return nil, 0, err
	}
	v := r.URL.Query().Get("before")
	if v == "" {
		return nil, limit, nil
	}
	c, err := social.DecodeCursor(v)
	if err != nil {
		return nil, 0, err
	}
	return &c, limit, nil
}

func writePage(w http.ResponseWriter, page social.FeedPage) {
	resp := map[string]any{"posts": page.Posts, "next_cursor": nil}
	if page.Next != nil {
		resp["next_cursor"] = social.EncodeCursor(*page.Next)
	}
	writeJSON(w, http.StatusOK, resp)
}

// getFeedHandler returns one feed page.
func (s *Server) getFeedHandler(w http.ResponseWriter, r *http.Request) {
	before, limit, err := pageQuery(r)
	if err != nil {
		fail(w, "http/feed", err)
		return
	}
	page, err := s.graph.FeedPage(r.Context(), actorFrom(r).AccountID, before, limit)
	if err != nil {
		fail(w, "http/feed", err)
		return
	}
	writePage(w, page)
}

// accountPostsHandler pages through one account's own posts.
func (s *Server) accountPostsHandler(w http.ResponseWriter, r *http.Request) {
	before, limit, err := pageQuery(r)
	if err != nil {
		fail(w, "http/posts", err)
		return
	}
	page, err := s.graph.PostsBy(r.Context(), chi.URLParam(r, "id"), before, limit)
	if err != nil {
		fail(w, "http/posts", err)
		return
	}
	writePage(w, page)
}

// searchPostsHandler answers GET /posts?search=<text>.
func (s *Server) searchPostsHandler(w http.ResponseWriter, r *http.Request) {
	before, limit, err := pageQuery(r)
	if err != nil {
		fail(w, "http/posts", err)
		return
	}
	page, err := s.graph.Search(r.Context(), r.URL.Query().Get("search"), before, limit)
	if err != nil {
		fail(w, "http/posts", err)
		return
	}
	writePage(w, page)
}

// --- posts ---

type postRequest struct {
	Body string `json:"body"`
}

func (s *Server) createPostHandler(w http.ResponseWriter, r *http.Request) {
	var in postRequest
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, "http/posts", err)
		return
	}
	p, err := s.posts.Create(r.Context(), actorFrom(r).AccountID, in.Body)
	if err != nil {
		fail(w, "http/posts", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getPostHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.posts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, "http/posts", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) updatePostHandler(w http.ResponseWriter, r *http.Request) {
	var in postRequest
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, "http/posts", err)
		return
	}
	p, err := s.posts.Update(r.Context(), actorFrom(r), chi.URLParam(r, "id"), in.Body)
	if err != nil {
		fail(w, "http/posts", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deletePostHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.posts.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		fail(w, "http/posts", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) likeHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.posts.Like(r.Context(), actorFrom(r).AccountID, chi.URLParam(r, "id")); err != nil {
		fail(w, "http/likes", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "post liked"})
}

func (s *Server) unlikeHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.posts.Unlike(r.Context(), actorFrom(r).AccountID, chi.URLParam(r, "id")); err != nil {
		fail(w, "http/likes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "post unliked"})
}

// --- comments ---

func (s *Server) listCommentsHandler(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page")
	if err != nil {
		fail(w, "http/comments", err)
		return
	}
	size, err := intParam(r, "page_size")
	if err != nil {
		fail(w, "http/comments", err)
		return
	}
	list, err := s.posts.Comments(r.Context(), chi.URLParam(r, "id"), page, size)
	if err != nil {
		fail(w, "http/comments", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": list, "page": max(page, 1)})
}

func (s *Server) createCommentHandler(w http.ResponseWriter, r *http.Request) {
	var in postRequest
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, "http/comments", err)
		return
	}
	c, err := s.posts.Comment(r.Context(), actorFrom(r).AccountID, chi.URLParam(r, "id"), in.Body)
	if err != nil {
		fail(w, "http/comments", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) updateCommentHandler(w http.ResponseWriter, r *http.Request) {
	var in postRequest
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, "http/comments", err)
		return
	}
	c, err := s.posts.UpdateComment(r.Context(), actorFrom(r), chi.URLParam(r, "id"), chi.URLParam(r, "commentID"), in.Body)
	if err != nil {
		fail(w, "http/comments", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.posts.DeleteComment(r.Context(), actorFrom(r), chi.URLParam(r, "id"), chi.URLParam(r, "commentID")); err != nil {
		fail(w, "http/comments", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- notifications ---

func (s *Server) notificationsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		fail(w, "http/notifications", err)
		return
	}
	list, err := s.accounts.Notifications(r.Context(), actorFrom(r).AccountID, limit)
	if err != nil {
		fail(w, "http/notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) markReadHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.MarkNotificationsRead(r.Context(), actorFrom(r).AccountID); err != nil {
		fail(w, "http/notifications", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- library ---

// listBooksHandler supports ?author=&publication_year=&year_from=&year_to=&search=&ordering=-publication_year,title
func (s *Server) listBooksHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.BookFilter
	var err error
	if v := q.Get("author"); v != "" {
		if f.AuthorID, err = strconv.ParseInt(v, 10, 64); err != nil {
			fail(w, "http/books", apperr.Validation("author must be an integer"))
			return
		}
	}
	for name, dst := range map[string]*int{
		"publication_year": &f.PublicationYear,
		"year_from":        &f.YearFrom,
		"year_to":          &f.YearTo,
	} {
		if *dst, err = intParam(r, name); err != nil {
			fail(w, "http/books", err)
			return
		}
	}
	f.Search = q.Get("search")
	if v := q.Get("ordering"); v != "" {
		for _, field := range strings.Split(v, ",") {
			if field = strings.TrimSpace(field); field != "" {
				f.Ordering = append(f.Ordering, field)
			}
		}
	}

	books, err := s.library.ListBooks(r.Context(), actorFrom(r), f)
	if err != nil {
		fail(w, "http/books", err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (s *Server) getBookHandler(w http.ResponseWriter, r *http.Request) {
	id, err := int64Path(r, "id")
	if err != nil {
		fail(w, "http/books", err)
		return
	}
	b, err := s.library.GetBook(r.Context(), actorFrom(r), id)
	if err != nil {
		fail(w, "http/books", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) createBookHandler(w http.ResponseWriter, r *http.Request) {
	var in library.BookInput
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, "http/books", err)
		return
	}
	b, err := s.library.CreateBook(r.Context(), actorFrom(r), in)
	if err != nil {
		fail(w, "http/books", err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) updateBookHandler(w http.ResponseWriter, r *http.Request) {
	id, err := int64Path(r, "id")
	if err != nil {
		fail(w, "http/books", err)
		return
	}
	var in library.BookInput
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, "http/books", err)
		return
	}
	b, err := s.library.UpdateBook(r.Context(), actorFrom(r), id, in)
	if err != nil {
		fail(w, "http/books", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) patchBookHandler(w http.ResponseWriter, r *http.Request) {
	id, err := int64Path(r, "id")
	if err != nil {
		fail(w, "http/books", err)
		return
	}
	var in library.BookPatch
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, "http/books", err)
		return
	}
	b, err := s.library.PatchBook(r.Context(), actorFrom(r), id, in)
	if err != nil {
		fail(w, "http/books", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) deleteBookHandler(w http.ResponseWriter, r *http.Request) {
	id, err := int64Path(r, "id")
	if err != nil {
		fail(w, "http/books", err)
		return
	}
	if err := s.library.DeleteBook(r.Context(), actorFrom(r), id); err != nil {
		fail(w, "http/books", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) bookStatsHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.library.Stats(r.Context(), actorFrom(r))
	if err != nil {
		fail(w, "http/books", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) listAuthorsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := s.library.ListAuthors(r.Context(), actorFrom(r), r.URL.Query().Get("search"))
	if err != nil {
		fail(w, "http/authors", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getAuthorHandler(w http.ResponseWriter, r *http.Request) {
	id, err := int64Path(r, "id")
	if err != nil {
		fail(w, "http/authors", err)
		return
	}
	a, err := s.library.GetAuthor(r.Context(), actorFrom(r), id)
	if err != nil {
		fail(w, "http/authors", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) createAuthorHandler(w http.ResponseWriter, r *http.Request) {
	var in library.AuthorInput
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, "http/authors", err)
		return
	}
	a, err := s.library.CreateAuthor(r.Context(), actorFrom(r), in)
	if err != nil {
		fail(w, "http/authors", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// --- groups ---

func (s *Server) listGroupsHandler(w http.ResponseWriter, r *http.Request) {
	groups, err := s.accounts.ListGroups(r.Context())
	if err != nil {
		fail(w, "http/groups", err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) addMemberHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.AddMember(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "id")); err != nil {
		fail(w, "http/groups", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeMemberHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.RemoveMember(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "id")); err != nil {
		fail(w, "http/groups", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
