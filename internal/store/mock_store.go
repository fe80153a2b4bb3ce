package store

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"example.com/socialapi/internal/apperr"
	"example.com/socialapi/internal/models"
)

var errMockFail = errors.New("mock: operation failed")

type edge struct{ follower, followee string }

// MockStore keeps everything in memory. It implements every store interface
// and is safe for concurrent use.
type MockStore struct {
	mu sync.Mutex

	Accounts      map[string]models.Account
	Memberships   map[string]map[string]bool // account -> group set
	Follows       map[edge]time.Time
	Posts         map[string]models.Post
	Likes         map[edge]time.Time // follower=account, followee=post
	Comments      map[string]models.Comment
	Notifications map[string]models.Notification
	Authors       map[int64]models.Author
	Books         map[int64]models.Book

	nextAuthorID int64
	nextBookID   int64

	ShouldFail bool // flag to simulate failures
}

// NewMock initializes a new mock store
func NewMock() *MockStore {
	return &MockStore{
		Accounts:      make(map[string]models.Account),
		Memberships:   make(map[string]map[string]bool),
		Follows:       make(map[edge]time.Time),
		Posts:         make(map[string]models.Post),
		Likes:         make(map[edge]time.Time),
		Comments:      make(map[string]models.Comment),
		Notifications: make(map[string]models.Notification),
		Authors:       make(map[int64]models.Author),
		Books:         make(map[int64]models.Book),
	}
}

// Stores wraps the mock in a Stores bundle.
func (m *MockStore) Stores() *Stores {
	return &Stores{
		Accounts:      m,
		Memberships:   m,
		Graph:         m,
		Likes:         m,
		Comments:      m,
		Notifications: m,
		Library:       m,
		closers:       []func(){m.Close},
	}
}

func (m *MockStore) Close() {}

func (m *MockStore) lock() error {
	m.mu.Lock()
	if m.ShouldFail {
		m.mu.Unlock()
		return errMockFail
	}
	return nil
}

// --- Accounts ---

func (m *MockStore) CreateAccount(_ context.Context, a *models.Account) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	for _, existing := range m.Accounts {
		if existing.Username == a.Username {
			return apperr.Conflict("username %q is already taken", a.Username)
		}
	}
	m.Accounts[a.ID] = *a
	return nil
}

func (m *MockStore) GetAccount(_ context.Context, id string) (models.Account, error) {
	if err := m.lock(); err != nil {
		return models.Account{}, err
	}
	defer m.mu.Unlock()
	a, ok := m.Accounts[id]
	if !ok {
		return a, apperr.NotFound("account %s not found", id)
	}
	return a, nil
}

func (m *MockStore) GetAccountByUsername(_ context.Context, username string) (models.Account, error) {
	if err := m.lock(); err != nil {
		return models.Account{}, err
	}
	defer m.mu.Unlock()
	for _, a := range m.Accounts {
		if a.Username == username {
			return a, nil
		}
	}
	return models.Account{}, apperr.NotFound("account %q not found", username)
}

func (m *MockStore) UpdateAccount(_ context.Context, a *models.Account) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	cur, ok := m.Accounts[a.ID]
	if !ok {
		return apperr.NotFound("account %s not found", a.ID)
	}
	cur.Email, cur.Bio, cur.UpdatedAt = a.Email, a.Bio, a.UpdatedAt
	m.Accounts[a.ID] = cur
	return nil
}

func (m *MockStore) DeleteAccount(_ context.Context, id string) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	if _, ok := m.Accounts[id]; !ok {
		return apperr.NotFound("account %s not found", id)
	}
	delete(m.Accounts, id)
	return nil
}

func (m *MockStore) AccountExists(_ context.Context, id string) (bool, error) {
	if err := m.lock(); err != nil {
		return false, err
	}
	defer m.mu.Unlock()
	_, ok := m.Accounts[id]
	return ok, nil
}

// --- Memberships ---

func (m *MockStore) AddMembership(_ context.Context, accountID, group string) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	if m.Memberships[accountID] == nil {
		m.Memberships[accountID] = make(map[string]bool)
	}
	m.Memberships[accountID][group] = true
	return nil
}

func (m *MockStore) RemoveMembership(_ context.Context, accountID, group string) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	delete(m.Memberships[accountID], group)
	return nil
}

func (m *MockStore) GroupsOf(_ context.Context, accountID string) ([]string, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	var groups []string
	for g := range m.Memberships[accountID] {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups, nil
}

func (m *MockStore) MembersOf(_ context.Context, group string) ([]string, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	var ids []string
	for id, groups := range m.Memberships {
		if groups[group] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MockStore) DeleteMembershipsOf(_ context.Context, accountID string) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	delete(m.Memberships, accountID)
	return nil
}

// --- Graph ---

func (m *MockStore) CreateFollow(_ context.Context, followerID, followeeID string, at time.Time) (bool, error) {
	if err := m.lock(); err != nil {
		return false, err
	}
	defer m.mu.Unlock()
	e := edge{followerID, followeeID}
	if _, ok := m.Follows[e]; ok {
		return false, nil
	}
	m.Follows[e] = at
	return true, nil
}

func (m *MockStore) DeleteFollow(_ context.Context, followerID, followeeID string) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	delete(m.Follows, edge{followerID, followeeID})
	return nil
}

func (m *MockStore) IsFollowing(_ context.Context, followerID, followeeID string) (bool, error) {
	if err := m.lock(); err != nil {
		return false, err
	}
	defer m.mu.Unlock()
	_, ok := m.Follows[edge{followerID, followeeID}]
	return ok, nil
}

func (m *MockStore) listEdges(match func(edge) (string, bool), offset, limit int) []string {
	type row struct {
		id string
		at time.Time
	}
	var rows []row
	for e, at := range m.Follows {
		if id, ok := match(e); ok {
			rows = append(rows, row{id, at})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].at.Equal(rows[j].at) {
			return rows[i].at.After(rows[j].at)
		}
		return rows[i].id < rows[j].id
	})
	var ids []string
	for i := offset; i < len(rows) && (limit <= 0 || len(ids) < limit); i++ {
		ids = append(ids, rows[i].id)
	}
	return ids
}

func (m *MockStore) ListFollowing(_ context.Context, accountID string, offset, limit int) ([]string, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	return m.listEdges(func(e edge) (string, bool) { return e.followee, e.follower == accountID }, offset, limit), nil
}

func (m *MockStore) ListFollowers(_ context.Context, accountID string, offset, limit int) ([]string, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	return m.listEdges(func(e edge) (string, bool) { return e.follower, e.followee == accountID }, offset, limit), nil
}

func (m *MockStore) CountFollows(_ context.Context, accountID string) (int64, int64, error) {
	if err := m.lock(); err != nil {
		return 0, 0, err
	}
	defer m.mu.Unlock()
	var following, followers int64
	for e := range m.Follows {
		if e.follower == accountID {
			following++
		}
		if e.followee == accountID {
			followers++
		}
	}
	return following, followers, nil
}

func (m *MockStore) DeleteFollowsOf(_ context.Context, accountID string) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	for e := range m.Follows {
		if e.follower == accountID || e.followee == accountID {
			delete(m.Follows, e)
		}
	}
	return nil
}

func (m *MockStore) CreatePost(_ context.Context, p models.Post) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	m.Posts[p.ID] = p
	return nil
}

func (m *MockStore) GetPost(_ context.Context, id string) (models.Post, error) {
	if err := m.lock(); err != nil {
		return models.Post{}, err
	}
	defer m.mu.Unlock()
	p, ok := m.Posts[id]
	if !ok {
		return p, apperr.NotFound("post %s not found", id)
	}
	return p, nil
}

func (m *MockStore) UpdatePost(_ context.Context, p models.Post) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	cur, ok := m.Posts[p.ID]
	if !ok {
		return apperr.NotFound("post %s not found", p.ID)
	}
	cur.Body, cur.UpdatedAt = p.Body, p.UpdatedAt
	m.Posts[p.ID] = cur
	return nil
}

func (m *MockStore) DeletePost(_ context.Context, id string) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	if _, ok := m.Posts[id]; !ok {
		return apperr.NotFound("post %s not found", id)
	}
	delete(m.Posts, id)
	return nil
}

func (m *MockStore) CountPostsBy(_ context.Context, authorID string) (int64, error) {
	if err := m.lock(); err != nil {
		return 0, err
	}
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.Posts {
		if p.AuthorID == authorID {
			n++
		}
	}
	return n, nil
}

func (m *MockStore) DeletePostsBy(_ context.Context, authorID string) ([]string, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	var ids []string
	for id, p := range m.Posts {
		if p.AuthorID == authorID {
			ids = append(ids, id)
			delete(m.Posts, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MockStore) FeedPage(_ context.Context, followerID string, before *models.FeedCursor, limit int) ([]models.Post, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	return m.postPage(func(p models.Post) bool {
		_, ok := m.Follows[edge{followerID, p.AuthorID}]
		return ok
	}, before, limit), nil
}

// postPage keeps the posts match accepts, in feed order strictly after before.
func (m *MockStore) postPage(match func(models.Post) bool, before *models.FeedCursor, limit int) []models.Post {
	var res []models.Post
	for _, p := range m.Posts {
		if !match(p) || (before != nil && !before.Before(p)) {
			continue
		}
		res = append(res, p)
	}
	slices.SortFunc(res, compareFeed)
	if len(res) > limit {
		res = res[:limit]
	}
	return res
}

func (m *MockStore) PostsBy(_ context.Context, authorID string, before *models.FeedCursor, limit int) ([]models.Post, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	return m.postPage(func(p models.Post) bool { return p.AuthorID == authorID }, before, limit), nil
}

func (m *MockStore) SearchPosts(_ context.Context, query string, before *models.FeedCursor, limit int) ([]models.Post, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	needle := strings.ToLower(query)
	return m.postPage(func(p models.Post) bool {
		return strings.Contains(strings.ToLower(p.Body), needle)
	}, before, limit), nil
}

// --- Comments ---

func (m *MockStore) CreateComment(_ context.Context, c models.Comment) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	m.Comments[c.ID] = c
	return nil
}

func (m *MockStore) GetComment(_ context.Context, id string) (models.Comment, error) {
	if err := m.lock(); err != nil {
		return models.Comment{}, err
	}
	defer m.mu.Unlock()
	c, ok := m.Comments[id]
	if !ok {
		return c, apperr.NotFound("comment %s not found", id)
	}
	return c, nil
}

func (m *MockStore) UpdateComment(_ context.Context, c models.Comment) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	cur, ok := m.Comments[c.ID]
	if !ok {
		return apperr.NotFound("comment %s not found", c.ID)
	}
	cur.Body, cur.UpdatedAt = c.Body, c.UpdatedAt
	m.Comments[c.ID] = cur
	return nil
}

func (m *MockStore) DeleteComment(_ context.Context, id string) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	if _, ok := m.Comments[id]; !ok {
		return apperr.NotFound("comment %s not found", id)
	}
	delete(m.Comments, id)
	return nil
}

func (m *MockStore) ListComments(_ context.Context, postID string, offset, limit int) ([]models.Comment, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	var res []models.Comment
	for _, c := range m.Comments {
		if c.PostID == postID {
			res = append(res, c)
		}
	}
	slices.SortFunc(res, func(a, b models.Comment) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if offset >= len(res) {
		return nil, nil
	}
	res = res[offset:]
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *MockStore) DeleteCommentsOnPosts(_ context.Context, postIDs []string) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	for id, c := range m.Comments {
		if slices.Contains(postIDs, c.PostID) {
			delete(m.Comments, id)
		}
	}
	return nil
}

func (m *MockStore) DeleteCommentsBy(_ context.Context, accountID string) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	for id, c := range m.Comments {
		if c.AuthorID == accountID {
			delete(m.Comments, id)
		}
	}
	return nil
}

// --- Likes ---

func (m *MockStore) CreateLike(_ context.Context, accountID, postID string, at time.Time) (bool, error) {
	if err := m.lock(); err != nil {
		return false, err
	}
	defer m.mu.Unlock()
	e := edge{accountID, postID}
	if _, ok := m.Likes[e]; ok {
		return false, nil
	}
	m.Likes[e] = at
	return true, nil
}

func (m *MockStore) DeleteLike(_ context.Context, accountID, postID string) (bool, error) {
	if err := m.lock(); err != nil {
		return false, err
	}
	defer m.mu.Unlock()
	e := edge{accountID, postID}
	_, ok := m.Likes[e]
	delete(m.Likes, e)
	return ok, nil
}

func (m *MockStore) CountLikes(_ context.Context, postID string) (int64, error) {
	if err := m.lock(); err != nil {
		return 0, err
	}
	defer m.mu.Unlock()
	var n int64
	for e := range m.Likes {
		if e.followee == postID {
			n++
		}
	}
	return n, nil
}

func (m *MockStore) DeleteLikesOf(_ context.Context, accountID string) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	for e := range m.Likes {
		if e.follower == accountID {
			delete(m.Likes, e)
		}
	}
	return nil
}

func (m *MockStore) DeleteLikesOnPosts(_ context.Context, postIDs []string) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	for e := range m.Likes {
		if slices.Contains(postIDs, e.followee) {
			delete(m.Likes, e)
		}
	}
	return nil
}

// --- Notifications ---

func (m *MockStore) CreateNotification(_ context.Context, n models.Notification) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	if _, ok := m.Notifications[n.ID]; !ok {
		m.Notifications[n.ID] = n
	}
	return nil
}

func (m *MockStore) ListNotifications(_ context.Context, recipientID string, limit int) ([]models.Notification, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	var res []models.Notification
	for _, n := range m.Notifications {
		if n.RecipientID == recipientID {
			res = append(res, n)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return res[i].ID > res[j].ID
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *MockStore) MarkNotificationsRead(_ context.Context, recipientID string) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	for id, n := range m.Notifications {
		if n.RecipientID == recipientID {
			n.Read = true
			m.Notifications[id] = n
		}
	}
	return nil
}

func (m *MockStore) DeleteNotificationsOf(_ context.Context, accountID string) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	for id, n := range m.Notifications {
		if n.RecipientID == accountID || n.ActorID == accountID {
			delete(m.Notifications, id)
		}
	}
	return nil
}

// --- Library ---

func (m *MockStore) ListBooks(_ context.Context, f BookFilter) ([]models.Book, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	term := strings.ToLower(strings.TrimSpace(f.Search))
	var res []models.Book
	for _, b := range m.Books {
		switch {
		case f.AuthorID != 0 && b.AuthorID != f.AuthorID,
			f.PublicationYear != 0 && b.PublicationYear != f.PublicationYear,
			f.YearFrom != 0 && b.PublicationYear < f.YearFrom,
			f.YearTo != 0 && b.PublicationYear > f.YearTo:
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(b.Title), term) &&
			!strings.Contains(strings.ToLower(m.Authors[b.AuthorID].Name), term) {
			continue
		}
		res = append(res, b)
	}

	ordering := f.Ordering
	if len(ordering) == 0 {
		ordering = DefaultBookOrdering
	}
	for _, field := range ordering {
		if !ValidBookOrdering(field) {
			return nil, apperr.Validation("cannot order by %q", field)
		}
	}
	slices.SortStableFunc(res, func(a, b models.Book) int {
		for _, field := range ordering {
			desc := strings.HasPrefix(field, "-")
			var c int
			switch strings.TrimPrefix(field, "-") {
			case "id":
				c = compareInt(a.ID, b.ID)
			case "title":
				c = strings.Compare(a.Title, b.Title)
			case "publication_year":
				c = compareInt(int64(a.PublicationYear), int64(b.PublicationYear))
			case "author__name":
				c = strings.Compare(m.Authors[a.AuthorID].Name, m.Authors[b.AuthorID].Name)
			}
			if desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return compareInt(a.ID, b.ID)
	})
	return res, nil
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (m *MockStore) GetBook(_ context.Context, id int64) (models.Book, error) {
	if err := m.lock(); err != nil {
		return models.Book{}, err
	}
	defer m.mu.Unlock()
	b, ok := m.Books[id]
	if !ok {
		return b, apperr.NotFound("book %d not found", id)
	}
	return b, nil
}

func (m *MockStore) checkBook(b *models.Book) error {
	if _, ok := m.Authors[b.AuthorID]; !ok {
		return apperr.Validation("author %d does not exist", b.AuthorID)
	}
	for _, other := range m.Books {
		if other.ID != b.ID && other.Title == b.Title && other.AuthorID == b.AuthorID {
			return apperr.Conflict("book %q by author %d already exists", b.Title, b.AuthorID)
		}
	}
	return nil
}

func (m *MockStore) CreateBook(_ context.Context, b *models.Book) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	if err := m.checkBook(b); err != nil {
		return err
	}
	m.nextBookID++
	b.ID = m.nextBookID
	m.Books[b.ID] = *b
	return nil
}

func (m *MockStore) UpdateBook(_ context.Context, b *models.Book) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	if _, ok := m.Books[b.ID]; !ok {
		return apperr.NotFound("book %d not found", b.ID)
	}
	if err := m.checkBook(b); err != nil {
		return err
	}
	m.Books[b.ID] = *b
	return nil
}

func (m *MockStore) DeleteBook(_ context.Context, id int64) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	if _, ok := m.Books[id]; !ok {
		return apperr.NotFound("book %d not found", id)
	}
	delete(m.Books, id)
	return nil
}

func (m *MockStore) BookStats(_ context.Context) (models.BookStats, error) {
	if err := m.lock(); err != nil {
		return models.BookStats{}, err
	}
	defer m.mu.Unlock()
	st := models.BookStats{
		TotalBooks:   int64(len(m.Books)),
		TotalAuthors: int64(len(m.Authors)),
		ByDecade:     []models.DecadeCount{},
	}
	decades := make(map[int]int64)
	for _, b := range m.Books {
		if st.LatestBook == nil || b.PublicationYear > st.LatestBook.PublicationYear ||
			(b.PublicationYear == st.LatestBook.PublicationYear && b.ID < st.LatestBook.ID) {
			st.LatestBook = &b
		}
		if st.OldestBook == nil || b.PublicationYear < st.OldestBook.PublicationYear ||
			(b.PublicationYear == st.OldestBook.PublicationYear && b.ID < st.OldestBook.ID) {
			st.OldestBook = &b
		}
		decades[b.PublicationYear/10*10]++
	}
	for d, n := range decades {
		st.ByDecade = append(st.ByDecade, models.DecadeCount{Decade: d, Count: n})
	}
	sort.Slice(st.ByDecade, func(i, j int) bool { return st.ByDecade[i].Decade < st.ByDecade[j].Decade })
	return st, nil
}

func (m *MockStore) ListAuthors(_ context.Context, search string) ([]models.Author, error) {
	if err := m.lock(); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	term := strings.ToLower(strings.TrimSpace(search))
	var res []models.Author
	for _, a := range m.Authors {
		if term == "" || strings.Contains(strings.ToLower(a.Name), term) {
			res = append(res, a)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Name != res[j].Name {
			return res[i].Name < res[j].Name
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (m *MockStore) GetAuthor(_ context.Context, id int64) (models.Author, error) {
	if err := m.lock(); err != nil {
		return models.Author{}, err
	}
	defer m.mu.Unlock()
	a, ok := m.Authors[id]
	if !ok {
		return a, apperr.NotFound("author %d not found", id)
	}
	a.Books = nil
	for _, b := range m.Books {
		if b.AuthorID == id {
			a.Books = append(a.Books, b)
		}
	}
	sort.Slice(a.Books, func(i, j int) bool {
		if a.Books[i].PublicationYear != a.Books[j].PublicationYear {
			return a.Books[i].PublicationYear > a.Books[j].PublicationYear
		}
		return a.Books[i].Title < a.Books[j].Title
	})
	return a, nil
}

func (m *MockStore) CreateAuthor(_ context.Context, a *models.Author) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	m.nextAuthorID++
	a.ID = m.nextAuthorID
	m.Authors[a.ID] = *a
	return nil
}

// ---------------------------------------------
// MockStoreFail always returns errors for negative tests
type MockStoreFail struct {
	*MockStore
}

// NewMockFail returns a store whose every operation fails.
func NewMockFail() *MockStoreFail {
	m := NewMock()
	m.ShouldFail = true
	return &MockStoreFail{MockStore: m}
}
