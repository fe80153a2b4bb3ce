// Package library serves the capability-gated book and author catalogue.
package library

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"example.com/socialapi/internal/access"
	"example.com/socialapi/internal/apperr"
	"example.com/socialapi/internal/metrics"
	"example.com/socialapi/internal/models"
	"example.com/socialapi/internal/store"
	"github.com/go-playground/validator/v10"
)

const MinPublicationYear = 1000

type Service struct {
	store    store.LibraryStore
	policy   *access.Policy
	metrics  metrics.Recorder
	validate *validator.Validate
	now      func() time.Time
}

func NewService(st store.LibraryStore, policy *access.Policy, rec metrics.Recorder) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Service{
		store:    st,
		policy:   policy,
		metrics:  rec,
		validate: validator.New(),
		now:      time.Now,
	}
}

// BookInput is the full set of writable book fields.
type BookInput struct {
	Title           string `json:"title" validate:"required,max=200"`
	PublicationYear int    `json:"publication_year" validate:"required"`
	AuthorID        int64  `json:"author" validate:"required,gt=0"`
}

// BookPatch updates only the fields that are set.
type BookPatch struct {
	Title           *string `json:"title"`
	PublicationYear *int    `json:"publication_year"`
	AuthorID        *int64  `json:"author"`
}

type AuthorInput struct {
	Name string `json:"name"`
}

func (s *Service) authorize(actor access.Actor, r access.Resource, c access.Capability) error {
	if err := s.policy.Authorize(actor, r, c); err != nil {
		s.metrics.RecordPermissionDenied(string(r), c.String())
		return err
	}
	return nil
}

func (s *Service) validateBook(in *BookInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		switch verrs[0].StructField() {
		case "Title":
			return apperr.Validation("title is required and must be at most 200 characters")
		case "AuthorID":
			return apperr.Validation("author is required")
		}
	}
	current := s.now().Year()
	if in.PublicationYear > current {
		return apperr.Validation("publication year cannot be in the future (current year is %d)", current)
	}
	if in.PublicationYear < MinPublicationYear {
		return apperr.Validation("publication year must be %d or later", MinPublicationYear)
	}
	return nil
}

func (s *Service) ListBooks(ctx context.Context, actor access.Actor, f store.BookFilter) ([]models.Book, error) {
	if err := s.authorize(actor, access.ResourceBook, access.CanView); err != nil {
		return nil, err
	}
	books, err := s.store.ListBooks(ctx, f)
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []models.Book{}
	}
	return books, nil
}

func (s *Service) GetBook(ctx context.Context, actor access.Actor, id int64) (models.Book, error) {
	if err := s.authorize(actor, access.ResourceBook, access.CanView); err != nil {
		return models.Book{}, err
	}
	return s.store.GetBook(ctx, id)
}

func (s *Service) CreateBook(ctx context.Context, actor access.Actor, in BookInput) (models.Book, error) {
	if err := s.authorize(actor, access.ResourceBook, access.CanCreate); err != nil {
		return models.Book{}, err
	}
	if err := s.validateBook(&in); err != nil {
		return models.Book{}, err
	}
	b := models.Book{Title: in.Title, PublicationYear: in.PublicationYear, AuthorID: in.AuthorID}
	if err := s.store.CreateBook(ctx, &b); err != nil {
		return models.Book{}, err
	}
	return b, nil
}

// UpdateBook replaces every field of book id.
func (s *Service) UpdateBook(ctx context.Context, actor access.Actor, id int64, in BookInput) (models.Book, error) {
	if err := s.authorize(actor, access.ResourceBook, access.CanEdit); err != nil {
		return models.Book{}, err
	}
	if _, err := s.store.GetBook(ctx, id); err != nil {
		return models.Book{}, err
	}
	if err := s.validateBook(&in); err != nil {
		return models.Book{}, err
	}
	b := models.Book{ID: id, Title: in.Title, PublicationYear: in.PublicationYear, AuthorID: in.AuthorID}
	if err := s.store.UpdateBook(ctx, &b); err != nil {
		return models.Book{}, err
	}
	return b, nil
}

// PatchBook changes the fields set in p and validates the result.
func (s *Service) PatchBook(ctx context.Context, actor access.Actor, id int64, p BookPatch) (models.Book, error) {
	if err := s.authorize(actor, access.ResourceBook, access.CanEdit); err != nil {
		return models.Book{}, err
	}
	cur, err := s.store.GetBook(ctx, id)
	if err != nil {
		return models.Book{}, err
	}
	in := BookInput{Title: cur.Title, PublicationYear: cur.PublicationYear, AuthorID: cur.AuthorID}
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.PublicationYear != nil {
		in.PublicationYear = *p.PublicationYear
	}
	if p.AuthorID != nil {
		in.AuthorID = *p.AuthorID
	}
	if err := s.validateBook(&in); err != nil {
		return models.Book{}, err
	}
	b := models.Book{ID: id, Title: in.Title, PublicationYear: in.PublicationYear, AuthorID: in.AuthorID}
	if err := s.store.UpdateBook(ctx, &b); err != nil {
		return models.Book{}, err
	}
	return b, nil
}

func (s *Service) DeleteBook(ctx context.Context, actor access.Actor, id int64) error {
	if err := s.authorize(actor, access.ResourceBook, access.CanDelete); err != nil {
		return err
	}
	return s.store.DeleteBook(ctx, id)
}

func (s *Service) Stats(ctx context.Context, actor access.Actor) (models.BookStats, error) {
	if err := s.authorize(actor, access.ResourceBook, access.CanView); err != nil {
		return models.BookStats{}, err
	}
	return s.store.BookStats(ctx)
}

func (s *Service) ListAuthors(ctx context.Context, actor access.Actor, search string) ([]models.Author, error) {
	if err := s.authorize(actor, access.ResourceAuthor, access.CanView); err != nil {
		return nil, err
	}
	authors, err := s.store.ListAuthors(ctx, search)
	if err != nil {
		return nil, err
	}
	if authors == nil {
		authors = []models.Author{}
	}
	return authors, nil
}

// GetAuthor returns the author with their books.
func (s *Service) GetAuthor(ctx context.Context, actor access.Actor, id int64) (models.Author, error) {
	if err := s.authorize(actor, access.ResourceAuthor, access.CanView); err != nil {
		return models.Author{}, err
	}
	return s.store.GetAuthor(ctx, id)
}

func (s *Service) CreateAuthor(ctx context.Context, actor access.Actor, in AuthorInput) (models.Author, error) {
	if err := s.authorize(actor, access.ResourceAuthor, access.CanCreate); err != nil {
		return models.Author{}, err
	}
	name := strings.TrimSpace(in.Name)
	if len([]rune(name)) < 2 || len([]rune(name)) > 100 {
		return models.Author{}, apperr.Validation("author name must be 2-100 characters")
	}
	if !strings.ContainsFunc(name, unicode.IsLetter) {
		return models.Author{}, apperr.Validation("author name must contain at least one letter")
	}
	a := models.Author{Name: name}
	if err := s.store.CreateAuthor(ctx, &a); err != nil {
		return models.Author{}, err
	}
	return a, nil
}
