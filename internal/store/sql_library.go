package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"example.com/socialapi/internal/apperr"
	"example.com/socialapi/internal/models"
	"gorm.io/gorm"
)

// DefaultBookOrdering is used when the caller gives none.
var DefaultBookOrdering = []string{"-publication_year", "title"}

var bookOrderColumns = map[string]string{
	"id":               "books.id",
	"title":            "books.title",
	"publication_year": "books.publication_year",
	"author__name":     "authors.name",
}

// ValidBookOrdering reports whether field (optionally "-" prefixed) can be ordered by.
func ValidBookOrdering(field string) bool {
	_, ok := bookOrderColumns[strings.TrimPrefix(field, "-")]
	return ok
}

func (s *SQLStore) ListBooks(ctx context.Context, f BookFilter) ([]models.Book, error) {
	q := s.db.WithContext(ctx).
		Model(&models.Book{}).
		Select("books.*").
		Joins("JOIN authors ON authors.id = books.author_id")

	if f.AuthorID != 0 {
		q = q.Where("books.author_id = ?", f.AuthorID)
	}
	if f.PublicationYear != 0 {
		q = q.Where("books.publication_year = ?", f.PublicationYear)
	}
	if f.YearFrom != 0 {
		q = q.Where("books.publication_year >= ?", f.YearFrom)
	}
	if f.YearTo != 0 {
		q = q.Where("books.publication_year <= ?", f.YearTo)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("(LOWER(books.title) LIKE ? OR LOWER(authors.name) LIKE ?)", like, like)
	}

	ordering := f.Ordering
	if len(ordering) == 0 {
		ordering = DefaultBookOrdering
	}
	for _, field := range ordering {
		col, ok := bookOrderColumns[strings.TrimPrefix(field, "-")]
		if !ok {
			return nil, apperr.Validation("cannot order by %q", field)
		}
		if strings.HasPrefix(field, "-") {
			col += " DESC"
		}
		q = q.Order(col)
	}
	q = q.Order("books.id")

	var books []models.Book
	if err := q.Find(&books).Error; err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

func (s *SQLStore) GetBook(ctx context.Context, id int64) (models.Book, error) {
	var b models.Book
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&b).Error
	return b, notFound(err, "book %d not found", id)
}

func (s *SQLStore) checkAuthor(ctx context.Context, id int64) error {
	var cnt int64
	if err := s.db.WithContext(ctx).Model(&models.Author{}).Where("id = ?", id).Count(&cnt).Error; err != nil {
		return err
	}
	if cnt == 0 {
		return apperr.Validation("author %d does not exist", id)
	}
	return nil
}

func (s *SQLStore) CreateBook(ctx context.Context, b *models.Book) error {
	if err := s.checkAuthor(ctx, b.AuthorID); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Omit("Author").Create(b).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict("book %q by author %d already exists", b.Title, b.AuthorID)
	}
	if err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	return nil
}

func (s *SQLStore) UpdateBook(ctx context.Context, b *models.Book) error {
	if err := s.checkAuthor(ctx, b.AuthorID); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.Book{}).Where("id = ?", b.ID).
		Updates(map[string]any{
			"title":            b.Title,
			"publication_year": b.PublicationYear,
			"author_id":        b.AuthorID,
		})
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return apperr.Conflict("book %q by author %d already exists", b.Title, b.AuthorID)
	}
	if res.Error != nil {
		return fmt.Errorf("update book: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("book %d not found", b.ID)
	}
	return nil
}

func (s *SQLStore) DeleteBook(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Book{})
	if res.Error != nil {
		return fmt.Errorf("delete book: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("book %d not found", id)
	}
	return nil
}

func (s *SQLStore) BookStats(ctx context.Context) (models.BookStats, error) {
	var st models.BookStats
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.Book{}).Count(&st.TotalBooks).Error; err != nil {
		return st, err
	}
	if err := db.Model(&models.Author{}).Count(&st.TotalAuthors).Error; err != nil {
		return st, err
	}
	if st.TotalBooks > 0 {
		var latest, oldest models.Book
		if err := db.Order("publication_year DESC").Order("id").Take(&latest).Error; err != nil {
			return st, err
		}
		if err := db.Order("publication_year").Order("id").Take(&oldest).Error; err != nil {
			return st, err
		}
		st.LatestBook, st.OldestBook = &latest, &oldest
	}

	st.ByDecade = []models.DecadeCount{}
	err := db.Model(&models.Book{}).
		Select("(publication_year / 10) * 10 AS decade, COUNT(*) AS count").
		Group("decade").Order("decade").
		Scan(&st.ByDecade).Error
	if err != nil {
		return st, fmt.Errorf("books by decade: %w", err)
	}
	return st, nil
}

func (s *SQLStore) ListAuthors(ctx context.Context, search string) ([]models.Author, error) {
	q := s.db.WithContext(ctx).Model(&models.Author{})
	if term := strings.TrimSpace(search); term != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(term)+"%")
	}
	var authors []models.Author
	if err := q.Order("name").Order("id").Find(&authors).Error; err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	return authors, nil
}

func (s *SQLStore) GetAuthor(ctx context.Context, id int64) (models.Author, error) {
	var a models.Author
	err := s.db.WithContext(ctx).
		Preload("Books", func(db *gorm.DB) *gorm.DB {
			return db.Order("publication_year DESC").Order("title")
		}).
		Where("id = ?", id).Take(&a).Error
	return a, notFound(err, "author %d not found", id)
}

func (s *SQLStore) CreateAuthor(ctx context.Context, a *models.Author) error {
	if err := s.db.WithContext(ctx).Omit("Books").Create(a).Error; err != nil {
		return fmt.Errorf("create author: %w", err)
	}
	return nil
}
