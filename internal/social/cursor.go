package social

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"example.com/socialapi/internal/apperr"
	"example.com/socialapi/internal/models"
)

// Cursor is the keyset position after which the next feed page starts.
type Cursor = models.FeedCursor

// FeedPage is one page of a reader's feed. Next is nil on the last page.
type FeedPage struct {
	Posts []models.Post `json:"posts"`
	Next  *Cursor       `json:"-"`
}

// EncodeCursor renders c as an opaque URL-safe token.
func EncodeCursor(c Cursor) string {
	raw := strconv.FormatInt(c.CreatedAt.UnixMilli(), 10) + ":" + c.PostID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor.
func DecodeCursor(s string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, apperr.Validation("invalid cursor")
	}
	ms, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return Cursor{}, apperr.Validation("invalid cursor")
	}
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return Cursor{}, apperr.Validation("invalid cursor")
	}
	return Cursor{CreatedAt: time.UnixMilli(n).UTC(), PostID: id}, nil
}
