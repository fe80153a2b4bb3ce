package store

import (
	"slices"
	"strings"

	"example.com/socialapi/internal/models"
)

// compareFeed orders newest first, breaking created_at ties by id descending.
func compareFeed(a, b models.Post) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(b.ID, a.ID)
}

// mergeFeedPages merges per-author pages into the first limit posts of the feed.
func mergeFeedPages(pages [][]models.Post, limit int) []models.Post {
	var all []models.Post
	for _, p := range pages {
		all = append(all, p...)
	}
	slices.SortFunc(all, compareFeed)
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}
