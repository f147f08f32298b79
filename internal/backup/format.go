// Package backup exports the library as a plain text document.
package backup

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/amaumene/seenarr/internal/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Format renders both lists as a human-readable document. Titles are ordered
// with a locale-aware collation; items without a title sort last.
func Format(state *models.LibraryState, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "seenarr backup %s\n", now.Format(time.RFC3339))
	writeSection(&b, "WATCHLIST", state.Watchlist)
	writeSection(&b, "LIBRARY", state.Watched)

	return b.String()
}

func writeSection(b *strings.Builder, header string, items []models.MediaItem) {
	fmt.Fprintf(b, "\n%s (%d)\n", header, len(items))
	for _, item := range sortedByTitle(items) {
		b.WriteString(formatLine(item))
		b.WriteByte('\n')
	}
}

func formatLine(item models.MediaItem) string {
	title := item.Title
	if title == "" {
		title = item.Key()
	}
	if year := item.Year(); year != "" {
		return fmt.Sprintf("- %s (%s) [%s]", title, year, item.MediaType)
	}
	return fmt.Sprintf("- %s [%s]", title, item.MediaType)
}

func sortedByTitle(items []models.MediaItem) []models.MediaItem {
	out := make([]models.MediaItem, len(items))
	copy(out, items)

	c := collate.New(language.English, collate.IgnoreCase, collate.IgnoreDiacritics)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Title, out[j].Title
		if a == "" || b == "" {
			return a != "" && b == ""
		}
		return c.CompareString(a, b) < 0
	})
	return out
}
