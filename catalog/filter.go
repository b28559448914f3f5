package catalog

import (
	"strings"

	"smartlibrary/library"
)

// AllGenres is the sentinel genre meaning "no genre filter".
const AllGenres = "All"

// FilterState is the ephemeral view state of one session. It is owned
// by the Session and recomputed into a filtered view, never persisted.
type FilterState struct {
	SearchTerm    string
	SelectedGenre string
	AvailableOnly bool
}

// NewFilterState returns the neutral filter: empty search, all genres,
// both available and borrowed books shown.
func NewFilterState() FilterState {
	return FilterState{SelectedGenre: AllGenres}
}

// Matches reports whether the book satisfies the filter. The search
// term matches case-insensitively against title, author, and genre; an
// empty term matches everything.
func Matches(b library.Book, f FilterState) bool {
	term := strings.ToLower(f.SearchTerm)
	textMatch := strings.Contains(strings.ToLower(b.Title), term) ||
		strings.Contains(strings.ToLower(b.Author), term) ||
		strings.Contains(strings.ToLower(b.Genre), term)
	genreMatch := f.SelectedGenre == AllGenres || b.Genre == f.SelectedGenre
	availMatch := !f.AvailableOnly || b.Available
	return textMatch && genreMatch && availMatch
}

// FilterBooks returns, order-preserved, exactly the subset of books
// satisfying the filter.
func FilterBooks(books []library.Book, f FilterState) []library.Book {
	filtered := make([]library.Book, 0, len(books))
	for _, b := range books {
		if Matches(b, f) {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

// GenreOptions derives the selectable genre list: "All" followed by
// each distinct genre in first-occurrence order. The order must be
// stable across recomputations over the same book list.
func GenreOptions(books []library.Book) []string {
	genres := []string{AllGenres}
	seen := make(map[string]bool, len(books))
	for _, b := range books {
		if !seen[b.Genre] {
			seen[b.Genre] = true
			genres = append(genres, b.Genre)
		}
	}
	return genres
}
