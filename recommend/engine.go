// Package recommend asks the language-model collaborator for three
// titles suited to the user's borrowing history, resolving the answer
// back to catalog entries. Failures never propagate: the engine falls
// back to a deterministic rating sort.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"smartlibrary/library"
)

// maxRecommendations is how many titles the prompt asks for and how
// many parsed segments are considered.
const maxRecommendations = 3

// maxPromptBooks caps the available-book listing in the prompt so it
// cannot grow without bound with the catalog.
const maxPromptBooks = 25

// TextGenerator is the language-model collaborator. *gemini.Client
// satisfies it.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Recommendation is the engine's output. Fallback marks the
// deterministic rating-sort path (API error, parse failure, or
// hallucinated titles).
type Recommendation struct {
	Books    []library.Book
	Fallback bool
}

// Engine builds prompts and resolves responses. It never mutates the
// book lists it is given.
type Engine struct {
	llm TextGenerator
	log *zap.Logger
}

// NewEngine creates an engine around the collaborator.
func NewEngine(llm TextGenerator, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{llm: llm, log: log}
}

// Recommend asks for three suitable titles given the user's borrowing
// history and the currently available books. The returned list holds
// only resolved catalog entries; it may be shorter than three and is
// never padded from the fallback when at least one title resolves.
func (e *Engine) Recommend(ctx context.Context, history, available []library.Book) Recommendation {
	if e.llm == nil {
		return Recommendation{Books: fallback(available), Fallback: true}
	}

	text, err := e.llm.GenerateText(ctx, buildPrompt(history, available))
	if err != nil {
		e.log.Warn("recommendation request failed, using rating fallback", zap.Error(err))
		return Recommendation{Books: fallback(available), Fallback: true}
	}

	books := resolveTitles(text, available)
	if len(books) == 0 {
		e.log.Warn("no recommended title resolved, using rating fallback",
			zap.String("response", text))
		return Recommendation{Books: fallback(available), Fallback: true}
	}
	return Recommendation{Books: books}
}

// buildPrompt enumerates the borrowing history and a bounded prefix of
// the available books, asking for exactly three comma-separated titles.
func buildPrompt(history, available []library.Book) string {
	var sb strings.Builder
	sb.WriteString("Based on the following user's reading history and available books, ")
	sb.WriteString("recommend 3 books that would be most suitable for them.\n\n")

	sb.WriteString("User's previously borrowed books:\n")
	for _, b := range history {
		fmt.Fprintf(&sb, "- %s by %s (%s)\n", b.Title, b.Author, b.Genre)
	}

	sb.WriteString("\nAvailable books in library:\n")
	listed := available
	if len(listed) > maxPromptBooks {
		listed = listed[:maxPromptBooks]
	}
	for _, b := range listed {
		rating := "N/A"
		if b.Rating > 0 {
			rating = fmt.Sprintf("%.1f", b.Rating)
		}
		fmt.Fprintf(&sb, "- %s by %s (%s) - Rating: %s\n", b.Title, b.Author, b.Genre, rating)
	}

	sb.WriteString("\nPlease respond with just the titles of 3 recommended books from the ")
	sb.WriteString("available list, separated by commas. Consider genre preferences and ratings.")
	return sb.String()
}

// resolveTitles parses the response as comma-separated titles and maps
// each to an available book by case-insensitive substring match in
// either direction. Unresolved titles are dropped, not padded.
func resolveTitles(text string, available []library.Book) []library.Book {
	segments := strings.Split(text, ",")
	if len(segments) > maxRecommendations {
		segments = segments[:maxRecommendations]
	}

	var books []library.Book
	for _, seg := range segments {
		title := strings.ToLower(strings.TrimSpace(seg))
		if title == "" {
			continue
		}
		for _, b := range available {
			bookTitle := strings.ToLower(b.Title)
			if strings.Contains(bookTitle, title) || strings.Contains(title, bookTitle) {
				books = append(books, b)
				break
			}
		}
	}
	return books
}

// fallback returns the top three available books by rating descending,
// missing ratings counting as zero, ties keeping original list order.
func fallback(available []library.Book) []library.Book {
	sorted := make([]library.Book, len(available))
	copy(sorted, available)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rating > sorted[j].Rating
	})
	if len(sorted) > maxRecommendations {
		sorted = sorted[:maxRecommendations]
	}
	return sorted
}
