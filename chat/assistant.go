// Package chat implements the library chat assistant: book summaries
// when the user names a catalog entry, general reading help otherwise.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"smartlibrary/library"
)

// TextGenerator is the language-model collaborator. *gemini.Client
// satisfies it.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Sender tags who produced a transcript entry.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one transcript entry.
type Message struct {
	Sender  Sender
	Content string
	At      time.Time
}

const greeting = "Hello! I'm your library assistant. I can help you find book summaries " +
	"and recommendations. What book are you interested in?"

const apology = "I apologize, but I'm having trouble connecting to my knowledge base " +
	"right now. Please try again later."

// maxPromptBooks bounds the book list embedded in general prompts.
const maxPromptBooks = 10

// Assistant holds a catalog snapshot and the running transcript.
type Assistant struct {
	llm      TextGenerator
	books    []library.Book
	messages []Message
}

// NewAssistant seeds the transcript with the greeting.
func NewAssistant(llm TextGenerator, books []library.Book) *Assistant {
	return &Assistant{
		llm:      llm,
		books:    books,
		messages: []Message{{Sender: SenderBot, Content: greeting, At: time.Now()}},
	}
}

// SetBooks replaces the catalog snapshot, e.g. after a reload.
func (a *Assistant) SetBooks(books []library.Book) { a.books = books }

// Messages returns the transcript so far.
func (a *Assistant) Messages() []Message { return a.messages }

// findBook matches the query against title or author, case-insensitive.
func (a *Assistant) findBook(query string) *library.Book {
	q := strings.ToLower(query)
	for i := range a.books {
		if strings.Contains(strings.ToLower(a.books[i].Title), q) ||
			strings.Contains(strings.ToLower(a.books[i].Author), q) {
			return &a.books[i]
		}
	}
	return nil
}

// buildPrompt picks between a targeted summary prompt and a general
// assistant prompt listing a prefix of the collection.
func (a *Assistant) buildPrompt(input string) string {
	if book := a.findBook(input); book != nil {
		return fmt.Sprintf("Please provide a detailed summary of the book %q by %s. "+
			"Include the main plot, themes, and key characters. The book is in the %s genre. "+
			"Keep the summary engaging and informative, around 200-300 words.",
			book.Title, book.Author, book.Genre)
	}

	listed := a.books
	if len(listed) > maxPromptBooks {
		listed = listed[:maxPromptBooks]
	}
	titles := make([]string, 0, len(listed))
	for _, b := range listed {
		titles = append(titles, fmt.Sprintf("%q by %s", b.Title, b.Author))
	}
	return fmt.Sprintf("You are a helpful library assistant. The user asked: %q.\n\n"+
		"We have these books available in our library: %s and many more.\n\n"+
		"Please provide helpful information about books, reading recommendations, or answer "+
		"their question in a friendly and informative way. If they're looking for a specific "+
		"book or genre, suggest relevant titles from our collection.",
		input, strings.Join(titles, ", "))
}

// Ask records the user message, queries the collaborator, and records
// the reply. On failure the canned apology is recorded and returned
// together with the error; the session itself never fails.
func (a *Assistant) Ask(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty message")
	}
	a.messages = append(a.messages, Message{Sender: SenderUser, Content: input, At: time.Now()})

	reply, err := a.llm.GenerateText(ctx, a.buildPrompt(input))
	if err != nil {
		a.messages = append(a.messages, Message{Sender: SenderBot, Content: apology, At: time.Now()})
		return apology, err
	}

	a.messages = append(a.messages, Message{Sender: SenderBot, Content: reply, At: time.Now()})
	return reply, nil
}
