// Package catalog holds the per-session catalog state: the in-memory
// book list, the caller's borrowed set, and the derived filtered view.
// Every mutation applies its state transition and the dependent
// recomputation as one logical unit before returning, so a session
// never observes a half-updated view.
package catalog

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"smartlibrary/library"
)

// Store is the external collaborator persisting books and borrow
// records across sessions. *library.Store satisfies it.
type Store interface {
	ListBooks() ([]library.Book, error)
	InsertBook(*library.Book) error
	DeleteBook(id string) error
	BorrowBook(userID, bookID string) error
	ReturnBook(userID, bookID string) error
	ActiveBorrows(userID string) ([]library.BorrowRecord, error)
}

// BookFields carries the add-book form. Title, Author, Genre, and ISBN
// are required; Description and Rating are optional display metadata.
type BookFields struct {
	Title       string
	Author      string
	Genre       string
	ISBN        string
	Description string
	Rating      float64
}

// Session owns the in-memory catalog state for one signed-in user.
// It is single-threaded by design: callers issue one operation at a
// time, matching the event-loop model of the store's other clients.
type Session struct {
	store Store
	user  library.Profile
	log   *zap.Logger

	books    []library.Book
	borrowed []string // book ids with an active borrow by this user, in fetch/append order
	filter   FilterState
	filtered []library.Book
	genres   []string
}

// NewSession creates an empty session for the user. Call Load to
// populate it from the store.
func NewSession(store Store, user library.Profile, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		store:  store,
		user:   user,
		log:    log,
		filter: NewFilterState(),
	}
}

// User returns the session's profile.
func (s *Session) User() library.Profile { return s.user }

// recompute refreshes the derived filtered view and genre options.
// It runs synchronously at the end of every mutation.
func (s *Session) recompute() {
	s.filtered = FilterBooks(s.books, s.filter)
	s.genres = GenreOptions(s.books)
}

// Load fetches the catalog and the caller's active borrow set. On
// failure the prior in-memory state is left untouched and a *FetchError
// is returned; the caller may keep working against the stale list.
func (s *Session) Load() error {
	books, err := s.store.ListBooks()
	if err != nil {
		s.log.Warn("catalog load failed, keeping stale list",
			zap.Int("stale_books", len(s.books)), zap.Error(err))
		return &FetchError{Err: err}
	}
	records, err := s.store.ActiveBorrows(s.user.ID)
	if err != nil {
		s.log.Warn("borrow set load failed, keeping stale list", zap.Error(err))
		return &FetchError{Err: err}
	}

	borrowed := make([]string, 0, len(records))
	for _, r := range records {
		borrowed = append(borrowed, r.BookID)
	}

	s.books = books
	s.borrowed = borrowed
	s.recompute()
	s.log.Debug("catalog loaded",
		zap.Int("books", len(books)), zap.Int("borrowed", len(borrowed)))
	return nil
}

func (s *Session) bookIndex(bookID string) int {
	for i := range s.books {
		if s.books[i].ID == bookID {
			return i
		}
	}
	return -1
}

func (s *Session) borrowedIndex(bookID string) int {
	for i, id := range s.borrowed {
		if id == bookID {
			return i
		}
	}
	return -1
}

// Borrow transitions the book Available→Borrowed for this user. The
// record creation, availability flip, and borrowed-set append are one
// atomic transition from the caller's point of view. A store rejection
// (another session won the race) is authoritative: no local state
// changes and the caller should Load to resync.
func (s *Session) Borrow(bookID string) error {
	if s.borrowedIndex(bookID) >= 0 {
		return ErrAlreadyBorrowed
	}
	i := s.bookIndex(bookID)
	if i < 0 {
		return library.ErrBookNotFound
	}
	if !s.books[i].Available {
		return library.ErrBookUnavailable
	}

	if err := s.store.BorrowBook(s.user.ID, bookID); err != nil {
		if errors.Is(err, library.ErrBookUnavailable) {
			s.log.Info("borrow lost race, local view stale",
				zap.String("book_id", bookID))
		}
		return err
	}

	s.books[i].Available = false
	s.borrowed = append(s.borrowed, bookID)
	s.recompute()
	s.log.Debug("borrowed book",
		zap.String("book_id", bookID), zap.String("title", s.books[i].Title))
	return nil
}

// Return transitions the book Borrowed→Available for this user,
// atomically stamping the record, flipping availability, and removing
// the id from the borrowed set.
func (s *Session) Return(bookID string) error {
	bi := s.borrowedIndex(bookID)
	if bi < 0 {
		return library.ErrNotBorrowed
	}

	if err := s.store.ReturnBook(s.user.ID, bookID); err != nil {
		return err
	}

	if i := s.bookIndex(bookID); i >= 0 {
		s.books[i].Available = true
	}
	s.borrowed = append(s.borrowed[:bi], s.borrowed[bi+1:]...)
	s.recompute()
	s.log.Debug("returned book", zap.String("book_id", bookID))
	return nil
}

// AddBook validates the form, persists the new entry, and appends it to
// the in-memory list. The store assigns the id and initial availability.
func (s *Session) AddBook(fields BookFields) (*library.Book, error) {
	required := []struct{ name, value string }{
		{"title", fields.Title},
		{"author", fields.Author},
		{"genre", fields.Genre},
		{"isbn", fields.ISBN},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return nil, &ValidationError{Field: f.name}
		}
	}

	b := library.Book{
		Title:       strings.TrimSpace(fields.Title),
		Author:      strings.TrimSpace(fields.Author),
		Genre:       strings.TrimSpace(fields.Genre),
		ISBN:        strings.TrimSpace(fields.ISBN),
		Description: strings.TrimSpace(fields.Description),
		Rating:      fields.Rating,
	}
	if err := s.store.InsertBook(&b); err != nil {
		return nil, err
	}

	s.books = append(s.books, b)
	s.recompute()
	s.log.Info("book added",
		zap.String("book_id", b.ID), zap.String("title", b.Title))
	return &b, nil
}

// DeleteBook removes the entry from the catalog. Admin capability is
// checked here, at the dispatch boundary, not in callers. Deletion is a
// terminal transition from either availability state; the store
// force-returns any active borrow as part of the delete.
func (s *Session) DeleteBook(bookID string) error {
	if !s.user.Role.IsAdmin() {
		return ErrNotPermitted
	}
	i := s.bookIndex(bookID)
	if i < 0 {
		return library.ErrBookNotFound
	}

	if err := s.store.DeleteBook(bookID); err != nil {
		return err
	}

	s.books = append(s.books[:i], s.books[i+1:]...)
	if bi := s.borrowedIndex(bookID); bi >= 0 {
		s.borrowed = append(s.borrowed[:bi], s.borrowed[bi+1:]...)
	}
	s.recompute()
	s.log.Info("book deleted", zap.String("book_id", bookID))
	return nil
}

// ---------------------------------------------------------------------------
// Filter state
// ---------------------------------------------------------------------------

// SetSearchTerm updates the free-text query and recomputes the view.
// Both typed input and voice transcripts arrive here.
func (s *Session) SetSearchTerm(term string) {
	s.filter.SearchTerm = term
	s.recompute()
}

// SetGenre updates the genre selection and recomputes the view.
func (s *Session) SetGenre(genre string) {
	s.filter.SelectedGenre = genre
	s.recompute()
}

// SetAvailableOnly updates the availability toggle and recomputes the view.
func (s *Session) SetAvailableOnly(on bool) {
	s.filter.AvailableOnly = on
	s.recompute()
}

// Filter returns the current filter state.
func (s *Session) Filter() FilterState { return s.filter }

// ---------------------------------------------------------------------------
// Views
// ---------------------------------------------------------------------------

// Books returns the full in-memory catalog. All view accessors return
// copies; the session's slices are never handed out for mutation.
func (s *Session) Books() []library.Book {
	out := make([]library.Book, len(s.books))
	copy(out, s.books)
	return out
}

// Filtered returns the derived view for the current filter state.
func (s *Session) Filtered() []library.Book {
	out := make([]library.Book, len(s.filtered))
	copy(out, s.filtered)
	return out
}

// Genres returns the selectable genre options.
func (s *Session) Genres() []string {
	out := make([]string, len(s.genres))
	copy(out, s.genres)
	return out
}

// BorrowedIDs returns the ids of books this user currently has out.
func (s *Session) BorrowedIDs() []string {
	out := make([]string, len(s.borrowed))
	copy(out, s.borrowed)
	return out
}

// IsBorrowed reports whether this user currently has the book out.
func (s *Session) IsBorrowed(bookID string) bool { return s.borrowedIndex(bookID) >= 0 }

// Borrowed resolves the borrowed set against the catalog.
func (s *Session) Borrowed() []library.Book {
	books := make([]library.Book, 0, len(s.borrowed))
	for _, id := range s.borrowed {
		if i := s.bookIndex(id); i >= 0 {
			books = append(books, s.books[i])
		}
	}
	return books
}

// Available returns the books a recommendation can draw from: available
// and not already borrowed by this user.
func (s *Session) Available() []library.Book {
	books := make([]library.Book, 0, len(s.books))
	for _, b := range s.books {
		if b.Available && s.borrowedIndex(b.ID) < 0 {
			books = append(books, b)
		}
	}
	return books
}
