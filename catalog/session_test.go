package catalog

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartlibrary/library"
)

// fakeStore is an in-memory Store double enforcing the same invariants
// as the SQLite store.
type fakeStore struct {
	books  []library.Book
	active map[string][]string // userID -> active bookIDs

	listErr   error
	borrowErr error
	nextID    int
}

func newFakeStore(books ...library.Book) *fakeStore {
	return &fakeStore{books: books, active: make(map[string][]string)}
}

func (f *fakeStore) ListBooks() ([]library.Book, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]library.Book, len(f.books))
	copy(out, f.books)
	return out, nil
}

func (f *fakeStore) InsertBook(b *library.Book) error {
	f.nextID++
	b.ID = fmt.Sprintf("gen-%d", f.nextID)
	b.Available = true
	f.books = append(f.books, *b)
	return nil
}

func (f *fakeStore) DeleteBook(id string) error {
	for i := range f.books {
		if f.books[i].ID == id {
			f.books = append(f.books[:i], f.books[i+1:]...)
			for user, ids := range f.active {
				for j, bid := range ids {
					if bid == id {
						f.active[user] = append(ids[:j], ids[j+1:]...)
						break
					}
				}
			}
			return nil
		}
	}
	return library.ErrBookNotFound
}

func (f *fakeStore) BorrowBook(userID, bookID string) error {
	if f.borrowErr != nil {
		return f.borrowErr
	}
	for i := range f.books {
		if f.books[i].ID == bookID {
			if !f.books[i].Available {
				return library.ErrBookUnavailable
			}
			f.books[i].Available = false
			f.active[userID] = append(f.active[userID], bookID)
			return nil
		}
	}
	return library.ErrBookNotFound
}

func (f *fakeStore) ReturnBook(userID, bookID string) error {
	ids := f.active[userID]
	for j, bid := range ids {
		if bid == bookID {
			f.active[userID] = append(ids[:j], ids[j+1:]...)
			for i := range f.books {
				if f.books[i].ID == bookID {
					f.books[i].Available = true
				}
			}
			return nil
		}
	}
	return library.ErrNotBorrowed
}

func (f *fakeStore) ActiveBorrows(userID string) ([]library.BorrowRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var records []library.BorrowRecord
	for _, id := range f.active[userID] {
		records = append(records, library.BorrowRecord{UserID: userID, BookID: id})
	}
	return records, nil
}

func member() library.Profile {
	return library.Profile{ID: "u1", Name: "Alice", Role: library.RoleMember}
}

func admin() library.Profile {
	return library.Profile{ID: "a1", Name: "Root", Role: library.RoleAdmin}
}

func loadedSession(t *testing.T, store Store, user library.Profile) *Session {
	t.Helper()
	s := NewSession(store, user, nil)
	require.NoError(t, s.Load())
	return s
}

func TestBorrowAlternation(t *testing.T) {
	store := newFakeStore(
		library.Book{ID: "1", Title: "1984", Author: "Orwell", Genre: "Fiction", Available: true},
	)
	s := loadedSession(t, store, member())

	require.NoError(t, s.Borrow("1"))
	assert.False(t, s.Books()[0].Available)
	assert.Equal(t, []string{"1"}, s.BorrowedIDs())

	// A second borrow of the same book must fail without touching state.
	err := s.Borrow("1")
	assert.ErrorIs(t, err, ErrAlreadyBorrowed)
	assert.Equal(t, []string{"1"}, s.BorrowedIDs(), "borrowed set must not double-append")
	assert.False(t, s.Books()[0].Available)

	require.NoError(t, s.Return("1"))
	assert.True(t, s.Books()[0].Available)
	assert.Empty(t, s.BorrowedIDs())

	// Returning an available book is rejected, not silently accepted.
	assert.ErrorIs(t, s.Return("1"), library.ErrNotBorrowed)

	// The cycle can repeat: Available -> Borrowed -> Available.
	require.NoError(t, s.Borrow("1"))
	require.NoError(t, s.Return("1"))
}

func TestBorrowUnavailableBook(t *testing.T) {
	store := newFakeStore(
		library.Book{ID: "1", Title: "Dune", Genre: "Sci-Fi", Available: false},
	)
	s := loadedSession(t, store, member())

	assert.ErrorIs(t, s.Borrow("1"), library.ErrBookUnavailable)
	assert.Empty(t, s.BorrowedIDs())
}

func TestBorrowUnknownBook(t *testing.T) {
	s := loadedSession(t, newFakeStore(), member())
	assert.ErrorIs(t, s.Borrow("missing"), library.ErrBookNotFound)
}

func TestBorrowLostRaceLeavesStateUntouched(t *testing.T) {
	// The local view says available, but another session committed
	// first. The store rejection is authoritative and no local mutation
	// may be applied.
	store := newFakeStore(
		library.Book{ID: "1", Title: "Dune", Genre: "Sci-Fi", Available: true},
	)
	s := loadedSession(t, store, member())
	store.borrowErr = library.ErrBookUnavailable

	assert.ErrorIs(t, s.Borrow("1"), library.ErrBookUnavailable)
	assert.True(t, s.Books()[0].Available, "local availability must not flip on a rejected write")
	assert.Empty(t, s.BorrowedIDs())
}

func TestLoadFailureKeepsStaleList(t *testing.T) {
	store := newFakeStore(
		library.Book{ID: "1", Title: "Dune", Genre: "Sci-Fi", Available: true},
	)
	s := loadedSession(t, store, member())
	require.Len(t, s.Books(), 1)

	store.listErr = errors.New("connection refused")
	err := s.Load()

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Len(t, s.Books(), 1, "stale list must survive a failed load")
	assert.Len(t, s.Filtered(), 1)
}

func TestLoadIdempotent(t *testing.T) {
	store := newFakeStore(
		library.Book{ID: "1", Title: "1984", Genre: "Fiction", Available: true},
		library.Book{ID: "2", Title: "Dune", Genre: "Sci-Fi", Available: true},
	)
	s := loadedSession(t, store, member())
	first := s.Filtered()

	require.NoError(t, s.Load())
	assert.Equal(t, first, s.Filtered())
}

func TestFilteredViewRecomputedOnMutation(t *testing.T) {
	store := newFakeStore(
		library.Book{ID: "1", Title: "1984", Genre: "Fiction", Available: true},
		library.Book{ID: "2", Title: "Dune", Genre: "Sci-Fi", Available: true},
	)
	s := loadedSession(t, store, member())
	s.SetAvailableOnly(true)
	require.Len(t, s.Filtered(), 2)

	// Borrowing flips availability and must synchronously shrink the view.
	require.NoError(t, s.Borrow("1"))
	require.Len(t, s.Filtered(), 1)
	assert.Equal(t, "Dune", s.Filtered()[0].Title)

	require.NoError(t, s.Return("1"))
	assert.Len(t, s.Filtered(), 2)
}

func TestSearchScenario(t *testing.T) {
	store := newFakeStore(
		library.Book{ID: "1", Title: "1984", Author: "Orwell", Genre: "Fiction", Available: true},
		library.Book{ID: "2", Title: "Dune", Author: "Herbert", Genre: "Sci-Fi", Available: true},
	)
	s := loadedSession(t, store, member())

	s.SetSearchTerm("orwell")
	require.Len(t, s.Filtered(), 1)
	assert.Equal(t, "1984", s.Filtered()[0].Title)

	s.SetSearchTerm("")
	assert.Len(t, s.Filtered(), 2)
}

func TestAddBookValidation(t *testing.T) {
	s := loadedSession(t, newFakeStore(), admin())

	cases := []struct {
		fields BookFields
		field  string
	}{
		{BookFields{Author: "a", Genre: "g", ISBN: "i"}, "title"},
		{BookFields{Title: "t", Genre: "g", ISBN: "i"}, "author"},
		{BookFields{Title: "t", Author: "a", ISBN: "i"}, "genre"},
		{BookFields{Title: "t", Author: "a", Genre: "g", ISBN: "   "}, "isbn"},
	}
	for _, tc := range cases {
		_, err := s.AddBook(tc.fields)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, tc.field, verr.Field)
	}
	assert.Empty(t, s.Books(), "failed validation must not mutate the list")
}

func TestAddBookAppendsAndRecomputes(t *testing.T) {
	s := loadedSession(t, newFakeStore(), admin())

	book, err := s.AddBook(BookFields{
		Title: "Cosmos", Author: "Carl Sagan", Genre: "Science", ISBN: "978-0345539434", Rating: 4.7,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, book.ID)
	assert.True(t, book.Available)
	require.Len(t, s.Filtered(), 1)
	assert.Equal(t, []string{AllGenres, "Science"}, s.Genres())
}

func TestDeleteBookRequiresAdmin(t *testing.T) {
	store := newFakeStore(
		library.Book{ID: "1", Title: "Dune", Genre: "Sci-Fi", Available: true},
	)
	s := loadedSession(t, store, member())

	assert.ErrorIs(t, s.DeleteBook("1"), ErrNotPermitted)
	assert.Len(t, s.Books(), 1)
}

func TestDeleteBorrowedBookDropsBorrowedID(t *testing.T) {
	store := newFakeStore(
		library.Book{ID: "1", Title: "Dune", Genre: "Sci-Fi", Available: true},
	)
	s := loadedSession(t, store, admin())
	require.NoError(t, s.Borrow("1"))

	require.NoError(t, s.DeleteBook("1"))
	assert.Empty(t, s.Books())
	assert.Empty(t, s.BorrowedIDs())
	assert.Empty(t, s.Filtered())

	assert.ErrorIs(t, s.DeleteBook("1"), library.ErrBookNotFound)
}

func TestViewAccessorsReturnCopies(t *testing.T) {
	store := newFakeStore(
		library.Book{ID: "1", Title: "1984", Genre: "Fiction", Available: true},
		library.Book{ID: "2", Title: "Dune", Genre: "Sci-Fi", Available: true},
	)
	s := loadedSession(t, store, member())
	require.NoError(t, s.Borrow("1"))

	// Writes to a returned view must not leak back into the session.
	s.Books()[0].Title = "mutated"
	assert.Equal(t, "1984", s.Books()[0].Title)

	s.Filtered()[0].Available = true
	assert.False(t, s.Filtered()[0].Available)

	s.BorrowedIDs()[0] = "2"
	assert.True(t, s.IsBorrowed("1"))
	assert.False(t, s.IsBorrowed("2"))

	s.Genres()[0] = "None"
	assert.Equal(t, AllGenres, s.Genres()[0])
}

func TestBorrowedAndAvailableViews(t *testing.T) {
	store := newFakeStore(
		library.Book{ID: "1", Title: "1984", Genre: "Fiction", Available: true},
		library.Book{ID: "2", Title: "Dune", Genre: "Sci-Fi", Available: true},
		library.Book{ID: "3", Title: "Cosmos", Genre: "Science", Available: false},
	)
	s := loadedSession(t, store, member())
	require.NoError(t, s.Borrow("1"))

	mine := s.Borrowed()
	require.Len(t, mine, 1)
	assert.Equal(t, "1984", mine[0].Title)

	// Available excludes both borrowed-by-me and borrowed-by-others.
	avail := s.Available()
	require.Len(t, avail, 1)
	assert.Equal(t, "Dune", avail[0].Title)
}
