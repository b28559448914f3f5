package library

import "errors"

var (
	// ErrBookNotFound is returned when a book id resolves to no row.
	ErrBookNotFound = errors.New("book not found")

	// ErrBookUnavailable is returned when a borrow is attempted on a book
	// that already has an active borrow. The store transaction is the
	// arbiter: a session losing a race to another session sees this error
	// and must re-fetch.
	ErrBookUnavailable = errors.New("book is not available")

	// ErrNotBorrowed is returned when a return is attempted without a
	// matching active borrow for the (user, book) pair.
	ErrNotBorrowed = errors.New("no active borrow for this book")

	// ErrDuplicateName is returned when registering a profile whose name
	// is already taken.
	ErrDuplicateName = errors.New("profile name already registered")

	// ErrProfileNotFound is returned when a profile lookup fails.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrBadCredentials is returned when sign-in fails. The same error
	// covers unknown names and wrong passwords.
	ErrBadCredentials = errors.New("invalid name or password")
)
