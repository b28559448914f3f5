package library

import "time"

// Book represents one catalog entry. Availability mirrors the borrow
// records: a book is available iff no active borrow row references it.
type Book struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Genre       string  `json:"genre"`
	ISBN        string  `json:"isbn"`
	Description string  `json:"description,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	Available   bool    `json:"available"`
}

// BorrowRecord relates one user to one book over an interval.
// A nil ReturnedAt means the borrow is still active.
type BorrowRecord struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	BookID     string     `json:"book_id"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	ReturnedAt *time.Time `json:"returned_at"`
}

// Active reports whether the record has not been returned yet.
func (r *BorrowRecord) Active() bool { return r.ReturnedAt == nil }

// Role marks the capability level of a profile.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// IsAdmin reports whether the role grants catalog administration.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// Profile is a registered user of the library.
type Profile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	PasswordHash string `json:"-"` // Don't serialize password hash
}
