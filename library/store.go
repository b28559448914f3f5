package library

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store provides high-level helpers around a SQLite connection. It is
// the single shared mutable resource between sessions: every catalog
// mutation funnels through one of its transactions.
type Store struct {
	db *sql.DB

	insertBookStmt    *sql.Stmt
	insertProfileStmt *sql.Stmt
}

// NewStore opens (or creates) the SQLite database at dbPath, applies
// schema migrations, and prepares common statements.
func NewStore(dbPath string) (*Store, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Enable busy_timeout and foreign keys.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	store := &Store{db: db}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases prepared statements and closes the DB.
func (s *Store) Close() error {
	if s.insertBookStmt != nil {
		s.insertBookStmt.Close()
	}
	if s.insertProfileStmt != nil {
		s.insertProfileStmt.Close()
	}
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL UNIQUE,
            role TEXT NOT NULL DEFAULT 'member',
            password_hash TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS books (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            genre TEXT NOT NULL,
            isbn TEXT NOT NULL,
            description TEXT,
            rating REAL,
            available BOOLEAN NOT NULL DEFAULT 1
        );`,
		`CREATE TABLE IF NOT EXISTS borrowed_books (
            id TEXT PRIMARY KEY,
            book_id TEXT NOT NULL REFERENCES books(id),
            user_id TEXT NOT NULL REFERENCES profiles(id),
            borrowed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            returned_at DATETIME
        );`,
		// At most one active borrow per book.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_active_borrow
            ON borrowed_books(book_id) WHERE returned_at IS NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_borrow_user
            ON borrowed_books(user_id, returned_at);`,
		`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, schemaVersion); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (s *Store) prepareStatements() error {
	var err error
	if s.insertBookStmt, err = s.db.Prepare(
		`INSERT INTO books(id,title,author,genre,isbn,description,rating,available) VALUES(?,?,?,?,?,?,?,1)`); err != nil {
		return err
	}
	if s.insertProfileStmt, err = s.db.Prepare(
		`INSERT INTO profiles(id,name,role,password_hash) VALUES(?,?,?,?)`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Books
// ---------------------------------------------------------------------------

const bookColumns = `id,title,author,genre,isbn,COALESCE(description,''),COALESCE(rating,0),available`

func scanBook(row interface{ Scan(...any) error }) (*Book, error) {
	var b Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.ISBN, &b.Description, &b.Rating, &b.Available)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// InsertBook assigns a fresh id, persists the book as available, and
// fills the generated fields back into b.
func (s *Store) InsertBook(b *Book) error {
	b.ID = uuid.NewString()
	b.Available = true
	var desc, rating any
	if b.Description != "" {
		desc = b.Description
	}
	if b.Rating != 0 {
		rating = b.Rating
	}
	if _, err := s.insertBookStmt.Exec(b.ID, b.Title, b.Author, b.Genre, b.ISBN, desc, rating); err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// GetBook fetches a single book.
func (s *Store) GetBook(id string) (*Book, error) {
	b, err := scanBook(s.db.QueryRow(`SELECT `+bookColumns+` FROM books WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBooks returns the full catalog ordered by title ascending.
func (s *Store) ListBooks() ([]Book, error) {
	rows, err := s.db.Query(`SELECT ` + bookColumns + ` FROM books ORDER BY title ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

// DeleteBook removes the book together with its borrow history, all in
// one transaction. borrowed_books.book_id references books(id), so the
// history rows must go first; an active borrow does not block the
// delete (force-return policy).
func (s *Store) DeleteBook(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM books WHERE id=?)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrBookNotFound
	}

	if _, err := tx.Exec(`DELETE FROM borrowed_books WHERE book_id=?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM books WHERE id=?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Circulation
// ---------------------------------------------------------------------------

// BorrowBook records the borrow and flips availability in one
// transaction. When two sessions race for the same book, the first
// commit wins and the loser gets ErrBookUnavailable.
func (s *Store) BorrowBook(userID, bookID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var avail bool
	err = tx.QueryRow(`SELECT available FROM books WHERE id=?`, bookID).Scan(&avail)
	if err == sql.ErrNoRows {
		return ErrBookNotFound
	}
	if err != nil {
		return err
	}
	if !avail {
		return ErrBookUnavailable
	}

	if _, err := tx.Exec(`INSERT INTO borrowed_books(id,book_id,user_id,borrowed_at) VALUES(?,?,?,?)`,
		uuid.NewString(), bookID, userID, time.Now().UTC()); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE books SET available=0 WHERE id=?`, bookID); err != nil {
		return err
	}
	return tx.Commit()
}

// ReturnBook stamps the active borrow for the (user, book) pair and
// flips availability back, atomically.
func (s *Store) ReturnBook(userID, bookID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var recordID string
	err = tx.QueryRow(`SELECT id FROM borrowed_books WHERE book_id=? AND user_id=? AND returned_at IS NULL`,
		bookID, userID).Scan(&recordID)
	if err == sql.ErrNoRows {
		return ErrNotBorrowed
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`UPDATE borrowed_books SET returned_at=? WHERE id=?`, time.Now().UTC(), recordID); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE books SET available=1 WHERE id=?`, bookID); err != nil {
		return err
	}
	return tx.Commit()
}

// ActiveBorrows returns the user's active borrow records, newest first,
// with the referenced book ids resolvable against the catalog.
func (s *Store) ActiveBorrows(userID string) ([]BorrowRecord, error) {
	rows, err := s.db.Query(`SELECT id,book_id,user_id,borrowed_at FROM borrowed_books
        WHERE user_id=? AND returned_at IS NULL ORDER BY borrowed_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []BorrowRecord
	for rows.Next() {
		var r BorrowRecord
		if err := rows.Scan(&r.ID, &r.BookID, &r.UserID, &r.BorrowedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
