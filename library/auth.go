package library

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// RegisterProfile creates a new profile with a bcrypt-hashed password.
func (s *Store) RegisterProfile(name, password string, role Role) (*Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("profile name cannot be empty")
	}
	if strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("password cannot be empty")
	}
	if role == "" {
		role = RoleMember
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	p := &Profile{
		ID:           uuid.NewString(),
		Name:         name,
		Role:         role,
		PasswordHash: string(hash),
	}
	if _, err := s.insertProfileStmt.Exec(p.ID, p.Name, string(p.Role), p.PasswordHash); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return p, nil
}

// Authenticate verifies the password for the named profile. Unknown
// names and wrong passwords are indistinguishable to the caller.
func (s *Store) Authenticate(name, password string) (*Profile, error) {
	var p Profile
	var role string
	err := s.db.QueryRow(`SELECT id,name,role,password_hash FROM profiles WHERE name=?`, strings.TrimSpace(name)).
		Scan(&p.ID, &p.Name, &role, &p.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	p.Role = Role(role)

	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
		return nil, ErrBadCredentials
	}
	return &p, nil
}

// CountProfiles returns the number of registered profiles.
func (s *Store) CountProfiles() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// GetProfile fetches a profile by id.
func (s *Store) GetProfile(id string) (*Profile, error) {
	var p Profile
	var role string
	err := s.db.QueryRow(`SELECT id,name,role,password_hash FROM profiles WHERE id=?`, id).
		Scan(&p.ID, &p.Name, &role, &p.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Role = Role(role)
	return &p, nil
}
