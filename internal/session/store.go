package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

// Session is an anonymous caller identity carrying a question quota.
// There are no user accounts; a session is created on demand and expires
// after its TTL.
type Session struct {
	ID             string `json:"id"`
	QuestionsAsked int    `json:"questionsAsked"`
	CreatedAt      string `json:"createdAt"`
	ExpiresAt      string `json:"expiresAt"`
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) Store {
	return Store{db: db}
}

// Create inserts a fresh session and returns the raw bearer token. Only
// the token hash is stored.
func (s Store) Create(ctx context.Context, ttl time.Duration) (string, Session, error) {
	rawToken, err := randomToken(32)
	if err != nil {
		return "", Session{}, fmt.Errorf("generate session token: %w", err)
	}

	id := uuid.NewString()
	expiresAt := time.Now().Add(ttl).UTC().Format(time.RFC3339)
	query := `
INSERT INTO sessions (id, token_hash, questions_asked, expires_at)
VALUES (?, ?, 0, ?)
RETURNING id, questions_asked, created_at, expires_at;
`

	var out Session
	if err := s.db.QueryRowContext(ctx, query, id, hashToken(rawToken), expiresAt).Scan(
		&out.ID,
		&out.QuestionsAsked,
		&out.CreatedAt,
		&out.ExpiresAt,
	); err != nil {
		return "", Session{}, fmt.Errorf("create session: %w", err)
	}

	return rawToken, out, nil
}

// Resolve returns the live session for a raw token, or ErrNotFound when
// the token is unknown or expired.
func (s Store) Resolve(ctx context.Context, rawToken string) (Session, error) {
	if strings.TrimSpace(rawToken) == "" {
		return Session{}, ErrNotFound
	}

	query := `
SELECT id, questions_asked, created_at, expires_at
FROM sessions
WHERE token_hash = ? AND expires_at > ?
LIMIT 1;
`

	var out Session
	err := s.db.QueryRowContext(ctx, query, hashToken(rawToken), time.Now().UTC().Format(time.RFC3339)).Scan(
		&out.ID,
		&out.QuestionsAsked,
		&out.CreatedAt,
		&out.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("resolve session: %w", err)
	}
	return out, nil
}

// IncrementQuestions bumps the quota counter and returns the new count.
func (s Store) IncrementQuestions(ctx context.Context, sessionID string) (int, error) {
	query := `
UPDATE sessions
SET questions_asked = questions_asked + 1
WHERE id = ?
RETURNING questions_asked;
`

	var count int
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment questions: %w", err)
	}
	return count, nil
}

func (s Store) Delete(ctx context.Context, rawToken string) error {
	if strings.TrimSpace(rawToken) == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?;`, hashToken(rawToken))
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
