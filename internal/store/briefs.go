package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"intelbrief/backend/internal/research"
)

var ErrNotFound = errors.New("brief not found")

// StoredBrief is one persisted research run. Sources are kept as JSON in
// a single column; the markdown is the delivered artifact.
type StoredBrief struct {
	ID           string            `json:"id"`
	SessionID    string            `json:"sessionId,omitempty"`
	Question     string            `json:"question"`
	Topic        string            `json:"topic"`
	Timeframe    string            `json:"timeframe,omitempty"`
	Markdown     string            `json:"markdown"`
	Sources      []research.Source `json:"sources"`
	EvidenceNote string            `json:"evidenceNote,omitempty"`
	CreatedAt    string            `json:"createdAt"`
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) Store {
	return Store{db: db}
}

func (s Store) InsertBrief(ctx context.Context, sessionID, question string, result research.Result) (StoredBrief, error) {
	sourcesJSON, err := json.Marshal(result.Brief.Sources)
	if err != nil {
		return StoredBrief{}, fmt.Errorf("encode sources: %w", err)
	}

	query := `
INSERT INTO briefs (id, session_id, question, topic, timeframe, markdown, sources_json, evidence_note)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id, COALESCE(session_id, ''), question, topic, timeframe, markdown, sources_json, evidence_note, created_at;
`

	row := s.db.QueryRowContext(ctx, query,
		uuid.NewString(),
		nullable(sessionID),
		question,
		result.Scope.Topic,
		result.Scope.Timeframe,
		result.Brief.Markdown,
		string(sourcesJSON),
		result.Brief.EvidenceNote,
	)
	out, err := scanBrief(row)
	if err != nil {
		return StoredBrief{}, fmt.Errorf("insert brief: %w", err)
	}
	return out, nil
}

func (s Store) GetBrief(ctx context.Context, id string) (StoredBrief, error) {
	query := `
SELECT id, COALESCE(session_id, ''), question, topic, timeframe, markdown, sources_json, evidence_note, created_at
FROM briefs
WHERE id = ?
LIMIT 1;
`

	out, err := scanBrief(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return StoredBrief{}, ErrNotFound
	}
	if err != nil {
		return StoredBrief{}, fmt.Errorf("get brief: %w", err)
	}
	return out, nil
}

// RecordDelivery appends one row to the email delivery log.
func (s Store) RecordDelivery(ctx context.Context, briefID, recipient, status, detail string) error {
	query := `INSERT INTO email_deliveries (id, brief_id, recipient, status, detail) VALUES (?, ?, ?, ?, ?);`
	if _, err := s.db.ExecContext(ctx, query, uuid.NewString(), briefID, recipient, status, detail); err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

func scanBrief(row *sql.Row) (StoredBrief, error) {
	var out StoredBrief
	var sourcesJSON string
	if err := row.Scan(
		&out.ID,
		&out.SessionID,
		&out.Question,
		&out.Topic,
		&out.Timeframe,
		&out.Markdown,
		&sourcesJSON,
		&out.EvidenceNote,
		&out.CreatedAt,
	); err != nil {
		return StoredBrief{}, err
	}
	if err := json.Unmarshal([]byte(sourcesJSON), &out.Sources); err != nil {
		return StoredBrief{}, fmt.Errorf("decode sources: %w", err)
	}
	return out, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
