package profile

import (
	"context"
	"database/sql"
	"encoding/json"

	"intake-backend/intake"
)

// Store persists completed case records. It implements intake.CaseStore;
// the engine only ever writes here, the read side is the app's history
// screen via the handler in this package.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveCaseRecord inserts (or replaces, on a session retry) the final
// structured summary of one intake session.
func (s *Store) SaveCaseRecord(ctx context.Context, rec intake.CaseRecord) error {
	transcript, err := json.Marshal(rec.Transcript)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO case_records
			(session_id, summary, transcript, rounds_completed, prompt_tokens, completion_tokens, cost_usd, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			summary = VALUES(summary),
			transcript = VALUES(transcript),
			rounds_completed = VALUES(rounds_completed),
			prompt_tokens = VALUES(prompt_tokens),
			completion_tokens = VALUES(completion_tokens),
			cost_usd = VALUES(cost_usd),
			model = VALUES(model)`,
		rec.SessionID, rec.Summary, transcript, rec.RoundsCompleted,
		rec.PromptTokens, rec.CompletionTokens, rec.CostUSD, rec.Model, rec.CreatedAt)
	return err
}

// ListCaseRecords returns the most recent records, newest first.
func (s *Store) ListCaseRecords(ctx context.Context, limit int) ([]intake.CaseRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, summary, transcript, rounds_completed, prompt_tokens, completion_tokens, cost_usd, model, created_at
		FROM case_records ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []intake.CaseRecord
	for rows.Next() {
		var rec intake.CaseRecord
		var transcript []byte
		if err := rows.Scan(&rec.SessionID, &rec.Summary, &transcript, &rec.RoundsCompleted,
			&rec.PromptTokens, &rec.CompletionTokens, &rec.CostUSD, &rec.Model, &rec.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(transcript, &rec.Transcript)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetCaseRecord returns the record for one session, or nil when absent.
func (s *Store) GetCaseRecord(ctx context.Context, sessionID string) (*intake.CaseRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, summary, transcript, rounds_completed, prompt_tokens, completion_tokens, cost_usd, model, created_at
		FROM case_records WHERE session_id = ?`, sessionID)
	var rec intake.CaseRecord
	var transcript []byte
	err := row.Scan(&rec.SessionID, &rec.Summary, &transcript, &rec.RoundsCompleted,
		&rec.PromptTokens, &rec.CompletionTokens, &rec.CostUSD, &rec.Model, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(transcript, &rec.Transcript)
	return &rec, nil
}
