package store

import (
	"context"
	"time"

	"github.com/smartdoor/orchestrator/internal/apperr"
	"github.com/smartdoor/orchestrator/internal/models"
)

// AppendTranscript appends a conversation turn. Append-only (spec §4.1).
func (s *Store) AppendTranscript(ctx context.Context, entry models.TranscriptEntry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcripts (session_id, role, content, timestamp)
		VALUES (?, ?, ?, ?)`,
		entry.SessionID, string(entry.Role), entry.Content, entry.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return apperr.New(apperr.KindStore, "append transcript", err)
	}
	return nil
}

// ListTranscripts returns the full ordered conversation log for a session.
func (s *Store) ListTranscripts(ctx context.Context, sessionID string) ([]models.TranscriptEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, role, content, timestamp
		FROM transcripts WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, apperr.New(apperr.KindStore, "list transcripts", err)
	}
	defer rows.Close()

	var out []models.TranscriptEntry
	for rows.Next() {
		var e models.TranscriptEntry
		var ts string
		if err := rows.Scan(&e.SessionID, &e.Role, &e.Content, &ts); err != nil {
			return nil, apperr.New(apperr.KindStore, "scan transcript row", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecentTranscripts returns the last n turns, oldest first, used to bound
// the Reply Provider's context window (spec §4.4 Step 4: "last ≤2
// transcript turns").
func (s *Store) RecentTranscripts(ctx context.Context, sessionID string, n int) ([]models.TranscriptEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, role, content, timestamp
		FROM transcripts WHERE session_id = ? ORDER BY id DESC LIMIT ?`, sessionID, n)
	if err != nil {
		return nil, apperr.New(apperr.KindStore, "recent transcripts", err)
	}
	defer rows.Close()

	var reversed []models.TranscriptEntry
	for rows.Next() {
		var e models.TranscriptEntry
		var ts string
		if err := rows.Scan(&e.SessionID, &e.Role, &e.Content, &ts); err != nil {
			return nil, apperr.New(apperr.KindStore, "scan transcript row", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		reversed = append(reversed, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.TranscriptEntry, len(reversed))
	for i, e := range reversed {
		out[len(reversed)-1-i] = e
	}
	return out, nil
}

// AppendAudit implements the append-only audit trail (spec §4.1, §3 Audit
// Row: "Never modified"). Returns the assigned row id.
func (s *Store) AppendAudit(ctx context.Context, row models.AuditRow) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_rows (session_id, agent, action_type, payload_json, status, short_reason, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.SessionID, row.Agent, row.ActionType, row.PayloadJSON, row.Status, row.ShortReason,
		row.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, apperr.New(apperr.KindStore, "append audit row", err)
	}
	return res.LastInsertId()
}
