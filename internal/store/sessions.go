package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/smartdoor/orchestrator/internal/apperr"
	"github.com/smartdoor/orchestrator/internal/models"
)

// CreateSession inserts a new session row, rejecting a duplicate id (spec
// §4.1 "create_session(Session) — rejects duplicate id").
func (s *Store) CreateSession(ctx context.Context, sess models.Session) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, device_id, created_at, last_updated_at, status, risk_score, final_action)
		VALUES (?, ?, ?, ?, ?, ?, NULL)`,
		sess.ID, sess.DeviceID, sess.CreatedAt.UTC().Format(time.RFC3339Nano),
		sess.LastUpdatedAt.UTC().Format(time.RFC3339Nano), string(sess.Status), sess.RiskScore,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.KindStore, "duplicate session id", apperr.ErrDuplicateSession)
		}
		return apperr.New(apperr.KindStore, "insert session", err)
	}
	return nil
}

// UpdateSessionStatus advances a session's status, refusing non-monotonic
// transitions except to error (spec §4.1, §8 invariant 1).
func (s *Store) UpdateSessionStatus(ctx context.Context, id string, next models.Status, riskScore *float64, finalAction *models.FinalAction) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	row := s.db.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id = ?`, id)
	var current string
	if err := row.Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.KindStore, "session not found", apperr.ErrSessionNotFound)
		}
		return apperr.New(apperr.KindStore, "read session status", err)
	}

	if !models.IsValidTransition(models.Status(current), next) {
		return apperr.New(apperr.KindStore, "non-monotonic status transition", apperr.ErrNonMonotonicStatus)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	var finalActionVal any
	if finalAction != nil {
		finalActionVal = string(*finalAction)
	}
	var riskVal any
	if riskScore != nil {
		riskVal = *riskScore
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = ?, last_updated_at = ?,
		    risk_score = COALESCE(?, risk_score),
		    final_action = COALESCE(?, final_action)
		WHERE id = ?`,
		string(next), now, riskVal, finalActionVal, id,
	)
	if err != nil {
		return apperr.New(apperr.KindStore, "update session status", err)
	}
	return nil
}

// GetSession returns a snapshot read of a session row.
func (s *Store) GetSession(ctx context.Context, id string) (models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, device_id, created_at, last_updated_at, status, risk_score, final_action
		FROM sessions WHERE id = ?`, id)

	var sess models.Session
	var createdAt, updatedAt string
	var finalAction sql.NullString
	if err := row.Scan(&sess.ID, &sess.DeviceID, &createdAt, &updatedAt, &sess.Status, &sess.RiskScore, &finalAction); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Session{}, apperr.New(apperr.KindStore, "session not found", apperr.ErrSessionNotFound)
		}
		return models.Session{}, apperr.New(apperr.KindStore, "read session", err)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sess.LastUpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	if finalAction.Valid {
		fa := models.FinalAction(finalAction.String)
		sess.FinalAction = &fa
	}
	return sess, nil
}

// ListSessions returns a snapshot of the most recently updated sessions, up
// to limit, optionally filtered by status.
func (s *Store) ListSessions(ctx context.Context, limit int, statusFilter models.Status) ([]models.Session, error) {
	query := `SELECT id, device_id, created_at, last_updated_at, status, risk_score, final_action FROM sessions`
	args := []any{}
	if statusFilter != "" {
		query += ` WHERE status = ?`
		args = append(args, string(statusFilter))
	}
	query += ` ORDER BY last_updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.New(apperr.KindStore, "list sessions", err)
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		var sess models.Session
		var createdAt, updatedAt string
		var finalAction sql.NullString
		if err := rows.Scan(&sess.ID, &sess.DeviceID, &createdAt, &updatedAt, &sess.Status, &sess.RiskScore, &finalAction); err != nil {
			return nil, apperr.New(apperr.KindStore, "scan session row", err)
		}
		sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		sess.LastUpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		if finalAction.Valid {
			fa := models.FinalAction(finalAction.String)
			sess.FinalAction = &fa
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "constraint failed")
}
