package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/smartdoor/orchestrator/internal/apperr"
	"github.com/smartdoor/orchestrator/internal/models"
)

// PutPerceptionReport stores pr, idempotent per session id (spec §4.1:
// "second write is a no-op returning existing"). It returns the row that
// ends up persisted, whichever write won.
func (s *Store) PutPerceptionReport(ctx context.Context, pr models.PerceptionReport) (models.PerceptionReport, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	objectsJSON, err := json.Marshal(pr.Objects)
	if err != nil {
		return models.PerceptionReport{}, apperr.New(apperr.KindStore, "marshal objects", err)
	}
	weaponLabelsJSON, err := json.Marshal(pr.WeaponLabels)
	if err != nil {
		return models.PerceptionReport{}, apperr.New(apperr.KindStore, "marshal weapon labels", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO perception_reports
			(session_id, person_detected, objects_json, vision_confidence, transcript,
			 stt_confidence, emotion, anti_spoof_score, weapon_detected, weapon_confidence,
			 weapon_labels_json, image_path, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING`,
		pr.SessionID, boolToInt(pr.PersonDetected), string(objectsJSON), pr.VisionConfidence, pr.Transcript,
		pr.STTConfidence, string(pr.Emotion), pr.AntiSpoofScore, boolToInt(pr.WeaponDetected), pr.WeaponConfidence,
		string(weaponLabelsJSON), pr.ImagePath, pr.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return models.PerceptionReport{}, apperr.New(apperr.KindStore, "insert perception report", err)
	}
	return s.getPerceptionReportLocked(ctx, pr.SessionID)
}

// GetPerceptionReport returns the stored report for sessionID.
func (s *Store) GetPerceptionReport(ctx context.Context, sessionID string) (models.PerceptionReport, error) {
	return s.getPerceptionReportLocked(ctx, sessionID)
}

func (s *Store) getPerceptionReportLocked(ctx context.Context, sessionID string) (models.PerceptionReport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, person_detected, objects_json, vision_confidence, transcript,
		       stt_confidence, emotion, anti_spoof_score, weapon_detected, weapon_confidence,
		       weapon_labels_json, image_path, timestamp
		FROM perception_reports WHERE session_id = ?`, sessionID)

	var pr models.PerceptionReport
	var personDetected, weaponDetected int
	var objectsJSON, weaponLabelsJSON, ts string
	if err := row.Scan(&pr.SessionID, &personDetected, &objectsJSON, &pr.VisionConfidence, &pr.Transcript,
		&pr.STTConfidence, &pr.Emotion, &pr.AntiSpoofScore, &weaponDetected, &pr.WeaponConfidence,
		&weaponLabelsJSON, &pr.ImagePath, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PerceptionReport{}, apperr.New(apperr.KindStore, "perception report not found", nil)
		}
		return models.PerceptionReport{}, apperr.New(apperr.KindStore, "read perception report", err)
	}
	pr.PersonDetected = personDetected != 0
	pr.WeaponDetected = weaponDetected != 0
	_ = json.Unmarshal([]byte(objectsJSON), &pr.Objects)
	_ = json.Unmarshal([]byte(weaponLabelsJSON), &pr.WeaponLabels)
	pr.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	return pr, nil
}

// PutIntelligenceReport stores ir, idempotent per session id.
func (s *Store) PutIntelligenceReport(ctx context.Context, ir models.IntelligenceReport) (models.IntelligenceReport, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tagsJSON, err := json.Marshal(ir.Tags)
	if err != nil {
		return models.IntelligenceReport{}, apperr.New(apperr.KindStore, "marshal tags", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO intelligence_reports (session_id, intent, reply_text, risk_score, escalation_required, tags_json, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING`,
		ir.SessionID, string(ir.Intent), ir.ReplyText, ir.RiskScore, boolToInt(ir.EscalationRequired),
		string(tagsJSON), ir.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return models.IntelligenceReport{}, apperr.New(apperr.KindStore, "insert intelligence report", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, intent, reply_text, risk_score, escalation_required, tags_json, timestamp
		FROM intelligence_reports WHERE session_id = ?`, ir.SessionID)

	var out models.IntelligenceReport
	var escalation int
	var tags, ts string
	if err := row.Scan(&out.SessionID, &out.Intent, &out.ReplyText, &out.RiskScore, &escalation, &tags, &ts); err != nil {
		return models.IntelligenceReport{}, apperr.New(apperr.KindStore, "read back intelligence report", err)
	}
	out.EscalationRequired = escalation != 0
	_ = json.Unmarshal([]byte(tags), &out.Tags)
	out.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	return out, nil
}

// PutDecision stores a Directive, idempotent per session id.
func (s *Store) PutDecision(ctx context.Context, d models.Directive) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	dispatchJSON, err := json.Marshal(d.Dispatch)
	if err != nil {
		return apperr.New(apperr.KindStore, "marshal dispatch", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (session_id, final_action, reason, dispatch_json, timestamp)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING`,
		d.SessionID, string(d.FinalAction), d.Reason, string(dispatchJSON), d.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return apperr.New(apperr.KindStore, "insert decision", err)
	}
	return nil
}

// AppendAction records an ActionResult as an audit row in actions (spec
// §4.1 is append-only for this table; there is no idempotency requirement
// since a session produces at most one).
func (s *Store) AppendAction(ctx context.Context, ar models.ActionResult) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	payloadJSON, err := json.Marshal(ar.Payload)
	if err != nil {
		return apperr.New(apperr.KindStore, "marshal action payload", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO actions (session_id, status, action_type, payload_json, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		ar.SessionID, string(ar.Status), ar.ActionType, string(payloadJSON), ar.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return apperr.New(apperr.KindStore, "insert action", err)
	}
	return nil
}

// ListActions returns every action row recorded for sessionID.
func (s *Store) ListActions(ctx context.Context, sessionID string) ([]models.ActionResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, status, action_type, payload_json, timestamp
		FROM actions WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, apperr.New(apperr.KindStore, "list actions", err)
	}
	defer rows.Close()

	var out []models.ActionResult
	for rows.Next() {
		var ar models.ActionResult
		var payloadJSON, ts string
		if err := rows.Scan(&ar.SessionID, &ar.Status, &ar.ActionType, &payloadJSON, &ts); err != nil {
			return nil, apperr.New(apperr.KindStore, "scan action row", err)
		}
		_ = json.Unmarshal([]byte(payloadJSON), &ar.Payload)
		ar.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, ar)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
