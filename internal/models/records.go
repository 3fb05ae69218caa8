package models

import "time"

// Session is the spine of the pipeline (spec §3).
type Session struct {
	ID            string
	DeviceID      string
	CreatedAt     time.Time
	LastUpdatedAt time.Time
	Status        Status
	RiskScore     float64
	FinalAction   *FinalAction
}

// RingEvent is the ingress record delivered by the transport shell. It is
// never persisted as-is — its bytes are written to disk and its fields
// copied into a Session before enqueue.
type RingEvent struct {
	SessionID  string
	Timestamp  time.Time
	DeviceID   string
	ImageBytes []byte
	AudioBytes []byte
	Metadata   map[string]any
}

// DetectedObject is one vision-detected object with its confidence.
type DetectedObject struct {
	Label      string
	Confidence float64
}

// PerceptionReport is produced once per session by the Perception stage and
// is immutable once stored.
type PerceptionReport struct {
	SessionID        string
	PersonDetected   bool
	Objects          []DetectedObject
	VisionConfidence float64
	Transcript       string
	STTConfidence    float64
	Emotion          Emotion
	AntiSpoofScore   float64
	WeaponDetected   bool
	WeaponConfidence float64
	WeaponLabels     []string
	ImagePath        string
	Timestamp        time.Time
}

// IntelligenceReport is produced by the Intelligence stage.
type IntelligenceReport struct {
	SessionID           string
	Intent              Intent
	ReplyText           string
	RiskScore           float64
	EscalationRequired  bool
	Tags                []string
	Timestamp           time.Time
}

// Dispatch names the side effects a Directive requests.
type Dispatch struct {
	TTS         bool
	NotifyOwner bool
	Escalate    bool
}

// Directive is the Decision stage's structured output.
type Directive struct {
	SessionID   string
	FinalAction FinalAction
	Reason      string
	Dispatch    Dispatch
	Timestamp   time.Time
}

// ActionResult is produced by the Action Executor.
type ActionResult struct {
	SessionID  string
	Status     ActionStatus
	ActionType string
	Payload    map[string]any
	Timestamp  time.Time
}

// TranscriptEntry is one append-only conversation turn.
type TranscriptEntry struct {
	SessionID string
	Role      TranscriptRole
	Content   string
	Timestamp time.Time
}

// AuditRow is an append-only observability record, written on every stage
// transition and every externally observable side effect.
type AuditRow struct {
	ID          int64
	SessionID   string
	Agent       string
	ActionType  string
	PayloadJSON string
	Status      string
	ShortReason string
	Timestamp   time.Time
}
