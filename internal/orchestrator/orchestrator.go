// Package orchestrator implements the spec §4.7 Orchestrator: the
// scheduler that owns session lifecycle, bounded concurrent pipeline
// tasks, and the audit/event emission that binds every other component.
// Grounded on the teacher's WorkerPool/Worker split (pkg/queue): one
// goroutine per session plays the role the teacher gives one goroutine per
// worker slot, with a *semaphore.Weighted standing in for its
// database-backed row lock since this store has no cross-process
// contenders to arbitrate.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/smartdoor/orchestrator/internal/action"
	"github.com/smartdoor/orchestrator/internal/apperr"
	"github.com/smartdoor/orchestrator/internal/assets"
	"github.com/smartdoor/orchestrator/internal/decision"
	"github.com/smartdoor/orchestrator/internal/eventbus"
	"github.com/smartdoor/orchestrator/internal/intelligence"
	"github.com/smartdoor/orchestrator/internal/models"
	"github.com/smartdoor/orchestrator/internal/perception"
	"github.com/smartdoor/orchestrator/internal/store"
	"github.com/smartdoor/orchestrator/internal/telemetry"
	"github.com/smartdoor/orchestrator/internal/workpool"
)

// Config holds the scheduler's tunables (spec §4.7, §5).
type Config struct {
	MaxConcurrentSessions   int
	SessionQueueSize        int
	SemaphoreAcquireTimeout time.Duration
	SessionIdleTimeout      time.Duration
}

// DefaultConfig mirrors the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentSessions:   2,
		SessionQueueSize:        4,
		SemaphoreAcquireTimeout: 60 * time.Second,
		SessionIdleTimeout:      90 * time.Second,
	}
}

// pipelineItem is one unit of work queued for a session: the ingress
// event plus the asset paths Ring already resolved for it.
type pipelineItem struct {
	ev        models.RingEvent
	imagePath string
	audioPath string
}

// sessionQueue is one session's bounded pipeline mailbox plus the
// goroutine-ownership handle the teacher calls a running task.
type sessionQueue struct {
	events   chan pipelineItem
	cancel   context.CancelFunc
	deviceID string
}

// Orchestrator is the scheduler described in spec §4.7.
type Orchestrator struct {
	cfg Config

	sem *semaphore.Weighted

	mu       sync.Mutex
	sessions map[string]*sessionQueue

	store        *store.Store
	assets       *assets.Store
	bus          *eventbus.Bus
	perception   *perception.Adapter
	intelligence *intelligence.Engine
	policy       decision.Policy
	action       *action.Executor
	pool         *workpool.Pool
	telemetry    *telemetry.Provider

	shuttingDown bool
	wg           sync.WaitGroup

	logger *slog.Logger
}

// New wires an Orchestrator from its component collaborators, mirroring
// the teacher's constructor-injection style on Server.
func New(cfg Config, st *store.Store, as *assets.Store, bus *eventbus.Bus,
	perc *perception.Adapter, intel *intelligence.Engine, policy decision.Policy,
	exec *action.Executor, pool *workpool.Pool, tel *telemetry.Provider) *Orchestrator {
	return &Orchestrator{
		cfg:          cfg,
		sem:          semaphore.NewWeighted(int64(cfg.MaxConcurrentSessions)),
		sessions:     make(map[string]*sessionQueue),
		store:        st,
		assets:       as,
		bus:          bus,
		perception:   perc,
		intelligence: intel,
		policy:       policy,
		action:       exec,
		pool:         pool,
		telemetry:    tel,
		logger:       slog.Default().With("component", "orchestrator"),
	}
}

// Ring implements the spec §4.7 ingress path. It persists the event's
// bytes, creates or enqueues onto the session, and returns immediately.
func (o *Orchestrator) Ring(ctx context.Context, ev models.RingEvent) (string, models.Status, error) {
	o.mu.Lock()
	if o.shuttingDown {
		o.mu.Unlock()
		return "", "", apperr.New(apperr.KindBackPressure, "orchestrator is shutting down", apperr.ErrShuttingDown)
	}
	o.mu.Unlock()

	if ev.SessionID == "" {
		ev.SessionID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	item := pipelineItem{ev: ev}

	if len(ev.ImageBytes) > 0 {
		path, err := o.assets.WriteSnapshot(ev.SessionID, ev.ImageBytes)
		if err != nil {
			return "", "", err
		}
		item.imagePath = path
	}
	if len(ev.AudioBytes) > 0 {
		ts := fmt.Sprintf("%d", ev.Timestamp.UnixNano())
		path, err := o.assets.WriteTempAudio(ev.SessionID, ts, ev.AudioBytes)
		if err != nil {
			return "", "", err
		}
		item.audioPath = path
	}

	o.mu.Lock()
	q, exists := o.sessions[ev.SessionID]
	o.mu.Unlock()

	if exists {
		return o.enqueueExisting(item, q)
	}

	now := time.Now()
	sess := models.Session{
		ID:            ev.SessionID,
		DeviceID:      ev.DeviceID,
		CreatedAt:     now,
		LastUpdatedAt: now,
		Status:        models.StatusQueued,
	}
	// A duplicate-id error means a concurrent Ring call already created this
	// session (e.g. two requests racing on a caller-supplied session_id);
	// that race is benign here since enqueueExisting below takes over. Any
	// other store error is a real failure and must not be swallowed.
	if err := o.store.CreateSession(ctx, sess); err != nil && !errors.Is(err, apperr.ErrDuplicateSession) {
		return "", "", err
	}
	o.auditRing(ctx, ev.SessionID, "ring_received")

	o.bus.Publish(eventbus.OwnerChannel, eventbus.Event{
		Kind:      eventbus.KindNewRing,
		SessionID: ev.SessionID,
		Payload:   map[string]any{"device_id": ev.DeviceID},
	})

	pipelineCtx, cancel := context.WithCancel(context.Background())
	newQueue := &sessionQueue{
		events:   make(chan pipelineItem, o.cfg.SessionQueueSize),
		cancel:   cancel,
		deviceID: ev.DeviceID,
	}
	newQueue.events <- item

	o.mu.Lock()
	o.sessions[ev.SessionID] = newQueue
	o.mu.Unlock()

	o.wg.Add(1)
	go o.runPipeline(pipelineCtx, ev.SessionID, newQueue)

	return ev.SessionID, models.StatusQueued, nil
}

// enqueueExisting implements the back-pressure rule: if the bounded queue
// is full, drop the oldest queued event and report back-pressure to the
// caller rather than blocking ingress (spec §4.7 step 4).
func (o *Orchestrator) enqueueExisting(item pipelineItem, q *sessionQueue) (string, models.Status, error) {
	select {
	case q.events <- item:
		return item.ev.SessionID, models.StatusQueued, nil
	default:
		select {
		case <-q.events:
		default:
		}
		select {
		case q.events <- item:
			return item.ev.SessionID, models.StatusQueued, apperr.New(apperr.KindBackPressure, "per-session queue was full, oldest event dropped", apperr.ErrQueueFull)
		default:
			return "", "", apperr.New(apperr.KindBackPressure, "per-session queue saturated", apperr.ErrQueueFull)
		}
	}
}

func (o *Orchestrator) auditRing(ctx context.Context, sessionID, actionType string) {
	o.audit(ctx, sessionID, "orchestrator", actionType, "ok", "")
}

// auditTransition records one status transition's audit row (spec §2, §3,
// §8 invariant 4), tagged with the stage that produced the transition.
func (o *Orchestrator) auditTransition(ctx context.Context, sessionID, agent, status string) {
	o.audit(ctx, sessionID, agent, "stage_transition", status, "")
}

// audit appends one audit row. agent names the producing stage
// (orchestrator/perception/intelligence/decision/action), matching the
// Audit Row's §3 ownership: every stage transition and every externally
// observable side effect gets its own row.
func (o *Orchestrator) audit(ctx context.Context, sessionID, agent, actionType, status, shortReason string) {
	if _, err := o.store.AppendAudit(ctx, models.AuditRow{
		SessionID:   sessionID,
		Agent:       agent,
		ActionType:  actionType,
		Status:      status,
		ShortReason: shortReason,
		Timestamp:   time.Now(),
	}); err != nil {
		o.logger.Warn("failed to append audit row", "session_id", sessionID, "agent", agent, "action_type", actionType, "error", err)
	}
}

// Shutdown marks the orchestrator as draining: new Ring calls are refused
// with 503, and every running pipeline task is cancelled (spec §4.7
// "Cancellation").
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.mu.Lock()
	o.shuttingDown = true
	for _, q := range o.sessions {
		q.cancel()
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() { o.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (o *Orchestrator) removeSession(sessionID string) {
	o.mu.Lock()
	delete(o.sessions, sessionID)
	o.mu.Unlock()
}

// runPipeline is the per-session task: it acquires the global semaphore,
// then drains the session's queue one event at a time through the nine
// pipeline steps, closing the session after SessionIdleTimeout with no new
// event (spec §4.7).
func (o *Orchestrator) runPipeline(ctx context.Context, sessionID string, q *sessionQueue) {
	defer o.wg.Done()
	defer o.removeSession(sessionID)

	acquireCtx, cancelAcquire := context.WithTimeout(ctx, o.cfg.SemaphoreAcquireTimeout)
	err := o.sem.Acquire(acquireCtx, 1)
	cancelAcquire()
	if err != nil {
		o.failSession(context.Background(), sessionID, "semaphore_acquire_timeout", err)
		return
	}
	defer o.sem.Release(1)

	o.telemetry.ActiveSessions.Add(ctx, 1)
	defer o.telemetry.ActiveSessions.Add(ctx, -1)

	idleTimer := time.NewTimer(o.cfg.SessionIdleTimeout)
	defer idleTimer.Stop()

	for {
		select {
		case item, ok := <-q.events:
			if !ok {
				return
			}
			if !idleTimer.Stop() {
				select {
				case <-idleTimer.C:
				default:
				}
			}
			o.processEvent(ctx, sessionID, q.deviceID, item)
			idleTimer.Reset(o.cfg.SessionIdleTimeout)

		case <-idleTimer.C:
			o.bus.Publish(sessionID, eventbus.Event{Kind: eventbus.KindSessionEnded, SessionID: sessionID, Payload: map[string]any{"reason": "inactive"}})
			o.bus.Publish(eventbus.OwnerChannel, eventbus.Event{Kind: eventbus.KindSessionEnded, SessionID: sessionID, Payload: map[string]any{"reason": "inactive"}})
			return

		case <-ctx.Done():
			o.failSession(context.Background(), sessionID, "cancelled", ctx.Err())
			return
		}
	}
}

func (o *Orchestrator) failSession(ctx context.Context, sessionID, shortReason string, cause error) {
	if err := o.store.UpdateSessionStatus(ctx, sessionID, models.StatusError, nil, nil); err != nil {
		o.logger.Warn("failed to mark session error", "session_id", sessionID, "error", err)
	}
	reason := shortReason
	if cause != nil {
		reason = fmt.Sprintf("%s: %v", shortReason, cause)
		if len(reason) > 500 {
			reason = reason[:500]
		}
	}
	o.audit(ctx, sessionID, "orchestrator", "error", "error", reason)
	o.bus.Publish(sessionID, eventbus.Event{Kind: eventbus.KindSessionEnded, SessionID: sessionID, Payload: map[string]any{"reason": "error"}})
	o.bus.Publish(eventbus.OwnerChannel, eventbus.Event{Kind: eventbus.KindSessionEnded, SessionID: sessionID, Payload: map[string]any{"reason": "error"}})
}

// processEvent runs the nine-step pipeline (spec §4.7) for a single ring
// event. A stage failure marks the session errored and aborts the
// remaining steps; it never panics the pipeline goroutine.
func (o *Orchestrator) processEvent(ctx context.Context, sessionID, deviceID string, item pipelineItem) {
	// Step 1: transition to processing.
	if err := o.store.UpdateSessionStatus(ctx, sessionID, models.StatusProcessing, nil, nil); err != nil {
		o.failSession(ctx, sessionID, "status_transition_failed", err)
		return
	}
	o.auditTransition(ctx, sessionID, "orchestrator", "processing")
	o.publishStage(sessionID, "processing", nil)

	// Step 2: Perception, dispatched onto the CPU-bound worker pool.
	stageCtx, span := o.telemetry.StageSpan(ctx, "perception", sessionID)
	var pr models.PerceptionReport
	poolErr := o.pool.Run(stageCtx, func(runCtx context.Context) error {
		o.telemetry.WorkerPoolUsed.Add(runCtx, 1)
		defer o.telemetry.WorkerPoolUsed.Add(runCtx, -1)
		pr = o.perception.Analyze(runCtx, sessionID, perception.Input{ImagePath: item.imagePath, AudioPath: item.audioPath})
		return nil
	})
	span.End()
	if poolErr != nil {
		o.failSession(ctx, sessionID, "perception_cancelled", poolErr)
		return
	}
	pr.ImagePath = item.imagePath
	stored, err := o.store.PutPerceptionReport(ctx, pr)
	if err != nil {
		o.failSession(ctx, sessionID, "perception_store_failed", err)
		return
	}
	pr = stored

	if pr.WeaponDetected {
		// Must publish strictly before pipeline_stage(perception_done).
		o.bus.Publish(sessionID, eventbus.Event{Kind: eventbus.KindWeaponAlert, SessionID: sessionID, Payload: map[string]any{"labels": pr.WeaponLabels, "confidence": pr.WeaponConfidence}})
		o.bus.Publish(eventbus.OwnerChannel, eventbus.Event{Kind: eventbus.KindWeaponAlert, SessionID: sessionID, Payload: map[string]any{"labels": pr.WeaponLabels, "confidence": pr.WeaponConfidence}})
		o.audit(ctx, sessionID, "perception", "weapon_alert", "ok", fmt.Sprintf("labels=%v confidence=%.2f", pr.WeaponLabels, pr.WeaponConfidence))
	}
	o.audit(ctx, sessionID, "perception", "perception_report", "ok", fmt.Sprintf("vision_confidence=%.2f anti_spoof=%.2f", pr.VisionConfidence, pr.AntiSpoofScore))
	o.publishStage(sessionID, "perception_done", map[string]any{"vision_confidence": pr.VisionConfidence, "weapon_detected": pr.WeaponDetected})

	// Step 3: transition to perception_done.
	if err := o.store.UpdateSessionStatus(ctx, sessionID, models.StatusPerceptionDone, nil, nil); err != nil {
		o.failSession(ctx, sessionID, "status_transition_failed", err)
		return
	}
	o.auditTransition(ctx, sessionID, "perception", "perception_done")

	// Step 4: Intelligence.
	intelCtx, span := o.telemetry.StageSpan(ctx, "intelligence", sessionID)
	recent, err := o.store.RecentTranscripts(intelCtx, sessionID, 2)
	if err != nil {
		span.End()
		o.failSession(ctx, sessionID, "transcript_read_failed", err)
		return
	}
	ir, err := o.intelligence.Evaluate(intelCtx, pr, time.Now().Local().Hour(), recent)
	span.End()
	if err != nil && !apperr.Is(err, apperr.KindSecurityContract) {
		o.failSession(ctx, sessionID, "intelligence_failed", err)
		return
	}
	securityContractViolation := apperr.Is(err, apperr.KindSecurityContract)
	ir, storeErr := o.store.PutIntelligenceReport(ctx, ir)
	if storeErr != nil {
		o.failSession(ctx, sessionID, "intelligence_store_failed", storeErr)
		return
	}
	if pr.Transcript != "" {
		_ = o.store.AppendTranscript(ctx, models.TranscriptEntry{SessionID: sessionID, Role: models.RoleVisitor, Content: pr.Transcript, Timestamp: pr.Timestamp})
	}
	if ir.ReplyText != "" {
		_ = o.store.AppendTranscript(ctx, models.TranscriptEntry{SessionID: sessionID, Role: models.RoleDoorbell, Content: ir.ReplyText, Timestamp: ir.Timestamp})
	}
	if securityContractViolation {
		// spec §7 SecurityContract: the incident itself is audited, separately
		// from the normal intelligence_report row below.
		o.audit(ctx, sessionID, "intelligence", "security_contract_violation", "substituted", "reply replaced with canned safe line")
	}
	o.audit(ctx, sessionID, "intelligence", "intelligence_report", "ok", fmt.Sprintf("intent=%s risk_score=%.3f escalation_required=%v", ir.Intent, ir.RiskScore, ir.EscalationRequired))
	o.publishStage(sessionID, "intelligence_done", map[string]any{"intent": string(ir.Intent), "risk_score": ir.RiskScore})

	// Step 5: transition to intelligence_done.
	if err := o.store.UpdateSessionStatus(ctx, sessionID, models.StatusIntelligenceDone, nil, nil); err != nil {
		o.failSession(ctx, sessionID, "status_transition_failed", err)
		return
	}
	o.auditTransition(ctx, sessionID, "intelligence", "intelligence_done")

	// Step 6: Decision, a pure synchronous call.
	directive := decision.Evaluate(decision.Input{
		RiskScore:          ir.RiskScore,
		EscalationRequired: ir.EscalationRequired,
		DeviceID:           deviceID,
		Policy:             o.policy,
	})
	directive.SessionID = sessionID
	directive.Timestamp = time.Now()
	if err := o.store.PutDecision(ctx, directive); err != nil {
		o.failSession(ctx, sessionID, "decision_store_failed", err)
		return
	}
	o.audit(ctx, sessionID, "decision", "decision", "ok", directive.Reason)
	o.publishStage(sessionID, "decision_done", map[string]any{"final_action": string(directive.FinalAction), "reason": directive.Reason})

	// Step 7: transition to decision_done, recording the chosen risk score
	// and final action on the session row.
	risk := ir.RiskScore
	finalAction := directive.FinalAction
	if err := o.store.UpdateSessionStatus(ctx, sessionID, models.StatusDecisionDone, &risk, &finalAction); err != nil {
		o.failSession(ctx, sessionID, "status_transition_failed", err)
		return
	}
	o.auditTransition(ctx, sessionID, "decision", "decision_done")

	// Step 8: Action, dispatched onto the CPU-bound worker pool for its TTS
	// synthesis leg.
	actionCtx, span := o.telemetry.StageSpan(ctx, "action", sessionID)
	var ar models.ActionResult
	poolErr = o.pool.Run(actionCtx, func(runCtx context.Context) error {
		o.telemetry.WorkerPoolUsed.Add(runCtx, 1)
		defer o.telemetry.WorkerPoolUsed.Add(runCtx, -1)
		ar = o.action.Execute(runCtx, directive, ir, pr)
		return nil
	})
	span.End()
	if poolErr != nil {
		o.failSession(ctx, sessionID, "action_cancelled", poolErr)
		return
	}
	if err := o.store.AppendAction(ctx, ar); err != nil {
		o.logger.Warn("failed to append action result", "session_id", sessionID, "error", err)
	}
	// The ActionResult row is itself the externally observable side effect
	// (TTS playback, notify_owner/escalate delivery) (spec §2, §3).
	o.audit(ctx, sessionID, "action", ar.ActionType, string(ar.Status), directive.Reason)
	o.publishStage(sessionID, "action_done", map[string]any{"status": string(ar.Status), "action_type": ar.ActionType})

	// Step 9: transition to completed.
	if err := o.store.UpdateSessionStatus(ctx, sessionID, models.StatusCompleted, nil, nil); err != nil {
		o.failSession(ctx, sessionID, "status_transition_failed", err)
		return
	}
	o.auditTransition(ctx, sessionID, "orchestrator", "completed")
	o.bus.Publish(sessionID, eventbus.Event{Kind: eventbus.KindSessionEnded, SessionID: sessionID, Payload: map[string]any{"reason": "completed"}})
	o.bus.Publish(eventbus.OwnerChannel, eventbus.Event{Kind: eventbus.KindSessionEnded, SessionID: sessionID, Payload: map[string]any{"reason": "completed"}})
}

func (o *Orchestrator) publishStage(sessionID, stage string, extra map[string]any) {
	payload := map[string]any{"stage": stage}
	for k, v := range extra {
		payload[k] = v
	}
	o.bus.Publish(sessionID, eventbus.Event{Kind: eventbus.KindPipelineStage, SessionID: sessionID, Payload: payload})
}
