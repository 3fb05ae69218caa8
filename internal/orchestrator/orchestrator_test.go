package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdoor/orchestrator/internal/action"
	"github.com/smartdoor/orchestrator/internal/assets"
	"github.com/smartdoor/orchestrator/internal/decision"
	"github.com/smartdoor/orchestrator/internal/eventbus"
	"github.com/smartdoor/orchestrator/internal/intelligence"
	"github.com/smartdoor/orchestrator/internal/models"
	"github.com/smartdoor/orchestrator/internal/notify"
	"github.com/smartdoor/orchestrator/internal/perception"
	"github.com/smartdoor/orchestrator/internal/store"
	"github.com/smartdoor/orchestrator/internal/telemetry"
	"github.com/smartdoor/orchestrator/internal/tts"
	"github.com/smartdoor/orchestrator/internal/workpool"
)

// newTestTelemetry builds a Provider against a private Prometheus registry so
// each test gets its own metric namespace and parallel test runs don't
// collide on duplicate metric registration.
func newTestTelemetry(t *testing.T) *telemetry.Provider {
	t.Helper()
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	require.NoError(t, err)

	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	tracerProvider := sdktrace.NewTracerProvider()
	meter := meterProvider.Meter("test")

	activeSessions, err := meter.Int64UpDownCounter("doorbell_active_sessions")
	require.NoError(t, err)
	stageDuration, err := meter.Float64Histogram("doorbell_stage_duration_seconds")
	require.NoError(t, err)
	workerPoolUsed, err := meter.Int64UpDownCounter("doorbell_workpool_slots_in_use")
	require.NoError(t, err)

	return &telemetry.Provider{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		Tracer:         tracerProvider.Tracer("test"),
		ActiveSessions: activeSessions,
		StageDuration:  stageDuration,
		WorkerPoolUsed: workerPoolUsed,
	}
}

type stubPerceptionProvider struct {
	report models.PerceptionReport
}

func (p stubPerceptionProvider) Analyze(ctx context.Context, in perception.Input) (models.PerceptionReport, error) {
	return p.report, nil
}

type harness struct {
	orch  *Orchestrator
	store *store.Store
	bus   *eventbus.Bus
}

func newHarness(t *testing.T, percReport models.PerceptionReport) *harness {
	t.Helper()
	dir := t.TempDir()

	as, err := assets.New(dir)
	require.NoError(t, err)

	st, err := store.Open(store.Config{Path: filepath.Join(dir, "doorbell.db"), MaxOpenConns: 1, ConnMaxLifetime: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	bus := eventbus.New()
	tel := newTestTelemetry(t)

	percAdapter := perception.NewAdapter(stubPerceptionProvider{report: percReport})
	intelEngine := intelligence.NewEngine()
	policy := decision.Policy{AutoReplyEnabledByDevice: map[string]bool{"front-door-01": true}}

	exec := &action.Executor{
		TTS:    tts.StubSynthesizer{},
		Notify: notify.New(notify.Config{}),
		Assets: as,
		Bus:    bus,
	}
	pool := workpool.New(2)

	cfg := Config{
		MaxConcurrentSessions:   2,
		SessionQueueSize:        4,
		SemaphoreAcquireTimeout: 5 * time.Second,
		SessionIdleTimeout:      200 * time.Millisecond,
	}
	orch := New(cfg, st, as, bus, percAdapter, intelEngine, policy, exec, pool, tel)

	return &harness{orch: orch, store: st, bus: bus}
}

func waitForTerminal(t *testing.T, h *harness, sessionID string) models.Session {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sess, err := h.store.GetSession(context.Background(), sessionID)
		if err == nil && sess.Status.IsTerminal() {
			return sess
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s did not reach a terminal status in time", sessionID)
	return models.Session{}
}

func TestOrchestrator_Ring_DeliveryScenarioCompletesWithAutoReply(t *testing.T) {
	h := newHarness(t, models.PerceptionReport{
		PersonDetected:   true,
		VisionConfidence: 0.88,
		Objects:          []models.DetectedObject{{Label: "package", Confidence: 0.9}},
		Transcript:       "i have a package delivery for you",
		Emotion:          models.EmotionNeutral,
	})

	sessionID, status, err := h.orch.Ring(context.Background(), models.RingEvent{DeviceID: "front-door-01"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, status)

	sess := waitForTerminal(t, h, sessionID)
	assert.Equal(t, models.StatusCompleted, sess.Status)
	require.NotNil(t, sess.FinalAction)
	assert.Equal(t, models.ActionAutoReply, *sess.FinalAction)
}

func TestOrchestrator_Ring_WeaponAlertPublishedBeforePerceptionDone(t *testing.T) {
	h := newHarness(t, models.PerceptionReport{
		PersonDetected:   true,
		VisionConfidence: 0.9,
		WeaponDetected:   true,
		WeaponConfidence: 0.95,
		WeaponLabels:     []string{"knife"},
		Emotion:          models.EmotionNeutral,
	})

	// pipeline_stage events publish only to the per-session channel, while
	// weapon_alert fans out to both; pre-assign the session ID so both
	// subscriptions are live before Ring spawns the pipeline goroutine.
	sessionID := uuid.New().String()
	ownerSub := h.bus.Subscribe(eventbus.OwnerChannel)
	defer ownerSub.Close()
	sessionSub := h.bus.Subscribe(sessionID)
	defer sessionSub.Close()

	_, _, err := h.orch.Ring(context.Background(), models.RingEvent{SessionID: sessionID, DeviceID: "front-door-01"})
	require.NoError(t, err)

	var sawWeaponAlert, sawPerceptionDone bool
	deadline := time.After(2 * time.Second)
	for !sawPerceptionDone {
		select {
		case ev := <-ownerSub.Events:
			if ev.SessionID == sessionID && ev.Kind == eventbus.KindWeaponAlert {
				sawWeaponAlert = true
			}
		case ev := <-sessionSub.Events:
			if ev.SessionID == sessionID && ev.Kind == eventbus.KindPipelineStage && ev.Payload["stage"] == "perception_done" {
				require.True(t, sawWeaponAlert, "weapon_alert must publish before perception_done")
				sawPerceptionDone = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for perception_done")
		}
	}

	sess := waitForTerminal(t, h, sessionID)
	assert.Equal(t, models.ActionEscalate, *sess.FinalAction)
}

func TestOrchestrator_Ring_RejectsIngressAfterShutdown(t *testing.T) {
	h := newHarness(t, models.PerceptionReport{PersonDetected: true, VisionConfidence: 0.9})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	h.orch.Shutdown(shutdownCtx)

	_, _, err := h.orch.Ring(context.Background(), models.RingEvent{DeviceID: "front-door-01"})
	require.Error(t, err)
}

func TestOrchestrator_Ring_IdleSessionEndsWithoutCompleting(t *testing.T) {
	h := newHarness(t, models.PerceptionReport{PersonDetected: true, VisionConfidence: 0.9})
	sub := h.bus.Subscribe(eventbus.OwnerChannel)
	defer sub.Close()

	sessionID, _, err := h.orch.Ring(context.Background(), models.RingEvent{DeviceID: "front-door-01"})
	require.NoError(t, err)

	_ = waitForTerminal(t, h, sessionID)

	// The session-ended event for an already-completed session will have
	// fired with reason "completed"; draining confirms the pipeline reached
	// its normal terminal state without hanging on the idle timer path.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub.Events:
			if ev.SessionID == sessionID && ev.Kind == eventbus.KindSessionEnded {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for session_ended event")
		}
	}
}
