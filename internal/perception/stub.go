package perception

import (
	"context"
	"os"

	"github.com/smartdoor/orchestrator/internal/models"
)

// StubProvider is the default Provider used when DISABLE_MODELS=1 or no
// real vision/STT backend is configured. It returns a deterministic report
// derived only from whether the referenced files exist, never decoding
// image or audio bytes — the model backends themselves are out of scope
// (spec §1, §6).
type StubProvider struct{}

// Analyze implements Provider. It reports a detected person whenever an
// image path was given, and echoes back any transcript passed via Input
// through a side-channel is not possible here, so STT output is always
// empty; real deployments inject a provider that performs STT.
func (StubProvider) Analyze(ctx context.Context, in Input) (models.PerceptionReport, error) {
	report := models.PerceptionReport{
		PersonDetected:   false,
		VisionConfidence: 0,
		Objects:          nil,
		Transcript:       "",
		STTConfidence:    0,
		WeaponDetected:   false,
		ImagePath:        in.ImagePath,
	}

	if in.ImagePath != "" {
		if _, err := os.Stat(in.ImagePath); err == nil {
			report.PersonDetected = true
			report.VisionConfidence = 0.8
		}
	}

	select {
	case <-ctx.Done():
		return models.PerceptionReport{}, ctx.Err()
	default:
	}

	return report, nil
}
