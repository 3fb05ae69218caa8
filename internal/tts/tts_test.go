package tts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoiceFor_LatinScriptPicksEnglish(t *testing.T) {
	assert.Equal(t, VoiceEnglish, VoiceFor("Thanks for stopping by."))
}

func TestVoiceFor_DevanagariPicksHindi(t *testing.T) {
	assert.Equal(t, VoiceHindi, VoiceFor("धन्यवाद"))
}

func TestStubSynthesizer_WritesValidWAVHeader(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.wav")
	err := StubSynthesizer{}.Synthesize(context.Background(), "hello", VoiceEnglish, out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), 44)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVEfmt ", string(data[8:16]))
	assert.Equal(t, "data", string(data[36:40]))
}

func TestStubSynthesizer_RespectsCancelledContext(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.wav")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := StubSynthesizer{}.Synthesize(ctx, "hello", VoiceEnglish, out)
	assert.ErrorIs(t, err, context.Canceled)
}
