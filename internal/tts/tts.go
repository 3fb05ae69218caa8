// Package tts wraps the injectable TTS audio synthesis capability (spec
// §1, §6 — out of scope beyond its interface). Voice selection is
// script-based: Latin script picks the English voice, a transcript
// containing Devanagari picks the Hindi voice (spec §4.6).
package tts

import (
	"context"
	"encoding/binary"
	"os"

	"github.com/smartdoor/orchestrator/internal/lexicon"
)

// Voice is the closed set of voices the synthesizer can be asked for.
type Voice string

const (
	VoiceEnglish Voice = "en"
	VoiceHindi   Voice = "hi"
)

// VoiceFor picks a voice by script (spec §4.6: "language auto-detected:
// Latin → English voice, Devanagari range present → Hindi voice").
func VoiceFor(text string) Voice {
	if lexicon.HasDevanagari(text) {
		return VoiceHindi
	}
	return VoiceEnglish
}

// Synthesizer is the injectable TTS capability contract. A real
// implementation shells out to a model binary via exec.CommandContext
// (argument list only, spec §4.6); this package ships only a deterministic
// StubSynthesizer since the model itself is out of scope.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice Voice, outPath string) error
}

// StubSynthesizer writes a minimal valid silent WAV file instead of
// invoking a real voice model, so the Action Executor's file-writing and
// timeout logic can be exercised without a model dependency.
type StubSynthesizer struct{}

// Synthesize implements Synthesizer by writing a one-second silent,
// mono, 16-bit, 8kHz PCM WAV file to outPath.
func (StubSynthesizer) Synthesize(ctx context.Context, text string, voice Voice, outPath string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	const sampleRate = 8000
	const numSamples = sampleRate // 1 second of silence
	const bitsPerSample = 16
	const numChannels = 1
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8
	dataSize := numSamples * blockAlign

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	write := func(v any) error { return binary.Write(f, binary.LittleEndian, v) }

	if _, err := f.WriteString("RIFF"); err != nil {
		return err
	}
	if err := write(uint32(36 + dataSize)); err != nil {
		return err
	}
	if _, err := f.WriteString("WAVEfmt "); err != nil {
		return err
	}
	if err := write(uint32(16)); err != nil { // fmt chunk size
		return err
	}
	if err := write(uint16(1)); err != nil { // PCM
		return err
	}
	if err := write(uint16(numChannels)); err != nil {
		return err
	}
	if err := write(uint32(sampleRate)); err != nil {
		return err
	}
	if err := write(uint32(byteRate)); err != nil {
		return err
	}
	if err := write(uint16(blockAlign)); err != nil {
		return err
	}
	if err := write(uint16(bitsPerSample)); err != nil {
		return err
	}
	if _, err := f.WriteString("data"); err != nil {
		return err
	}
	if err := write(uint32(dataSize)); err != nil {
		return err
	}
	_, err = f.Write(make([]byte, dataSize))
	return err
}
