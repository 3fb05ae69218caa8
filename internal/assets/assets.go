// Package assets implements spec §4.8: files on disk for snapshots, TTS
// output, and temp audio, with path discipline — writes are confined to a
// fixed allowlist of subdirectories and are atomic (write-to-temp then
// rename) so a reader never observes a partially written file.
package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/smartdoor/orchestrator/internal/apperr"
)

// Subdir names the permitted asset subdirectories (spec §4.8: "Permitted
// subdirectories only: snaps/, tts/, tmp/, logs/, members/"). Any path
// outside these is rejected.
type Subdir string

const (
	SubdirSnaps   Subdir = "snaps"
	SubdirTTS     Subdir = "tts"
	SubdirTmp     Subdir = "tmp"
	SubdirLogs    Subdir = "logs"
	SubdirMembers Subdir = "members"
)

var permitted = map[Subdir]bool{
	SubdirSnaps:   true,
	SubdirTTS:     true,
	SubdirTmp:     true,
	SubdirLogs:    true,
	SubdirMembers: true,
}

// snapshotMaxDim bounds the normalized snapshot's longest edge.
const snapshotMaxDim = 1024

// Store manages the on-disk asset tree rooted at BaseDir.
type Store struct {
	BaseDir string
}

// New returns an assets Store rooted at baseDir, creating the permitted
// subdirectories if absent.
func New(baseDir string) (*Store, error) {
	for sub := range permitted {
		if err := os.MkdirAll(filepath.Join(baseDir, string(sub)), 0o755); err != nil {
			return nil, apperr.New(apperr.KindStore, "create asset subdirectory", err)
		}
	}
	return &Store{BaseDir: baseDir}, nil
}

// Path resolves a filename within a permitted subdirectory, rejecting any
// subdirectory not on the allowlist and any filename containing path
// separators (spec §4.8 "path discipline").
func (s *Store) Path(sub Subdir, filename string) (string, error) {
	if !permitted[sub] {
		return "", apperr.New(apperr.KindContractViolation, fmt.Sprintf("subdirectory %q not permitted", sub), nil)
	}
	if filepath.Base(filename) != filename || filename == "" {
		return "", apperr.New(apperr.KindContractViolation, "filename must not contain path separators", nil)
	}
	return filepath.Join(s.BaseDir, string(sub), filename), nil
}

// WriteTempAudio writes raw audio bytes to
// <data>/tmp/<sessionID>/<timestampSuffix>.wav (spec §4.7 ingress step 2),
// the one permitted exception to the flat-filename rule in Path, since the
// ingress record needs a per-session temp directory.
func (s *Store) WriteTempAudio(sessionID, timestampSuffix string, data []byte) (string, error) {
	dir := filepath.Join(s.BaseDir, string(SubdirTmp), sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.New(apperr.KindStore, "create session temp directory", err)
	}
	path := filepath.Join(dir, timestampSuffix+".wav")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", apperr.New(apperr.KindStore, "write temp audio file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", apperr.New(apperr.KindStore, "rename temp audio into place", err)
	}
	return path, nil
}

// WriteAtomic writes data to the resolved path via a temp file plus rename,
// so concurrent readers never see a partially written file.
func (s *Store) WriteAtomic(sub Subdir, filename string, data []byte) (string, error) {
	path, err := s.Path(sub, filename)
	if err != nil {
		return "", err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", apperr.New(apperr.KindStore, "write temp asset file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", apperr.New(apperr.KindStore, "rename asset file into place", err)
	}
	return path, nil
}

// WriteSnapshot normalizes a raw camera snapshot (downscale to at most
// snapshotMaxDim on the long edge, re-encode as JPEG) and atomically writes
// it under snaps/.
func (s *Store) WriteSnapshot(sessionID string, raw []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", apperr.New(apperr.KindContractViolation, "decode snapshot image", err)
	}

	resized := imaging.Fit(img, snapshotMaxDim, snapshotMaxDim, imaging.Lanczos)

	path, err := s.Path(SubdirSnaps, sessionID+".jpg")
	if err != nil {
		return "", err
	}
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return "", apperr.New(apperr.KindStore, "create temp snapshot file", err)
	}
	if err := jpeg.Encode(f, resized, &jpeg.Options{Quality: 85}); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return "", apperr.New(apperr.KindStore, "encode snapshot jpeg", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", apperr.New(apperr.KindStore, "close temp snapshot file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", apperr.New(apperr.KindStore, "rename snapshot into place", err)
	}
	return path, nil
}
