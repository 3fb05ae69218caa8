package assets

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CreatesAllPermittedSubdirectories(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	for _, sub := range []Subdir{SubdirSnaps, SubdirTTS, SubdirTmp, SubdirLogs, SubdirMembers} {
		info, err := os.Stat(store.BaseDir + "/" + string(sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestPath_RejectsUnpermittedSubdirectory(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Path(Subdir("../etc"), "passwd")
	assert.Error(t, err)
}

func TestPath_RejectsFilenameWithSeparator(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Path(SubdirSnaps, "../../escape.jpg")
	assert.Error(t, err)
}

func TestPath_RejectsEmptyFilename(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Path(SubdirSnaps, "")
	assert.Error(t, err)
}

func TestWriteAtomic_WritesFileVisibleAfterReturn(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	path, err := store.WriteAtomic(SubdirTTS, "s1.txt", []byte("hello"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// no leftover temp file
	_, statErr := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteTempAudio_CreatesPerSessionDirectory(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	path, err := store.WriteTempAudio("session-1", "20260101T000000", []byte{1, 2, 3})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestWriteSnapshot_ResizesAndReencodesAsJPEG(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 2000, 1000))
	for y := 0; y < 1000; y++ {
		for x := 0; x < 2000; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	path, err := store.WriteSnapshot("session-2", buf.Bytes())
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	decoded, _, err := image.Decode(f)
	require.NoError(t, err)
	bounds := decoded.Bounds()
	assert.LessOrEqual(t, bounds.Dx(), snapshotMaxDim)
	assert.LessOrEqual(t, bounds.Dy(), snapshotMaxDim)
}

func TestWriteSnapshot_RejectsUndecodableData(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.WriteSnapshot("session-3", []byte("not an image"))
	assert.Error(t, err)
}
