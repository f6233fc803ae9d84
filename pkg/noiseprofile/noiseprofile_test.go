package noiseprofile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRead(t *testing.T) {
	samples := []float32{0, 0.25, -0.5, 1e-6, -1}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, samples))
	require.Equal(t, 8+4*len(samples), buf.Len())
	require.Equal(t, uint64(len(samples)), binary.NativeEndian.Uint64(buf.Bytes()))

	result, err := Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, samples, result)

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, nil))
		result, err := Read(&buf)
		require.NoError(t, err)
		require.Empty(t, result)
	})

	t.Run("truncated_header", func(t *testing.T) {
		_, err := Read(bytes.NewReader(buf.Bytes()[:5]))
		require.True(t, errors.Is(err, ErrTruncated), err)
	})

	t.Run("truncated_samples", func(t *testing.T) {
		_, err := Read(bytes.NewReader(buf.Bytes()[:buf.Len()-1]))
		require.True(t, errors.Is(err, ErrTruncated), err)
	})

	t.Run("too_large", func(t *testing.T) {
		header := make([]byte, 8)
		binary.NativeEndian.PutUint64(header, MaxSamples+1)
		_, err := Read(bytes.NewReader(header))
		require.Error(t, err)
		require.False(t, errors.Is(err, ErrTruncated))
	})
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "Voice", defaultName)
	samples := []float32{0.1, 0.2, 0.3}
	require.NoError(t, Save(path, samples))

	result, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, samples, result)

	_, err = Load(filepath.Join(t.TempDir(), "missing"))
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("HOME", "/home/somebody")
	path, err := DefaultPath()
	require.NoError(t, err)
	require.Equal(t, "/home/somebody/Voice/.noise_profile.dat", path)
}
