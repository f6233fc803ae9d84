package audiofile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaionaro-go/spectralgate/pkg/audio"
)

func testBuffer() *Buffer {
	b := &Buffer{
		SampleRate: 16000,
		Samples:    make([]float64, 1600),
	}
	for i := range b.Samples {
		b.Samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/16000)
	}
	return b
}

func TestContainerByPath(t *testing.T) {
	assert.Equal(t, ContainerWAV, ContainerByPath("/tmp/a.WAV"))
	assert.Equal(t, ContainerOgg, ContainerByPath("b.ogg"))
	assert.Equal(t, ContainerRaw, ContainerByPath("c.pcm"))
	assert.Equal(t, ContainerRaw, ContainerByPath("noext"))
}

func TestWAV(t *testing.T) {
	for _, bitDepth := range []int{16, 24, 32} {
		t.Run(fmt.Sprint(bitDepth), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out.wav")
			f, err := os.Create(path)
			require.NoError(t, err)
			in := testBuffer()
			require.NoError(t, EncodeWAV(f, in, bitDepth))
			require.NoError(t, f.Close())

			out, err := Load(path, DefaultRawFormat())
			require.NoError(t, err)
			require.Equal(t, in.SampleRate, out.SampleRate)
			require.InDeltaSlice(t, in.Samples, out.Samples, 1.0/32768)
		})
	}

	t.Run("Save", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "saved.wav")
		in := testBuffer()
		require.NoError(t, Save(path, in, audio.PCMFormatFloat32LE))
		out, err := Load(path, RawFormat{})
		require.NoError(t, err)
		require.Len(t, out.Samples, len(in.Samples))
		require.Equal(t, 100*time.Millisecond, out.Duration())
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := DecodeWAV(bytes.NewReader([]byte("definitely not a RIFF file")))
		require.Error(t, err)
	})

	t.Run("unsupported_bit_depth", func(t *testing.T) {
		f, err := os.Create(filepath.Join(t.TempDir(), "x.wav"))
		require.NoError(t, err)
		defer f.Close()
		require.Error(t, EncodeWAV(f, testBuffer(), 12))
	})
}

func TestRaw(t *testing.T) {
	in := testBuffer()

	var buf bytes.Buffer
	require.NoError(t, EncodeRaw(&buf, in, audio.PCMFormatS16LE))
	require.Equal(t, 2*len(in.Samples), buf.Len())

	out, err := DecodeRaw(&buf, RawFormat{
		PCMFormat:  audio.PCMFormatS16LE,
		Channels:   1,
		SampleRate: in.SampleRate,
	})
	require.NoError(t, err)
	require.Equal(t, in.SampleRate, out.SampleRate)
	require.InDeltaSlice(t, in.Samples, out.Samples, 1.0/32768)

	t.Run("stereo_downmix", func(t *testing.T) {
		data := make([]byte, 4*4)
		binary.LittleEndian.PutUint32(data[0:], math.Float32bits(0.2))
		binary.LittleEndian.PutUint32(data[4:], math.Float32bits(0.4))
		binary.LittleEndian.PutUint32(data[8:], math.Float32bits(-1))
		binary.LittleEndian.PutUint32(data[12:], math.Float32bits(1))
		out, err := DecodeRaw(bytes.NewReader(data), RawFormat{
			PCMFormat:  audio.PCMFormatFloat32LE,
			Channels:   2,
			SampleRate: 8000,
		})
		require.NoError(t, err)
		require.InDeltaSlice(t, []float64{0.3, 0}, out.Samples, 1e-6)
	})

	t.Run("Save", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "saved.f32")
		require.NoError(t, Save(path, in, audio.PCMFormatFloat32LE))
		out, err := Load(path, RawFormat{PCMFormat: audio.PCMFormatFloat32LE, Channels: 1, SampleRate: 16000})
		require.NoError(t, err)
		require.InDeltaSlice(t, in.Samples, out.Samples, 1e-6)
	})
}

func TestOggInvalid(t *testing.T) {
	_, err := DecodeOgg(bytes.NewReader([]byte("OggS but not really")))
	require.Error(t, err)

	require.Error(t, Save(filepath.Join(t.TempDir(), "x.ogg"), testBuffer(), audio.PCMFormatFloat32LE))
}

func TestBuffer(t *testing.T) {
	b := testBuffer()
	b.TrimTail(30 * time.Millisecond)
	require.Len(t, b.Samples, 1600-480)
	b.TrimTail(time.Hour)
	require.Empty(t, b.Samples)

	f32 := testBuffer().Float32()
	b = NewBufferFromFloat32(16000, f32)
	require.InDeltaSlice(t, testBuffer().Samples, b.Samples, 1e-7)
}
