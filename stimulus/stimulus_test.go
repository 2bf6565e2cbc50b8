package stimulus

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/featx/core"
)

func TestLoadImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.RGBA{R: 255, G: 128, B: 0, A: 255})
	path := filepath.Join(t.TempDir(), "apple.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	stim, err := LoadImage(path, WithOnset(4.2), WithDuration(1))
	require.NoError(t, err)
	assert.Equal(t, core.KindImage, stim.Kind())
	assert.Equal(t, []int{2, 3, 3}, stim.Data.Shape)
	assert.Equal(t, []float32{255, 128, 0}, stim.Data.Floats[:3])
	assert.Equal(t, "apple", stim.Name)
	assert.Equal(t, 4.2, *stim.Onset)
	assert.Equal(t, 1.0, *stim.Duration)
	assert.NotEmpty(t, stim.ID)

	_, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wonderful.txt")
	require.NoError(t, os.WriteFile(path, []byte("  We are   wonderful people\n"), 0o644))

	text, err := LoadText(path)
	require.NoError(t, err)
	assert.Equal(t, "We are   wonderful people", text.Text)
	assert.Equal(t, "wonderful", text.Name)

	cstim, err := LoadComplexText(path, WithOnset(2))
	require.NoError(t, err)
	require.Len(t, cstim.Elements, 4)
	assert.Equal(t, "wonderful", cstim.Elements[2].Text)
	assert.Equal(t, 2, *cstim.Elements[2].Order)
	assert.Equal(t, 2.0, *cstim.Elements[2].Onset)
	assert.NotEqual(t, cstim.Elements[0].ID, cstim.Elements[1].ID)

	s := NewText("hello", WithID("fixed"), WithName("greeting"))
	assert.Equal(t, "fixed", s.ID)
	assert.Equal(t, "greeting", s.Name)
}

func TestLoadAudio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speech.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, 8000, 16, 2, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 8000},
		SourceBitDepth: 16,
		// 两个立体声帧：(16384, 16384) 和 (-32768, 0)
		Data: []int{16384, 16384, -32768, 0},
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	stim, err := LoadAudio(path)
	require.NoError(t, err)
	assert.Equal(t, 8000, stim.SampleRate)
	require.Len(t, stim.Samples, 2)
	assert.InDelta(t, 0.5, stim.Samples[0], 1e-6)
	assert.InDelta(t, -0.5, stim.Samples[1], 1e-6)
	assert.InDelta(t, 2.0/8000, *stim.Duration, 1e-9)
}

func TestLoad(t *testing.T) {
	_, err := Load("movie.mp4", false)
	assert.ErrorIs(t, err, core.ErrUnsupportedStimulus)

	kind, ok := Kind("photo.JPG")
	assert.True(t, ok)
	assert.Equal(t, core.KindImage, kind)

	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("one two"), 0o644))
	s, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, core.KindComplexText, s.Kind())
}
