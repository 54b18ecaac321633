package audio_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablehq/storyvoice/internal/tts/audio"
)

func makeWAV(t *testing.T, pcm []byte) []byte {
	t.Helper()

	wav := make([]byte, 44+len(pcm))
	copy(wav[0:4], "RIFF")
	binary.LittleEndian.PutUint32(wav[4:8], uint32(36+len(pcm)))
	copy(wav[8:12], "WAVE")
	copy(wav[12:16], "fmt ")
	binary.LittleEndian.PutUint32(wav[16:20], 16)
	binary.LittleEndian.PutUint16(wav[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(wav[22:24], 1) // mono
	binary.LittleEndian.PutUint32(wav[24:28], 22050)
	binary.LittleEndian.PutUint32(wav[28:32], 44100)
	binary.LittleEndian.PutUint16(wav[32:34], 2)
	binary.LittleEndian.PutUint16(wav[34:36], 16)
	copy(wav[36:40], "data")
	binary.LittleEndian.PutUint32(wav[40:44], uint32(len(pcm)))
	copy(wav[44:], pcm)
	return wav
}

func TestMergeWAVRewritesSizes(t *testing.T) {
	a := makeWAV(t, []byte{1, 2, 3, 4})
	b := makeWAV(t, []byte{5, 6})

	merged, err := audio.Merge("wav", [][]byte{a, b})
	require.NoError(t, err)

	require.Len(t, merged, 44+6)
	assert.Equal(t, "RIFF", string(merged[0:4]))
	assert.Equal(t, uint32(36+6), binary.LittleEndian.Uint32(merged[4:8]))
	assert.Equal(t, uint32(6), binary.LittleEndian.Uint32(merged[40:44]))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, merged[44:])
}

func TestMergeSingleBufferUntouched(t *testing.T) {
	a := makeWAV(t, []byte{9, 9})
	merged, err := audio.Merge("wav", [][]byte{a})
	require.NoError(t, err)
	assert.Equal(t, a, merged)
}

func TestMergeMP3Concatenates(t *testing.T) {
	merged, err := audio.Merge("mp3", [][]byte{{1, 2}, {3}})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, merged)
}

func TestMergeRejectsNonWAV(t *testing.T) {
	_, err := audio.Merge("wav", [][]byte{{0, 1, 2}, {3, 4}})
	assert.ErrorIs(t, err, audio.ErrNotWAV)
}

func TestMergeEmpty(t *testing.T) {
	_, err := audio.Merge("mp3", nil)
	assert.Error(t, err)
}
