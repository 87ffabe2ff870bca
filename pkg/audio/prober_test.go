package audio

import (
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pcmWAV builds a 16-bit mono WAV of the given length.
func pcmWAV(sampleRate uint32, seconds int) []byte {
	const channels, bits = 1, 16
	byteRate := sampleRate * channels * bits / 8
	dataSize := byteRate * uint32(seconds)

	buf := make([]byte, 44+dataSize)
	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], 36+dataSize)
	copy(buf[8:], "WAVE")
	copy(buf[12:], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], 1)
	binary.LittleEndian.PutUint16(buf[22:], channels)
	binary.LittleEndian.PutUint32(buf[24:], sampleRate)
	binary.LittleEndian.PutUint32(buf[28:], byteRate)
	binary.LittleEndian.PutUint16(buf[32:], channels*bits/8)
	binary.LittleEndian.PutUint16(buf[34:], bits)
	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], dataSize)
	return buf
}

func TestDurationWAV(t *testing.T) {
	got, err := Duration(pcmWAV(8000, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, got)
}

func TestDurationRejectsGarbage(t *testing.T) {
	_, err := Duration([]byte("definitely not audio"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestProberDownloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pcmWAV(8000, 2))
	}))
	defer srv.Close()

	got, err := NewProber(0).DurationSeconds(context.Background(), srv.URL+"/a.wav")
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestProberNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewProber(0).DurationSeconds(context.Background(), srv.URL)
	assert.Error(t, err)
}
