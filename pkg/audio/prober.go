// Package audio measures the length of recorded meetings.
package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hajimehoshi/go-mp3"
)

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Prober downloads a recording and reports its duration in whole seconds.
type Prober struct {
	http *resty.Client
}

func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Prober{http: resty.New().SetTimeout(timeout)}
}

func (p *Prober) DurationSeconds(ctx context.Context, url string) (int, error) {
	resp, err := p.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return 0, fmt.Errorf("download audio: %w", err)
	}
	if !resp.IsSuccess() {
		return 0, fmt.Errorf("download audio: status %d", resp.StatusCode())
	}
	return Duration(resp.Body())
}

// Duration decodes WAV headers directly and falls back to MP3 frames.
func Duration(data []byte) (int, error) {
	if isWAV(data) {
		return wavDuration(data)
	}
	return mp3Duration(data)
}

func mp3Duration(data []byte) (int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if dec.SampleRate() <= 0 || dec.Length() <= 0 {
		return 0, ErrUnsupportedFormat
	}
	// decoded stream is 16-bit stereo: 4 bytes per sample
	samples := dec.Length() / 4
	return int(samples / int64(dec.SampleRate())), nil
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func wavDuration(data []byte) (int, error) {
	var byteRate uint32
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8

		switch id {
		case "fmt ":
			if body+12 > len(data) {
				return 0, ErrUnsupportedFormat
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
		case "data":
			if byteRate == 0 {
				return 0, ErrUnsupportedFormat
			}
			// streamed recordings may leave the size unset
			if size == 0 || body+size > len(data) {
				size = len(data) - body
			}
			return int(uint32(size) / byteRate), nil
		}

		pos = body + size + size%2
	}
	return 0, ErrUnsupportedFormat
}
