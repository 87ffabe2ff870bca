package domain

import (
	"fmt"
	"time"
)

// TranscriptionJob is one completed job from the transcription history. The
// order id only says how fresh the job is; it does not reference an event.
type TranscriptionJob struct {
	OrderID int64
}

type TranscriptLine struct {
	Speaker string `json:"Speaker"`
	Text    string `json:"text"`
}

// Transcript is the content of one finished job.
type Transcript struct {
	AudioURL string           `json:"sound"`
	Lines    []TranscriptLine `json:"content"`
}

// FormattedLines renders each line as "Speaker : text".
func (t *Transcript) FormattedLines() []string {
	out := make([]string, 0, len(t.Lines))
	for _, l := range t.Lines {
		out = append(out, fmt.Sprintf("%s : %s", l.Speaker, l.Text))
	}
	return out
}

// HighWaterMarkKey names the sync state row holding the last consumed order id.
const HighWaterMarkKey = "transcription_high_water_mark"

// SyncState is a durable counter plus the retry bookkeeping of the job that
// is currently failing to match.
type SyncState struct {
	Key            string    `gorm:"column:name;primaryKey"`
	Value          int64     `gorm:"not null"`
	FailedOrderID  int64     `gorm:"not null;default:0"`
	FailedAttempts int       `gorm:"not null;default:0"`
	UpdatedAt      time.Time
}

func (SyncState) TableName() string {
	return "sync_states"
}
