// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

// Message type names on the realtime transcription wire. Audio itself
// is sent as binary websocket frames and carries no message name; the
// server numbers audio frames in arrival order starting at 1.
const (
	MsgStartRecognition     = "StartRecognition"
	MsgEndOfStream          = "EndOfStream"
	MsgRecognitionStarted   = "RecognitionStarted"
	MsgAudioAdded           = "AudioAdded"
	MsgAddTranscript        = "AddTranscript"
	MsgAddPartialTranscript = "AddPartialTranscript"
	MsgEndOfTranscript      = "EndOfTranscript"
	MsgError                = "Error"
)

// StartConfig is the start configuration sent with StartRecognition
// and reused verbatim on every reconnect.
type StartConfig struct {
	SampleRate     int
	Language       string
	OperatingPoint string
	EnablePartials bool
	MaxDelay       float64
}

type StartRecognition struct {
	Message             string              `json:"message"`
	AudioFormat         AudioFormat         `json:"audio_format"`
	TranscriptionConfig TranscriptionConfig `json:"transcription_config"`
}

type AudioFormat struct {
	Type       string `json:"type"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type TranscriptionConfig struct {
	Language       string  `json:"language"`
	OperatingPoint string  `json:"operating_point,omitempty"`
	EnablePartials bool    `json:"enable_partials"`
	MaxDelay       float64 `json:"max_delay,omitempty"`
}

// NewStartRecognition builds the start message for a raw PCM
// signed 16-bit little-endian stream at the configured target rate.
func NewStartRecognition(cfg StartConfig) StartRecognition {
	return StartRecognition{
		Message: MsgStartRecognition,
		AudioFormat: AudioFormat{
			Type:       "raw",
			Encoding:   "pcm_s16le",
			SampleRate: cfg.SampleRate,
		},
		TranscriptionConfig: TranscriptionConfig{
			Language:       cfg.Language,
			OperatingPoint: cfg.OperatingPoint,
			EnablePartials: cfg.EnablePartials,
			MaxDelay:       cfg.MaxDelay,
		},
	}
}

type EndOfStream struct {
	Message   string `json:"message"`
	LastSeqNo uint64 `json:"last_seq_no"`
}

// ServerMessage is the union of everything the server sends. Fields
// are populated depending on Message; absent fields stay zero.
type ServerMessage struct {
	Message string `json:"message"`

	// RecognitionStarted
	ID string `json:"id,omitempty"`

	// AudioAdded
	SeqNo uint64 `json:"seq_no,omitempty"`

	// AddTranscript / AddPartialTranscript
	Metadata *TranscriptMetadata `json:"metadata,omitempty"`
	Results  []Result            `json:"results,omitempty"`

	// Error
	Type   string `json:"type,omitempty"`
	Reason string `json:"reason,omitempty"`
	Code   int    `json:"code,omitempty"`
}

type TranscriptMetadata struct {
	Transcript string  `json:"transcript"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
}

type Result struct {
	Type         string        `json:"type"`
	StartTime    float64       `json:"start_time"`
	EndTime      float64       `json:"end_time"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
}

type Alternative struct {
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// MaxEndTime returns the largest end_time across the message's result
// segments, falling back to the metadata end time when no segment
// carries one. Zero means the message confirms no transcript progress.
func (m *ServerMessage) MaxEndTime() float64 {
	var max float64
	for _, r := range m.Results {
		if r.EndTime > max {
			max = r.EndTime
		}
	}
	if max == 0 && m.Metadata != nil {
		max = m.Metadata.EndTime
	}
	return max
}

// Transcript returns the display text of a transcript message.
func (m *ServerMessage) Transcript() string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata.Transcript
}
