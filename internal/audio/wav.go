// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package audio

import (
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder dumps the resampled session audio to a mono 16-bit WAV
// file. Diagnostic plumbing only; it sits outside the delivery path.
type Recorder struct {
	f   *os.File
	enc *wav.Encoder
}

func NewRecorder(path string, sampleRate int) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav file: %w", err)
	}
	return &Recorder{
		f:   f,
		enc: wav.NewEncoder(f, sampleRate, 16, 1, 1),
	}, nil
}

func (r *Recorder) Write(samples []int16) error {
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: r.enc.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := r.enc.Write(buf); err != nil {
		return fmt.Errorf("write wav samples: %w", err)
	}
	return nil
}

// Close finalizes the WAV header and closes the file.
func (r *Recorder) Close() error {
	if err := r.enc.Close(); err != nil {
		r.f.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	return r.f.Close()
}
