// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/rosstspeech/buffered/internal/constants"
)

// MicSource reads mono float frames from the default input device via
// PortAudio.
type MicSource struct {
	rate      int
	frameSize int
	frames    chan Frame
	stream    *portaudio.Stream
	closed    atomic.Bool
	logger    *slog.Logger
}

func NewMicSource(rate, frameSize int) *MicSource {
	return &MicSource{
		rate:      rate,
		frameSize: frameSize,
		frames:    make(chan Frame, constants.FrameChanCapacity),
		logger:    slog.With("component", "mic_capture"),
	}
}

// Start opens the default input stream and begins reading. A capture
// failure here is fatal to the session start; read errors afterwards
// end the stream and close the frame channel.
func (m *MicSource) Start(ctx context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	buf := make([]float32, m.frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.rate), len(buf), buf)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("starting input stream: %w", err)
	}
	m.stream = stream

	m.logger.Info("microphone capture started", "sample_rate", m.rate, "frame_size", m.frameSize)

	go func() {
		defer close(m.frames)
		for {
			if ctx.Err() != nil || m.closed.Load() {
				return
			}
			if err := stream.Read(); err != nil {
				if !m.closed.Load() {
					m.logger.Error("input stream read failed", "error", err)
				}
				return
			}

			samples := make([]float32, len(buf))
			copy(samples, buf)

			select {
			case m.frames <- Frame{Samples: samples, Rate: m.rate}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (m *MicSource) Frames() <-chan Frame {
	return m.frames
}

func (m *MicSource) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	var err error
	if m.stream != nil {
		m.stream.Stop()
		err = m.stream.Close()
	}
	portaudio.Terminate()
	return err
}
