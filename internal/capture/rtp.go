// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package capture

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/hraban/opus"
	"github.com/pion/rtp"
	"github.com/rosstspeech/buffered/internal/audio"
	"github.com/rosstspeech/buffered/internal/constants"
)

// RTP streams carrying opus are decoded at the opus native layout.
const (
	rtpSampleRate = 48000
	rtpChannels   = 1
)

// RTPSource consumes opus-in-RTP packets from a UDP socket and decodes
// them to mono float frames, for headless setups where the audio comes
// from a pipeline instead of a local microphone.
type RTPSource struct {
	addr   string
	frames chan Frame
	conn   *net.UDPConn
	closed atomic.Bool
	logger *slog.Logger
}

func NewRTPSource(addr string) *RTPSource {
	return &RTPSource{
		addr:   addr,
		frames: make(chan Frame, constants.FrameChanCapacity),
		logger: slog.With("component", "rtp_capture"),
	}
}

func (r *RTPSource) Start(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", r.addr)
	if err != nil {
		return fmt.Errorf("resolving RTP listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listening for RTP: %w", err)
	}
	r.conn = conn

	dec, err := opus.NewDecoder(rtpSampleRate, rtpChannels)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating opus decoder: %w", err)
	}

	r.logger.Info("RTP capture listening", "addr", r.addr, "sample_rate", rtpSampleRate)

	go r.readLoop(ctx, conn, dec)
	return nil
}

func (r *RTPSource) readLoop(ctx context.Context, conn *net.UDPConn, dec *opus.Decoder) {
	defer close(r.frames)

	buf := make([]byte, constants.RTPReadBufferSize)
	pcmBuf := make([]int16, constants.OpusMaxFrameSamples)

	for {
		if ctx.Err() != nil || r.closed.Load() {
			return
		}

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if !r.closed.Load() && ctx.Err() == nil {
				r.logger.Error("RTP read failed", "error", err)
			}
			return
		}
		if n == 0 {
			continue
		}

		packet := &rtp.Packet{}
		if err := packet.Unmarshal(buf[:n]); err != nil {
			continue
		}
		if len(packet.Payload) == 0 {
			continue
		}

		decoded, err := dec.Decode(packet.Payload, pcmBuf)
		if err != nil {
			r.logger.Debug("opus decode failed", "error", err)
			continue
		}
		if decoded == 0 {
			continue
		}

		samples := audio.PCMToFloat(pcmBuf[:decoded])

		select {
		case r.frames <- Frame{Samples: samples, Rate: rtpSampleRate}:
		default:
			// Consumer stalled; favor fresh audio over a growing lag.
		}
	}
}

func (r *RTPSource) Frames() <-chan Frame {
	return r.frames
}

func (r *RTPSource) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
