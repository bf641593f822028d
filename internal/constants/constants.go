// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package constants

import "time"

const (
	HandshakeTimeout  = 30 * time.Second
	MsgReceiveTimeout = 10 * time.Second
	TokenFetchTimeout = 15 * time.Second
	TokenTTLSeconds   = 60

	// Frames burst when the capture device delivers several buffers at
	// once after a scheduling hiccup, so give the frame channel room.
	FrameChanCapacity      = 64
	MessageChanCapacity    = 64
	StateChanCapacity      = 8
	TranscriptChanCapacity = 100

	MaxHandshakeMessages = 10

	RTPReadBufferSize = 4096
	// Max opus frame is 120ms at 48kHz mono.
	OpusMaxFrameSamples = 5760
)
