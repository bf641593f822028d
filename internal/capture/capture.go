// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package capture

import "context"

// Frame is one contiguous run of mono float samples at the capture
// device's native rate. Ownership transfers to the consumer.
type Frame struct {
	Samples []float32
	Rate    int
}

// Source produces audio frames. Implementations push onto Frames until
// the context ends or Close is called, then close the channel.
type Source interface {
	Start(ctx context.Context) error
	Frames() <-chan Frame
	Close() error
}
