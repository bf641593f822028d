// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

// SocketState mirrors the lifecycle of the underlying websocket.
type SocketState int

const (
	StateConnecting SocketState = iota
	StateConnected
	StateClosed
	StateError
)

func (s SocketState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	}
	return "unknown"
}
