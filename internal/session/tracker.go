// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"time"

	"github.com/rosstspeech/buffered/internal/audio"
)

// PendingDelivery is one sent-but-unacknowledged chunk.
type PendingDelivery struct {
	Seq    uint64
	Chunk  []int16
	SentAt time.Time
}

// Tracker assigns monotonic sequence numbers to outgoing chunks and
// tracks the unacknowledged ones. Sequence numbers start at 1 and are
// never reused within a connection epoch; Reset begins a new epoch.
// The tracker is owned by the controller loop and is not safe for
// concurrent use.
type Tracker struct {
	sendAudio func([]byte) error
	next      uint64
	pending   map[uint64]PendingDelivery
}

func NewTracker(sendAudio func([]byte) error) *Tracker {
	return &Tracker{
		sendAudio: sendAudio,
		next:      1,
		pending:   make(map[uint64]PendingDelivery),
	}
}

// Send assigns the next sequence number, records the chunk as pending
// and hands its PCM bytes to the transport. The chunk stays pending
// even when the transport write fails; the health check will notice
// the stale record and force a reconnect.
func (t *Tracker) Send(chunk []int16, now time.Time) (uint64, error) {
	seq := t.next
	t.next++
	t.pending[seq] = PendingDelivery{Seq: seq, Chunk: chunk, SentAt: now}
	return seq, t.sendAudio(audio.Int16ToBytes(chunk))
}

// Acknowledge applies a cumulative acknowledgment: every pending
// record with sequence number ≤ seq is confirmed delivered. Returns
// the number of records cleared.
func (t *Tracker) Acknowledge(seq uint64) int {
	cleared := 0
	for s := range t.pending {
		if s <= seq {
			delete(t.pending, s)
			cleared++
		}
	}
	return cleared
}

// PendingOlderThan reports whether any pending record was sent more
// than age before now.
func (t *Tracker) PendingOlderThan(age time.Duration, now time.Time) bool {
	for _, p := range t.pending {
		if now.Sub(p.SentAt) > age {
			return true
		}
	}
	return false
}

// Pending returns the number of unacknowledged chunks.
func (t *Tracker) Pending() int {
	return len(t.pending)
}

// LastSeq returns the most recently assigned sequence number, zero
// when nothing was sent this epoch.
func (t *Tracker) LastSeq() uint64 {
	return t.next - 1
}

// Reset abandons all pending records and restarts numbering at 1 for
// a new connection epoch.
func (t *Tracker) Reset() {
	t.pending = make(map[uint64]PendingDelivery)
	t.next = 1
}
