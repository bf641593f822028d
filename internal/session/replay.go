// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "time"

// ReplayEntry is one already-sent chunk retained for resending after a
// reconnect, stamped with its position on the epoch's virtual clock.
type ReplayEntry struct {
	Chunk  []int16
	Offset time.Duration
}

// ReplayBuffer keeps a trailing window of sent chunks. Timestamps come
// from a virtual clock that advances one chunk duration per Record
// call, never from the wall clock, so trimming follows transcript
// progress exactly regardless of network jitter. Entries are always a
// contiguous suffix of send order; trimming only ever removes from the
// front.
type ReplayBuffer struct {
	chunkDur  time.Duration
	entries   []ReplayEntry
	clock     time.Duration
	confirmed time.Duration
}

func NewReplayBuffer(chunkDur time.Duration) *ReplayBuffer {
	return &ReplayBuffer{chunkDur: chunkDur}
}

// Record appends a sent chunk stamped with the cumulative duration of
// everything recorded before it in this epoch.
func (b *ReplayBuffer) Record(chunk []int16) {
	b.entries = append(b.entries, ReplayEntry{Chunk: chunk, Offset: b.clock})
	b.clock += b.chunkDur
}

// Trim evicts entries older than the confirmed transcript end time.
// The confirmed time only moves forward: calls with a value at or
// below the last applied one are no-ops.
func (b *ReplayBuffer) Trim(confirmed time.Duration) {
	if confirmed <= b.confirmed {
		return
	}
	b.confirmed = confirmed

	i := 0
	for i < len(b.entries) && b.entries[i].Offset < confirmed {
		i++
	}
	if i > 0 {
		b.entries = append([]ReplayEntry(nil), b.entries[i:]...)
	}
}

// Drain returns the remaining chunks oldest-first and clears the
// buffer, used to start a replay after reconnecting.
func (b *ReplayBuffer) Drain() [][]int16 {
	chunks := make([][]int16, len(b.entries))
	for i, e := range b.entries {
		chunks[i] = e.Chunk
	}
	b.entries = nil
	return chunks
}

// Len returns the number of retained entries.
func (b *ReplayBuffer) Len() int {
	return len(b.entries)
}

// Reset clears all entries and rewinds the virtual clock for a new
// connection epoch.
func (b *ReplayBuffer) Reset() {
	b.entries = nil
	b.clock = 0
	b.confirmed = 0
}
