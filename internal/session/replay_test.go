// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"testing"
	"time"
)

func TestReplayVirtualClockStamping(t *testing.T) {
	b := NewReplayBuffer(50 * time.Millisecond)
	for i := 0; i < 3; i++ {
		b.Record([]int16{int16(i)})
	}

	wantOffsets := []time.Duration{0, 50 * time.Millisecond, 100 * time.Millisecond}
	for i, e := range b.entries {
		if e.Offset != wantOffsets[i] {
			t.Errorf("entry %d offset = %v, want %v", i, e.Offset, wantOffsets[i])
		}
	}
}

func TestReplayTrimByConfirmedEndTime(t *testing.T) {
	// 10 chunks of 50ms stamped 0.00..0.45; trimming at 0.22s evicts
	// the five entries below 0.22 and keeps 0.25..0.45.
	b := NewReplayBuffer(50 * time.Millisecond)
	for i := 0; i < 10; i++ {
		b.Record([]int16{int16(i)})
	}

	b.Trim(220 * time.Millisecond)
	if b.Len() != 5 {
		t.Fatalf("Len() after trim = %d, want 5", b.Len())
	}
	if b.entries[0].Chunk[0] != 5 {
		t.Errorf("front entry = chunk %d, want chunk 5", b.entries[0].Chunk[0])
	}
}

func TestReplayTrimIsMonotonic(t *testing.T) {
	b := NewReplayBuffer(50 * time.Millisecond)
	for i := 0; i < 10; i++ {
		b.Record([]int16{int16(i)})
	}

	b.Trim(220 * time.Millisecond)
	before := b.Len()

	// Same and decreasing confirmed times are no-ops.
	b.Trim(220 * time.Millisecond)
	if b.Len() != before {
		t.Errorf("repeated trim changed Len to %d, want %d", b.Len(), before)
	}
	b.Trim(100 * time.Millisecond)
	if b.Len() != before {
		t.Errorf("decreasing trim changed Len to %d, want %d", b.Len(), before)
	}

	b.Trim(300 * time.Millisecond)
	if b.Len() != 4 {
		t.Errorf("Len() after forward trim = %d, want 4", b.Len())
	}
}

func TestReplayDrainReturnsInOrderAndClears(t *testing.T) {
	b := NewReplayBuffer(50 * time.Millisecond)
	for i := 0; i < 4; i++ {
		b.Record([]int16{int16(i)})
	}
	b.Trim(60 * time.Millisecond) // drops chunks 0 and 1

	chunks := b.Drain()
	if len(chunks) != 2 {
		t.Fatalf("Drain returned %d chunks, want 2", len(chunks))
	}
	if chunks[0][0] != 2 || chunks[1][0] != 3 {
		t.Errorf("drained order = %d,%d, want 2,3", chunks[0][0], chunks[1][0])
	}
	if b.Len() != 0 {
		t.Errorf("Len() after Drain = %d, want 0", b.Len())
	}
}

func TestReplayResetRewindsClock(t *testing.T) {
	b := NewReplayBuffer(50 * time.Millisecond)
	b.Record([]int16{1})
	b.Record([]int16{2})
	b.Trim(time.Second)

	b.Reset()
	if b.Len() != 0 {
		t.Fatalf("Len() after Reset = %d, want 0", b.Len())
	}

	// New epoch restarts at offset zero and trims from zero again.
	b.Record([]int16{3})
	if b.entries[0].Offset != 0 {
		t.Errorf("first offset of new epoch = %v, want 0", b.entries[0].Offset)
	}
	b.Trim(50 * time.Millisecond)
	if b.Len() != 0 {
		t.Errorf("trim after Reset kept %d entries, want 0", b.Len())
	}
}
