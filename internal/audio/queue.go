// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package audio

// ChunkQueue accumulates resampled PCM frames and slices them into
// fixed-size delivery chunks. Frames are kept in arrival order and are
// never dropped; a frame straddling a chunk boundary is split, with
// the remainder left at the front of the backlog.
type ChunkQueue struct {
	chunkSize int
	frames    [][]int16
	buffered  int
}

// NewChunkQueue creates a queue producing chunks of exactly chunkSize
// samples (target rate × chunk duration).
func NewChunkQueue(chunkSize int) *ChunkQueue {
	return &ChunkQueue{chunkSize: chunkSize}
}

// Enqueue appends a frame to the backlog. The queue takes ownership of
// the slice.
func (q *ChunkQueue) Enqueue(samples []int16) {
	if len(samples) == 0 {
		return
	}
	q.frames = append(q.frames, samples)
	q.buffered += len(samples)
}

// DequeueChunk returns the next full chunk, or false when fewer than
// chunkSize samples are buffered.
func (q *ChunkQueue) DequeueChunk() ([]int16, bool) {
	if q.buffered < q.chunkSize {
		return nil, false
	}

	chunk := make([]int16, 0, q.chunkSize)
	for len(chunk) < q.chunkSize {
		need := q.chunkSize - len(chunk)
		head := q.frames[0]
		if len(head) <= need {
			chunk = append(chunk, head...)
			q.frames = q.frames[1:]
		} else {
			chunk = append(chunk, head[:need]...)
			q.frames[0] = head[need:]
		}
	}

	q.buffered -= q.chunkSize
	if q.buffered < 0 {
		q.buffered = 0
	}
	return chunk, true
}

// Buffered returns the number of samples waiting in the backlog.
func (q *ChunkQueue) Buffered() int {
	return q.buffered
}

// ChunkSize returns the fixed chunk size in samples.
func (q *ChunkQueue) ChunkSize() int {
	return q.chunkSize
}

// Reset discards the backlog.
func (q *ChunkQueue) Reset() {
	q.frames = nil
	q.buffered = 0
}
