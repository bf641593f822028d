// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rosstspeech/buffered/internal/audio"
	"github.com/rosstspeech/buffered/internal/capture"
	"github.com/rosstspeech/buffered/internal/constants"
	"github.com/rosstspeech/buffered/internal/metrics"
	"github.com/rosstspeech/buffered/internal/protocol"
	"github.com/rosstspeech/buffered/internal/transcript"
	"github.com/rosstspeech/buffered/internal/transport"
)

// State of the session lifecycle.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateStreaming
	StateReconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Credentials acquires a short-lived token for one connection epoch.
type Credentials interface {
	Fetch(ctx context.Context) (string, error)
}

// Transport is one connection epoch to the transcription service.
type Transport interface {
	Start(ctx context.Context, token string, cfg protocol.StartConfig) error
	SendAudio(b []byte) error
	StopRecognition() error
	Messages() <-chan *protocol.ServerMessage
	States() <-chan transport.SocketState
	Close() error
}

// DialFunc creates a fresh, unstarted Transport. The controller calls
// it once at start and once per reconnect.
type DialFunc func() Transport

// Config carries the session tunables. Zero fields fall back to the
// documented defaults.
type Config struct {
	TargetSampleRate int
	ChunkDuration    time.Duration
	AckTimeout       time.Duration
	HealthInterval   time.Duration
	// SettleDelay is the pause after a new transport opens before
	// traffic resumes.
	SettleDelay time.Duration

	Language       string
	OperatingPoint string
	EnablePartials bool
	MaxDelay       float64
}

func (c *Config) applyDefaults() {
	if c.TargetSampleRate == 0 {
		c.TargetSampleRate = 16000
	}
	if c.ChunkDuration == 0 {
		c.ChunkDuration = 50 * time.Millisecond
	}
	if c.AckTimeout == 0 {
		c.AckTimeout = 3 * time.Second
	}
	if c.HealthInterval == 0 {
		c.HealthInterval = time.Second
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = 500 * time.Millisecond
	}
	if c.Language == "" {
		c.Language = "en"
	}
}

func (c *Config) chunkSize() int {
	return int(time.Duration(c.TargetSampleRate) * c.ChunkDuration / time.Second)
}

type reconnectResult struct {
	tr  Transport
	err error
}

// Controller orchestrates the session: it owns the chunk queue, the
// delivery tracker and the replay buffer, and runs the state machine
// across connection epochs. All core state is mutated by a single
// event-loop goroutine; external inputs arrive on channels, so the
// core needs no locks. Asynchronous reconnect work (credential fetch,
// dial, settle delay) happens off-loop and posts its result back as an
// event.
type Controller struct {
	cfg   Config
	creds Credentials
	dial  DialFunc
	log   *slog.Logger
	met   *metrics.Metrics

	frames      chan capture.Frame
	transcripts chan transcript.Segment
	reconnected chan reconnectResult
	stopCh      chan struct{}
	stopOnce    *sync.Once
	done        chan struct{}

	queue   *audio.ChunkQueue
	tracker *Tracker
	replay  *ReplayBuffer
	health  *HealthMonitor

	state atomic.Int32

	// Loop-owned fields below; touched only by run() and by Start
	// before the loop exists.
	ctx          context.Context
	tr           Transport
	msgCh        <-chan *protocol.ServerMessage
	stateCh      <-chan transport.SocketState
	reconnecting bool
	epoch        uint64
}

func NewController(cfg Config, creds Credentials, dial DialFunc, met *metrics.Metrics) *Controller {
	cfg.applyDefaults()

	c := &Controller{
		cfg:         cfg,
		creds:       creds,
		dial:        dial,
		met:         met,
		log:         slog.With("component", "session"),
		frames:      make(chan capture.Frame, constants.FrameChanCapacity),
		transcripts: make(chan transcript.Segment, constants.TranscriptChanCapacity),
		queue:       audio.NewChunkQueue(cfg.chunkSize()),
		health:      NewHealthMonitor(cfg.HealthInterval, cfg.AckTimeout),
	}
	c.tracker = NewTracker(c.transportSend)
	c.replay = NewReplayBuffer(cfg.ChunkDuration)
	c.state.Store(int32(StateIdle))
	return c
}

// Start acquires a credential, opens the transport and begins
// streaming. Credential or transport failure surfaces to the caller
// and leaves the session idle. Valid from Idle or Stopped.
func (c *Controller) Start(ctx context.Context) error {
	switch c.State() {
	case StateIdle, StateStopped:
	default:
		return fmt.Errorf("cannot start session from state %s", c.State())
	}
	c.setState(StateStarting)

	token, err := c.creds.Fetch(ctx)
	if err != nil {
		c.setState(StateIdle)
		return fmt.Errorf("acquiring credential: %w", err)
	}

	tr := c.dial()
	if err := tr.Start(ctx, token, c.startConfig()); err != nil {
		tr.Close()
		c.setState(StateIdle)
		return fmt.Errorf("opening transport: %w", err)
	}

	c.ctx = ctx
	c.stopCh = make(chan struct{})
	c.stopOnce = &sync.Once{}
	c.done = make(chan struct{})
	c.reconnected = make(chan reconnectResult, 1)
	c.queue.Reset()
	c.tracker.Reset()
	c.replay.Reset()
	c.reconnecting = false
	c.epoch = 1

	c.attachTransport(tr)
	c.health.Start()
	c.setState(StateStreaming)

	go c.run(ctx)

	c.log.Info("session started",
		"sample_rate", c.cfg.TargetSampleRate,
		"chunk_duration", c.cfg.ChunkDuration,
		"language", c.cfg.Language,
	)
	return nil
}

// Stop ends the session from any state, effective even mid-reconnect,
// and blocks until the event loop has cleared all state.
func (c *Controller) Stop() {
	switch c.State() {
	case StateIdle, StateStopped:
		c.setState(StateStopped)
		return
	}
	if c.stopOnce == nil {
		c.setState(StateStopped)
		return
	}
	c.stopOnce.Do(func() { close(c.stopCh) })
	<-c.done
}

// PushFrame feeds captured audio into the session. Safe to call from
// the capture goroutine; frames are dropped once the session stops.
func (c *Controller) PushFrame(f capture.Frame) {
	switch c.State() {
	case StateIdle, StateStopped:
		return
	}
	select {
	case c.frames <- f:
	default:
		c.log.Warn("frame channel full, dropping frame")
	}
}

// Transcripts exposes the incremental transcript stream.
func (c *Controller) Transcripts() <-chan transcript.Segment {
	return c.transcripts
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

// Epoch returns the current connection epoch, starting at 1.
func (c *Controller) Epoch() uint64 {
	return c.epoch
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Controller) startConfig() protocol.StartConfig {
	return protocol.StartConfig{
		SampleRate:     c.cfg.TargetSampleRate,
		Language:       c.cfg.Language,
		OperatingPoint: c.cfg.OperatingPoint,
		EnablePartials: c.cfg.EnablePartials,
		MaxDelay:       c.cfg.MaxDelay,
	}
}

func (c *Controller) transportSend(b []byte) error {
	if c.tr == nil {
		return transport.ErrNotConnected
	}
	return c.tr.SendAudio(b)
}

func (c *Controller) attachTransport(tr Transport) {
	c.tr = tr
	c.msgCh = tr.Messages()
	c.stateCh = tr.States()
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return

		case <-c.stopCh:
			c.shutdown()
			return

		case f := <-c.frames:
			c.handleFrame(f)

		case msg, ok := <-c.msgCh:
			if !ok {
				// Read loop ended; the socket state event decides what
				// happens next.
				c.msgCh = nil
				continue
			}
			c.handleMessage(msg)

		case st := <-c.stateCh:
			c.handleSocketState(st)

		case now := <-c.health.C():
			c.handleHealthTick(now)

		case res := <-c.reconnected:
			c.finishReconnect(res)
		}
	}
}

// handleFrame resamples and enqueues captured audio. While
// reconnecting, live audio accumulates in the queue so it is sent
// after the replayed window and backlog, preserving production order.
func (c *Controller) handleFrame(f capture.Frame) {
	pcm := audio.Resample(f.Samples, f.Rate, c.cfg.TargetSampleRate)
	c.queue.Enqueue(pcm)
	if c.State() == StateStreaming {
		c.pump()
	}
}

func (c *Controller) pump() {
	for c.State() == StateStreaming {
		chunk, ok := c.queue.DequeueChunk()
		if !ok {
			return
		}
		c.sendChunk(chunk)
	}
}

func (c *Controller) sendChunk(chunk []int16) {
	seq, err := c.tracker.Send(chunk, time.Now())
	c.replay.Record(chunk)
	c.met.RecordChunkSent(len(chunk) * 2)
	c.met.SetPending(c.tracker.Pending())
	if err != nil {
		c.log.Warn("audio send failed", "seq", seq, "error", err)
		c.beginReconnect("send failed")
	}
}

func (c *Controller) handleMessage(msg *protocol.ServerMessage) {
	switch msg.Message {
	case protocol.MsgAudioAdded:
		if cleared := c.tracker.Acknowledge(msg.SeqNo); cleared > 0 {
			c.met.RecordAck()
			c.met.SetPending(c.tracker.Pending())
		}

	case protocol.MsgAddTranscript:
		if end := msg.MaxEndTime(); end > 0 {
			c.replay.Trim(time.Duration(end * float64(time.Second)))
		}
		c.met.RecordTranscript(true)
		c.emitSegment(msg, true)

	case protocol.MsgAddPartialTranscript:
		c.met.RecordTranscript(false)
		c.emitSegment(msg, false)

	case protocol.MsgRecognitionStarted:
		c.log.Debug("recognition confirmed", "recognition_id", msg.ID)

	case protocol.MsgEndOfTranscript:
		c.log.Info("end of transcript received", "epoch", c.epoch)

	case protocol.MsgError:
		c.log.Error("service error", "type", msg.Type, "reason", msg.Reason)

	default:
		// Unknown message types are no-ops.
	}
}

func (c *Controller) emitSegment(msg *protocol.ServerMessage, final bool) {
	if msg.Metadata == nil {
		return
	}
	seg := transcript.Segment{
		Text:      msg.Metadata.Transcript,
		Final:     final,
		StartTime: msg.Metadata.StartTime,
		EndTime:   msg.Metadata.EndTime,
	}
	select {
	case c.transcripts <- seg:
	default:
		c.log.Warn("transcript channel full, dropping segment")
	}
}

func (c *Controller) handleSocketState(st transport.SocketState) {
	switch st {
	case transport.StateClosed, transport.StateError:
		if c.State() == StateStreaming {
			c.log.Warn("transport lost", "socket_state", st.String())
			c.beginReconnect("socket " + st.String())
		}
	default:
		c.log.Debug("socket state", "socket_state", st.String())
	}
}

func (c *Controller) handleHealthTick(now time.Time) {
	if c.reconnecting || c.State() == StateStopped {
		return
	}
	// A failed attempt leaves the session in Reconnecting with no
	// attempt in flight; the next tick retries. There is no retry cap.
	if c.State() == StateReconnecting {
		c.beginReconnect("retry")
		return
	}
	if c.health.Stale(c.tracker, now) {
		c.log.Warn("acknowledgment timeout", "pending", c.tracker.Pending())
		c.beginReconnect("ack timeout")
	}
}

// beginReconnect tears down the current epoch and kicks off an
// asynchronous reconnect. The reconnecting guard makes concurrent
// trigger sources (health timeout, socket close, send failure)
// collapse into one attempt; extra triggers are dropped silently.
func (c *Controller) beginReconnect(reason string) {
	if c.reconnecting || c.State() == StateStopped {
		return
	}
	c.reconnecting = true
	c.setState(StateReconnecting)
	c.met.RecordReconnect()
	c.log.Info("reconnecting", "reason", reason, "epoch", c.epoch)

	if c.tr != nil {
		c.tr.Close()
	}
	c.tr = nil
	c.msgCh = nil
	c.stateCh = nil

	go c.reconnect()
}

// reconnect runs off-loop: it performs the blocking work of a new
// epoch and posts the outcome back to the event loop. It never touches
// queue, tracker or replay state. A stop observed at any point drops
// the attempt without dialing further.
func (c *Controller) reconnect() {
	token, err := c.creds.Fetch(c.ctx)
	if err != nil {
		c.reconnected <- reconnectResult{err: fmt.Errorf("acquiring credential: %w", err)}
		return
	}
	if c.stopping() {
		return
	}

	tr := c.dial()
	if err := tr.Start(c.ctx, token, c.startConfig()); err != nil {
		tr.Close()
		c.reconnected <- reconnectResult{err: fmt.Errorf("opening transport: %w", err)}
		return
	}

	// Let the fresh connection settle before resuming traffic.
	select {
	case <-time.After(c.cfg.SettleDelay):
	case <-c.ctx.Done():
	case <-c.stopCh:
	}
	if c.stopping() {
		tr.Close()
		return
	}

	c.reconnected <- reconnectResult{tr: tr}
}

func (c *Controller) stopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return c.ctx.Err() != nil
	}
}

func (c *Controller) finishReconnect(res reconnectResult) {
	c.reconnecting = false

	if c.State() == StateStopped {
		if res.tr != nil {
			res.tr.Close()
		}
		return
	}
	if res.err != nil {
		c.log.Error("reconnect attempt failed", "error", res.err)
		return
	}

	c.epoch++
	c.attachTransport(res.tr)

	// The old epoch is abandoned wholesale: cumulative acks make
	// per-sequence retry pointless. Everything not yet confirmed
	// transcribed is resent with fresh sequence numbers.
	replayChunks := c.replay.Drain()
	c.replay.Reset()
	c.tracker.Reset()
	c.met.SetPending(0)
	c.met.RecordReplayedChunks(len(replayChunks))

	c.setState(StateStreaming)
	c.log.Info("transport reopened",
		"epoch", c.epoch,
		"replay_chunks", len(replayChunks),
		"backlog_samples", c.queue.Buffered(),
	)

	for i, chunk := range replayChunks {
		c.sendChunk(chunk)
		if c.State() != StateStreaming {
			// Send failed mid-replay; keep the unsent remainder for the
			// next epoch (the failed chunk re-recorded itself).
			for _, rest := range replayChunks[i+1:] {
				c.replay.Record(rest)
			}
			return
		}
	}

	// Backlog next, then live audio flows through handleFrame again.
	c.pump()
}

// shutdown clears all session state, not just the epoch: a stopped
// session leaves nothing behind for a later restart to trip over.
func (c *Controller) shutdown() {
	c.setState(StateStopped)
	c.health.Stop()

	if c.tr != nil {
		if err := c.tr.StopRecognition(); err != nil {
			c.log.Debug("end of stream not delivered", "error", err)
		}
		c.tr.Close()
		c.tr = nil
	}
	c.msgCh = nil
	c.stateCh = nil

	c.queue.Reset()
	c.tracker.Reset()
	c.replay.Reset()
	c.met.SetPending(0)

	// An in-flight reconnect may have posted a fresh transport that the
	// loop will never consume.
	select {
	case res := <-c.reconnected:
		if res.tr != nil {
			res.tr.Close()
		}
	default:
	}

	for {
		select {
		case <-c.frames:
		default:
			c.log.Info("session stopped")
			return
		}
	}
}
