// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rosstspeech/buffered/internal/constants"
	"github.com/rosstspeech/buffered/internal/protocol"
)

var ErrNotConnected = errors.New("transport not connected")

// Client is a websocket connection to the realtime transcription
// service. One Client serves exactly one connection epoch: the session
// controller creates a fresh Client for every reconnect. Parsed server
// messages arrive on Messages and socket lifecycle changes on States.
type Client struct {
	url string
	log *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	audioSent uint64

	msgs   chan *protocol.ServerMessage
	states chan SocketState
	closed atomic.Bool
}

func NewClient(url string) *Client {
	return &Client{
		url:    url,
		log:    slog.With("component", "transport"),
		msgs:   make(chan *protocol.ServerMessage, constants.MessageChanCapacity),
		states: make(chan SocketState, constants.StateChanCapacity),
	}
}

// Start dials the service, sends the start configuration and waits for
// the RecognitionStarted confirmation before spawning the read loop.
func (c *Client) Start(ctx context.Context, token string, cfg protocol.StartConfig) error {
	c.pushState(StateConnecting)

	dialer := websocket.Dialer{
		HandshakeTimeout: constants.HandshakeTimeout,
	}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := dialer.DialContext(ctx, c.url, header)
	if err != nil {
		c.pushState(StateError)
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.sendJSON(protocol.NewStartRecognition(cfg)); err != nil {
		c.Close()
		return fmt.Errorf("sending start configuration: %w", err)
	}

	for i := 0; i < constants.MaxHandshakeMessages; i++ {
		msg, err := c.receiveMessage(conn, constants.MsgReceiveTimeout)
		if err != nil {
			c.Close()
			return fmt.Errorf("recognition handshake: %w", err)
		}

		switch msg.Message {
		case protocol.MsgRecognitionStarted:
			c.log.Debug("recognition started", "recognition_id", msg.ID)
			c.pushState(StateConnected)
			go c.readLoop(conn)
			return nil

		case protocol.MsgError:
			c.Close()
			return fmt.Errorf("recognition refused: %s: %s", msg.Type, msg.Reason)

		default:
			// Informational, keep waiting.
			continue
		}
	}

	c.Close()
	return fmt.Errorf("no RecognitionStarted within %d messages", constants.MaxHandshakeMessages)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer close(c.msgs)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() ||
				websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.pushState(StateClosed)
			} else {
				c.log.Warn("websocket read failed", "error", err)
				c.pushState(StateError)
			}
			return
		}

		msg, err := protocol.Parse(data)
		if err != nil {
			// Unexpected shapes must not kill the pipeline.
			c.log.Debug("ignoring malformed server message", "error", err)
			continue
		}

		select {
		case c.msgs <- msg:
		default:
			c.log.Warn("message channel full, dropping", "message", msg.Message)
		}
	}
}

// SendAudio transmits one chunk as a binary websocket frame. The
// service numbers audio frames in arrival order, so the client keeps
// its own count for the final EndOfStream.
func (c *Client) SendAudio(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.closed.Load() {
		return ErrNotConnected
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return fmt.Errorf("sending audio: %w", err)
	}
	c.audioSent++
	return nil
}

// StopRecognition tells the service no further audio will arrive.
func (c *Client) StopRecognition() error {
	c.mu.Lock()
	last := c.audioSent
	c.mu.Unlock()

	return c.sendJSON(protocol.EndOfStream{
		Message:   protocol.MsgEndOfStream,
		LastSeqNo: last,
	})
}

func (c *Client) Messages() <-chan *protocol.ServerMessage {
	return c.msgs
}

func (c *Client) States() <-chan SocketState {
	return c.states
}

// Close tears the connection down. Idempotent.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) sendJSON(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) receiveMessage(conn *websocket.Conn, timeout time.Duration) (*protocol.ServerMessage, error) {
	if timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(timeout))
		defer conn.SetReadDeadline(time.Time{})
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return protocol.Parse(data)
}

func (c *Client) pushState(s SocketState) {
	select {
	case c.states <- s:
	default:
	}
}
