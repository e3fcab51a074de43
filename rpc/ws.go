package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"marketd/core/events"
	"marketd/core/types"
)

const (
	wsWriteTimeout    = 10 * time.Second
	streamBufferDepth = 64
)

type streamEvent struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
	ObservedAt int64             `json:"observedAt"`
}

type payloadEvent interface {
	Event() *types.Event
}

// Stream fans marketplace events out to connected websocket clients. It
// implements events.Emitter so it can sit in the node's emitter chain.
// Slow subscribers have events dropped rather than blocking settlement.
type Stream struct {
	mu          sync.Mutex
	subscribers map[uint64]chan streamEvent
	nextID      uint64
}

func NewStream() *Stream {
	return &Stream{subscribers: make(map[uint64]chan streamEvent)}
}

func (s *Stream) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	out := streamEvent{Type: evt.EventType(), ObservedAt: time.Now().Unix()}
	if payload, ok := evt.(payloadEvent); ok {
		if inner := payload.Event(); inner != nil {
			out.Attributes = inner.Attributes
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- out:
		default:
		}
	}
}

func (s *Stream) subscribe() (<-chan streamEvent, func()) {
	ch := make(chan streamEvent, streamBufferDepth)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = ch
	s.mu.Unlock()
	cancel := func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.node == nil {
		http.Error(w, "node unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	if err := s.streamEvents(r.Context(), conn); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn) error {
	updates, cancel := s.stream.subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			if err := writeStreamEvent(ctx, conn, update); err != nil {
				return err
			}
		}
	}
}

func writeStreamEvent(ctx context.Context, conn *websocket.Conn, update streamEvent) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
