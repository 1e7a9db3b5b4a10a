package coordinator

import (
	"context"
	"log/slog"
	"sync"
)

// Bus is an in-process request/response channel. Every request gets a
// fresh correlation id and its caller receives exactly one response
// carrying that id.
type Bus struct {
	requests chan Message
	mu       sync.Mutex
	nextID   int
	pending  map[int]chan Message
	logger   *slog.Logger
}

// NewBus creates a bus with an unbuffered request queue.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		requests: make(chan Message),
		pending:  make(map[int]chan Message),
		logger:   logger.With("component", "bus"),
	}
}

// Requests is the stream of incoming requests for the serving side.
func (b *Bus) Requests() <-chan Message {
	return b.requests
}

// Request sends msg and blocks until its response arrives or ctx ends.
// The ID of msg is overwritten.
func (b *Bus) Request(ctx context.Context, msg Message) (Message, error) {
	reply := make(chan Message, 1)

	b.mu.Lock()
	b.nextID++
	msg.ID = b.nextID
	msg.Type = TypeRequest
	b.pending[msg.ID] = reply
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, msg.ID)
		b.mu.Unlock()
	}()

	b.logger.Debug("send", "msg", msg.String())

	select {
	case b.requests <- msg:
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Respond delivers resp to the waiting requester. Responses whose id is
// unknown, or already answered, are dropped and Respond reports false.
func (b *Bus) Respond(resp Message) bool {
	resp.Type = TypeResponse

	b.mu.Lock()
	reply, ok := b.pending[resp.ID]
	if ok {
		delete(b.pending, resp.ID)
	}
	b.mu.Unlock()

	if !ok {
		b.logger.Debug("dropped response for unknown id", "msg", resp.String())
		return false
	}
	reply <- resp
	return true
}
