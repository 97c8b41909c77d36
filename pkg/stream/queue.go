package stream

import (
	"context"
	"iter"
)

// FrameKind classifies a queued frame.
type FrameKind int

const (
	// KindText is a raw text frame.
	KindText FrameKind = iota
	// KindBytes is a raw binary frame.
	KindBytes
	// KindJSON is a decoded JSON frame.
	KindJSON
)

// Frame is one inbound message buffered by a Queue.
type Frame struct {
	Kind FrameKind
	// Text is set for KindText frames.
	Text string
	// Bytes is set for KindBytes frames.
	Bytes []byte
	// Value is the decoded payload for KindJSON frames.
	Value any
	// Conn is the connection the frame arrived on.
	Conn *Conn
}

// Queue bridges push-style dispatch into pull-style iteration: its
// handler methods append every received frame to an unbounded FIFO and
// the consumer side yields them in arrival order indefinitely. Register
// whichever handler kinds the caller wants buffered.
type Queue struct {
	buf *fifo[Frame]
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{buf: newFIFO[Frame]()}
}

// OnText is a TextHandler appending text frames to the queue.
func (q *Queue) OnText(text string, c *Conn) {
	q.buf.push(Frame{Kind: KindText, Text: text, Conn: c})
}

// OnBytes is a BytesHandler appending binary frames to the queue.
func (q *Queue) OnBytes(data []byte, c *Conn) {
	q.buf.push(Frame{Kind: KindBytes, Bytes: data, Conn: c})
}

// OnJSON is a JSONHandler appending decoded frames to the queue.
func (q *Queue) OnJSON(v any, c *Conn) {
	q.buf.push(Frame{Kind: KindJSON, Value: v, Conn: c})
}

// Next blocks until a frame is buffered and returns it. It fails with
// the context error, or ErrQueueClosed once the queue is closed and
// drained.
func (q *Queue) Next(ctx context.Context) (Frame, error) {
	return q.buf.pop(ctx)
}

// All yields buffered frames in arrival order until the context ends
// or the queue closes. The sequence is consumed as it is iterated; it
// cannot be replayed.
func (q *Queue) All(ctx context.Context) iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		for {
			f, err := q.buf.pop(ctx)
			if err != nil {
				return
			}
			if !yield(f) {
				return
			}
		}
	}
}

// Len returns the number of buffered frames.
func (q *Queue) Len() int {
	return q.buf.len()
}

// Close stops the queue from accepting frames. Buffered frames remain
// consumable.
func (q *Queue) Close() {
	q.buf.close()
}
