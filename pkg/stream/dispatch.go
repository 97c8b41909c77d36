package stream

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"tidal/internal/ws"
)

// dispatcher fans inbound frames out to the registered handlers. The
// transport read loop only enqueues, so a slow handler can never stall
// frame consumption; execution runs on one goroutine in enqueue order,
// which preserves arrival order across frames and registration order
// within one frame.
type dispatcher struct {
	plan   HandlerPlan
	logger zerolog.Logger
	buf    *fifo[dispatchItem]
}

type dispatchItem struct {
	frame ws.Frame
	conn  *Conn
}

func newDispatcher(plan HandlerPlan, logger zerolog.Logger) *dispatcher {
	return &dispatcher{
		plan:   plan,
		logger: logger,
		buf:    newFIFO[dispatchItem](),
	}
}

// enqueue schedules one frame for dispatch without blocking.
func (d *dispatcher) enqueue(frame ws.Frame, conn *Conn) {
	d.buf.push(dispatchItem{frame: frame, conn: conn})
}

// run consumes and dispatches until the context ends.
func (d *dispatcher) run(ctx context.Context) {
	for {
		item, err := d.buf.pop(ctx)
		if err != nil {
			return
		}
		d.dispatch(item)
	}
}

func (d *dispatcher) dispatch(item dispatchItem) {
	switch item.frame.Kind {
	case ws.FrameText:
		for _, h := range d.plan.Text {
			h(string(item.frame.Data), item.conn)
		}
	case ws.FrameBinary:
		for _, h := range d.plan.Bytes {
			h(item.frame.Data, item.conn)
		}
	}

	if len(d.plan.JSON) == 0 {
		return
	}
	var v any
	if err := sonic.Unmarshal(item.frame.Data, &v); err != nil {
		// Decode failures never reach handlers and never end the cycle.
		d.logger.Warn().Err(err).Msg("inbound frame is not valid json")
		return
	}
	for _, h := range d.plan.JSON {
		h(v, item.conn)
	}
}
