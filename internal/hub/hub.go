package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"aiseg-dashboard/internal/cache"
	"aiseg-dashboard/internal/logger"
	"aiseg-dashboard/internal/models"

	"github.com/gorilla/websocket"
)

// Frame is the push-channel envelope. TS is unix milliseconds of the fetch
// (replayed snapshots keep their original fetch time).
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
	TS   int64  `json:"ts"`
}

// Push frame types.
const (
	FrameRealtime = "realtime"
	FrameTotals   = "totals"
	FrameCircuits = "circuits"
	FrameDevices  = "devices"
	FrameError    = "error"
)

// Timing and size limits for subscriber connections.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12 // 4 KB

	sendBuffer = 16
)

// Source is the forced-refresh surface the pollers drive.
type Source interface {
	RefreshRealtime(ctx context.Context) (models.Realtime, error)
	RefreshTotals(ctx context.Context) (models.TotalsReport, error)
	RefreshDevices(ctx context.Context) ([]models.DeviceStatus, error)
	RefreshCircuits(ctx context.Context) ([]models.Circuit, error)
}

// Intervals are the poll periods per pushed category.
type Intervals struct {
	Realtime time.Duration
	Totals   time.Duration
	Devices  time.Duration
}

// Hub multiplexes all browser subscribers over one upstream connection.
// The three poll loops exist only while at least one subscriber is
// connected; the last disconnect stops them and the next connect restarts
// them. Every new subscriber is replayed the current cache snapshots before
// the first tick can fire, so it never starts blank.
type Hub struct {
	ctx   context.Context
	src   Source
	store *cache.Store
	iv    Intervals
	log   *logger.Logger

	mu          sync.Mutex
	subs        map[*subscriber]struct{}
	stopPollers context.CancelFunc
}

type subscriber struct {
	conn *websocket.Conn
	send chan Frame
}

// inbound is the only client-to-server message shape.
type inbound struct {
	Action string `json:"action"`
}

func New(ctx context.Context, src Source, store *cache.Store, iv Intervals, log *logger.Logger) *Hub {
	return &Hub{
		ctx:   ctx,
		src:   src,
		store: store,
		iv:    iv,
		log:   log,
		subs:  map[*subscriber]struct{}{},
	}
}

// Handle owns conn for its lifetime: registers it, pumps outbound frames,
// reads inbound actions, and unregisters on any failure. Blocks until the
// subscriber goes away.
func (h *Hub) Handle(conn *websocket.Conn) {
	sub := &subscriber{conn: conn, send: make(chan Frame, sendBuffer)}
	h.register(sub)
	defer h.unregister(sub)

	go h.writePump(sub)
	h.readPump(sub)
}

func (h *Hub) register(sub *subscriber) {
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	if len(h.subs) == 1 {
		h.startPollers()
	}
	h.mu.Unlock()

	// Snapshot replay: everything already cached goes out immediately,
	// before any interval fires.
	for _, r := range []struct {
		cat   cache.Category
		frame string
	}{
		{cache.CategoryRealtime, FrameRealtime},
		{cache.CategoryTotals, FrameTotals},
		{cache.CategoryCircuits, FrameCircuits},
		{cache.CategoryDevices, FrameDevices},
	} {
		if snap, ok := h.store.Get(r.cat); ok {
			sub.send <- Frame{Type: r.frame, Data: snap.Payload, TS: snap.FetchedAt.UnixMilli()}
		}
	}
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.send)
		if len(h.subs) == 0 && h.stopPollers != nil {
			h.stopPollers()
			h.stopPollers = nil
		}
	}
	h.mu.Unlock()
	_ = sub.conn.Close()
}

// SubscriberCount reports currently connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Polling reports whether the interval loops are running.
func (h *Hub) Polling() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopPollers != nil
}

// Broadcast sends one frame to every connected subscriber. A subscriber
// whose buffer is full misses the frame rather than stalling the rest.
func (h *Hub) Broadcast(frameType string, data any) {
	frame := Frame{Type: frameType, Data: data, TS: time.Now().UnixMilli()}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.send <- frame:
		default:
			h.log.Infow("subscriber lagging, frame dropped", "type", frameType)
		}
	}
}

// startPollers launches the three interval loops. Caller holds h.mu.
func (h *Hub) startPollers() {
	pctx, cancel := context.WithCancel(h.ctx)
	h.stopPollers = cancel

	go h.poll(pctx, h.iv.Realtime, FrameRealtime, func(ctx context.Context) (any, error) {
		return h.src.RefreshRealtime(ctx)
	})
	go h.poll(pctx, h.iv.Totals, FrameTotals, func(ctx context.Context) (any, error) {
		return h.src.RefreshTotals(ctx)
	})
	go h.poll(pctx, h.iv.Devices, FrameDevices, func(ctx context.Context) (any, error) {
		return h.src.RefreshDevices(ctx)
	})
}

// poll broadcasts one category on its interval. A failed fetch becomes an
// error frame; it never tears the session down.
func (h *Hub) poll(ctx context.Context, every time.Duration, frameType string, fetch func(context.Context) (any, error)) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			data, err := fetch(ctx)
			if err != nil {
				h.Broadcast(FrameError, map[string]any{"category": frameType, "message": err.Error()})
				continue
			}
			h.Broadcast(frameType, data)
		}
	}
}

// loadCircuits services the on-demand circuit refresh a client may request
// over the push channel.
func (h *Hub) loadCircuits() {
	ctx, cancel := context.WithTimeout(h.ctx, time.Minute)
	defer cancel()
	circuits, err := h.src.RefreshCircuits(ctx)
	if err != nil {
		h.Broadcast(FrameError, map[string]any{"category": FrameCircuits, "message": err.Error()})
		return
	}
	h.Broadcast(FrameCircuits, circuits)
}

func (h *Hub) readPump(sub *subscriber) {
	sub.conn.SetReadLimit(maxMsgSize)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := sub.conn.ReadMessage()
		if err != nil {
			return
		}
		var in inbound
		if err := json.Unmarshal(msg, &in); err != nil {
			continue
		}
		if in.Action == "loadCircuits" {
			go h.loadCircuits()
		}
	}
}

func (h *Hub) writePump(sub *subscriber) {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = sub.conn.Close() // unblocks the read pump
	}()

	for {
		select {
		case frame, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := sub.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ping.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
