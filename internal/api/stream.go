package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/infrastructure/config"
	"github.com/nerrad567/vdc-core/internal/vdc"
)

// Frame operations on the event stream.
const (
	opEvent = "event"
	opWatch = "watch"
	opPing  = "ping"
	opPong  = "pong"
	opAck   = "ack"
	opError = "error"
)

// streamFrame is the single JSON shape used in both directions.
type streamFrame struct {
	Op     string       `json:"op"`
	ID     string       `json:"id,omitempty"`
	Event  *vdc.Event   `json:"event,omitempty"`
	Filter *watchFilter `json:"filter,omitempty"`
	Error  string       `json:"error,omitempty"`
}

var streamKinds = map[string]bool{
	vdc.EventSession:            true,
	vdc.EventAnnounce:           true,
	vdc.EventVanish:             true,
	vdc.EventRemove:             true,
	vdc.EventPush:               true,
	vdc.EventValue:              true,
	vdc.EventNotification:       true,
	vdc.EventNotificationFailed: true,
}

// normalize checks kinds and canonicalises the dSUIDs of f.
func (f watchFilter) normalize() (watchFilter, error) {
	out := watchFilter{Kinds: f.Kinds}
	for _, k := range f.Kinds {
		if !streamKinds[k] {
			return watchFilter{}, fmt.Errorf("unknown event kind %q", k)
		}
	}
	for _, s := range f.DSUIDs {
		id, err := dsuid.Parse(s)
		if err != nil {
			return watchFilter{}, fmt.Errorf("invalid dSUID %q", s)
		}
		out.DSUIDs = append(out.DSUIDs, id.String())
	}
	return out, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// streamConn pumps frames between one websocket and the hub.
type streamConn struct {
	hub  *Hub
	conn *websocket.Conn
	w    *watcher
	cfg  config.WebSocketConfig
}

// handleEventStream upgrades to a websocket that carries host events.
//
// Query parameters preset the filter:
//   - kinds: comma separated event kinds
//   - dsuid: comma separated dSUIDs
//
// Without either the client receives every event. A "watch" frame
// replaces the filter later on.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := watchFilter{Kinds: splitList(q.Get("kinds")), DSUIDs: splitList(q.Get("dsuid"))}.normalize()
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("event stream upgrade failed", "error", err)
		return
	}
	sc := &streamConn{hub: s.hub, conn: conn, w: newWatcher(filter), cfg: withStreamDefaults(s.cfg.WebSocket)}
	s.hub.attach(sc.w)
	go sc.writeLoop()
	go sc.readLoop()
}

func withStreamDefaults(c config.WebSocketConfig) config.WebSocketConfig {
	if c.PingInterval <= 0 {
		c.PingInterval = 30
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 10
	}
	return c
}

func (c *streamConn) pingEvery() time.Duration {
	return time.Duration(c.cfg.PingInterval) * time.Second
}

func (c *streamConn) pongWait() time.Duration {
	return time.Duration(c.cfg.PongTimeout) * time.Second
}

func (c *streamConn) readLoop() {
	defer func() {
		c.hub.detach(c.w)
		c.conn.Close()
	}()
	if c.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(c.cfg.MaxMessageSize))
	}
	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pingEvery() + c.pongWait()))
	}
	_ = extend("") //nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetPongHandler(extend)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("event stream read failed", "error", err)
			}
			return
		}
		_ = extend("") //nolint:errcheck // see above
		c.hub.send(c.w, c.reply(data))
	}
}

// reply handles one client frame and returns the encoded answer.
func (c *streamConn) reply(data []byte) []byte {
	var in streamFrame
	out := streamFrame{Op: opError}
	if err := json.Unmarshal(data, &in); err != nil {
		out.Error = "invalid JSON frame"
		return mustFrame(out)
	}
	out.ID = in.ID

	switch in.Op {
	case opPing:
		out.Op = opPong
	case opWatch:
		var f watchFilter
		if in.Filter != nil {
			f = *in.Filter
		}
		norm, err := f.normalize()
		if err != nil {
			out.Error = err.Error()
			break
		}
		c.w.setFilter(norm)
		out.Op, out.Filter = opAck, &norm
	default:
		out.Error = "unknown op " + in.Op
	}
	return mustFrame(out)
}

func mustFrame(f streamFrame) []byte {
	b, err := json.Marshal(f)
	if err != nil {
		return []byte(`{"op":"error","error":"encoding failed"}`)
	}
	return b
}

func (c *streamConn) writeLoop() {
	ticker := time.NewTicker(c.pingEvery())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.pongWait())) //nolint:errcheck // write reports it
		return c.conn.WriteMessage(kind, data)
	}
	for {
		select {
		case frame, ok := <-c.w.out:
			if !ok {
				_ = write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if write(websocket.TextMessage, frame) != nil {
				return
			}
		case <-ticker.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
