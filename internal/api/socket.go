package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ahamlinman/panelrelay/internal/device"
	"github.com/ahamlinman/panelrelay/internal/log"
)

const statusSocketPath = "/api/sockets/status"

var websocketUpgrader = websocket.Upgrader{
	// The relay is exactly as permissive with sockets as it is with CORS.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// socketRoute streams device status snapshots to a websocket client.
type socketRoute struct{}

func (socketRoute) Kind() string { return "socket" }

func (socketRoute) serve(h *Handler, w http.ResponseWriter, r *http.Request) {
	ctx, shutdown := context.WithCancelCause(r.Context())
	ss := &StatusSocket{
		monitor:  h.monitor,
		ctx:      ctx,
		shutdown: shutdown,
	}
	ss.ServeHTTP(w, r)
}

// StatusSocket pushes each status snapshot taken by a device.Monitor to a
// single websocket client, until either side goes away.
type StatusSocket struct {
	monitor   *device.Monitor
	socket    *websocket.Conn
	sub       *device.Subscription
	ctx       context.Context
	shutdown  context.CancelCauseFunc
	waitGroup sync.WaitGroup
}

func (ss *StatusSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Tprintf(ss, "Starting new connection")
	defer func() {
		ss.waitForCleanup()
		log.Tprintf(ss, "Connection done: %v", context.Cause(ss.ctx))
	}()

	var err error
	ss.socket, err = websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		ss.shutdown(err)
		return
	}
	defer ss.socket.Close()

	ss.waitGroup.Add(1)
	go func() {
		defer ss.waitGroup.Done()
		ss.drainClient()
	}()

	ss.sub = ss.monitor.Subscribe(ss.sendStatus)
	defer ss.sub.Cancel()

	<-ss.ctx.Done()
}

func (ss *StatusSocket) sendStatus(s device.Status) {
	if err := ss.socket.WriteJSON(mapStatusToMessage(s)); err != nil {
		ss.shutdown(err)
	}
}

func (ss *StatusSocket) drainClient() {
	// Per https://pkg.go.dev/github.com/gorilla/websocket#hdr-Control_Messages,
	// we have to drain incoming messages ourselves even if we don't care about
	// them.
	for {
		if _, _, err := ss.socket.NextReader(); err != nil {
			ss.shutdown(err)
			return
		}
	}
}

func (ss *StatusSocket) waitForCleanup() {
	if ss.sub != nil {
		ss.sub.Cancel()
		ss.sub.Wait()
	}
	ss.waitGroup.Wait()
}

// statusMsg carries the same body that GET /api/status would have returned
// for the snapshot, along with the status code and the time it was taken.
type statusMsg struct {
	OK    bool   `json:"ok"`
	Code  int    `json:"code"`
	Body  any    `json:"body,omitempty"`
	Error string `json:"error,omitempty"`
	Hint  string `json:"hint,omitempty"`
	Time  string `json:"time"`
}

func mapStatusToMessage(s device.Status) statusMsg {
	msg := statusMsg{Time: s.Time.UTC().Format(time.RFC3339)}
	if s.Err != nil {
		msg.Code = http.StatusBadGateway
		msg.Error = s.Err.Error()
		msg.Hint = statusHint
		return msg
	}

	msg.OK = true
	msg.Code = s.Response.StatusCode
	msg.Body = packageDeviceBody(s.Response.Body)
	return msg
}
