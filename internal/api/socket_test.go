package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/gorilla/websocket"

	"github.com/ahamlinman/panelrelay/internal/device"
)

func TestStatusSocket(t *testing.T) {
	fd := newFakeDevice(t, map[string]cannedResponse{
		"/api/status": {"application/json", http.StatusOK, `{"on":true}`},
	})
	client := device.NewClient(fd.URL)
	monitor := device.NewMonitor(client, 0, device.DefaultTimeout)

	srv := httptest.NewServer(NewHandler(Config{Device: client, Monitor: monitor}))
	t.Cleanup(srv.Close)

	monitor.Poll(context.Background())

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + statusSocketPath
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("unable to connect to status socket: %v", err)
	}
	defer conn.Close()

	ignoreTime := cmpopts.IgnoreMapEntries(func(k string, _ any) bool { return k == "time" })

	got := readSocketMessage(t, conn)
	want := map[string]any{
		"ok":   true,
		"code": float64(http.StatusOK),
		"body": map[string]any{"on": true},
	}
	if diff := cmp.Diff(want, got, ignoreTime); diff != "" {
		t.Errorf("first message mismatch (-want +got):\n%s", diff)
	}
	if _, err := time.Parse(time.RFC3339, got["time"].(string)); err != nil {
		t.Errorf("time is not RFC 3339: %v", err)
	}

	fd.Close()
	monitor.Poll(context.Background())

	got = readSocketMessage(t, conn)
	if got["ok"] != false || got["code"] != float64(http.StatusBadGateway) || got["hint"] != statusHint {
		t.Errorf("unexpected failure message: %v", got)
	}
	if msg, _ := got["error"].(string); msg == "" {
		t.Errorf("failure message has no error: %v", got)
	}
}

func TestMapStatusToMessage(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.FixedZone("UTC-3", -3*60*60))

	testCases := []struct {
		Description string
		Status      device.Status
		Want        statusMsg
	}{
		{
			Description: "JSON body",
			Status: device.Status{
				Response: &device.Response{Body: []byte(`{"on":false}`), StatusCode: http.StatusOK},
				Time:     at,
			},
			Want: statusMsg{OK: true, Code: 200, Body: map[string]any{"on": false}, Time: "2024-05-01T15:30:00Z"},
		},
		{
			Description: "raw body with failing status",
			Status: device.Status{
				Response: &device.Response{Body: []byte("busy"), StatusCode: http.StatusServiceUnavailable},
				Time:     at,
			},
			Want: statusMsg{OK: true, Code: 503, Body: rawBody{OK: true, Raw: "busy"}, Time: "2024-05-01T15:30:00Z"},
		},
		{
			Description: "unreachable device",
			Status: device.Status{
				Err:  errors.New("connection refused"),
				Time: at,
			},
			Want: statusMsg{Code: 502, Error: "connection refused", Hint: statusHint, Time: "2024-05-01T15:30:00Z"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Description, func(t *testing.T) {
			got := mapStatusToMessage(tc.Status)
			if diff := cmp.Diff(tc.Want, got); diff != "" {
				t.Errorf("mapStatusToMessage() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func readSocketMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("unable to read status message: %v", err)
	}
	return msg
}
