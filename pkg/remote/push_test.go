package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWSSubscriber_Subscribe(t *testing.T) {
	established := make(chan establishConnection, 1)
	pongs := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, notifyAPIPath, r.URL.Path)

		conn, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := r.Context()

		var cmd socketCommand
		require.NoError(t, wsjson.Read(ctx, conn, &cmd))
		var req establishConnection
		require.NoError(t, json.Unmarshal([]byte(cmd.Data), &req))
		established <- req

		require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"notificationType": "ping"}))
		require.NoError(t, wsjson.Read(ctx, conn, &cmd))
		pongs <- cmd.Command

		payload, _ := json.Marshal(map[string]any{
			"targetDrive": testDrive,
			"header":      FileHeader{FileID: "f1", FileState: FileStateActive},
		})
		require.NoError(t, wsjson.Write(ctx, conn, map[string]any{
			"notificationType": "fileModified",
			"data":             string(payload),
		}))

		// Keep the socket open until the client goes away.
		conn.Read(ctx)
	}))
	defer srv.Close()

	sub, err := NewWSSubscriber(HTTPConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan Notification, 1)
	done := make(chan error, 1)
	go func() {
		done <- sub.Subscribe(ctx, []TargetDrive{testDrive}, func(_ context.Context, n Notification) {
			received <- n
			cancel()
		})
	}()

	req := <-established
	assert.Equal(t, []TargetDrive{testDrive}, req.Drives)
	assert.Equal(t, "pong", <-pongs)

	n := <-received
	assert.Equal(t, NotificationFileModified, n.NotificationType)
	assert.Equal(t, "f1", n.Header.FileID)
	assert.Equal(t, testDrive, n.TargetDrive)

	assert.ErrorIs(t, <-done, context.Canceled)
}
