package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const notifyAPIPath = "/api/owner/v1/notify/ws"

type socketCommand struct {
	Command string `json:"command"`
	Data    string `json:"data,omitempty"`
}

type establishConnection struct {
	Drives []TargetDrive `json:"drives"`
}

type socketMessage struct {
	NotificationType string          `json:"notificationType"`
	Data             json.RawMessage `json:"data"`
}

// WSSubscriber implements Subscriber over the identity server notification socket.
type WSSubscriber struct {
	url   string
	token string
}

func NewWSSubscriber(cfg HTTPConfig) (*WSSubscriber, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse remote url: %w", err)
	}

	switch base.Scheme {
	case "https":
		base.Scheme = "wss"
	case "http":
		base.Scheme = "ws"
	}
	base.Path = base.Path + notifyAPIPath

	return &WSSubscriber{
		url:   base.String(),
		token: cfg.Token,
	}, nil
}

func (s *WSSubscriber) Subscribe(ctx context.Context, drives []TargetDrive, handler NotificationHandler) error {
	header := http.Header{}
	if s.token != "" {
		header.Add("Cookie", (&http.Cookie{Name: AuthCookieName, Value: s.token}).String())
	}

	conn, _, err := websocket.Dial(ctx, s.url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return fmt.Errorf("failed to dial notification socket: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	establish, err := json.Marshal(establishConnection{Drives: drives})
	if err != nil {
		return fmt.Errorf("failed to marshal establish request: %w", err)
	}

	if err := wsjson.Write(ctx, conn, socketCommand{
		Command: "establishConnectionRequest",
		Data:    string(establish),
	}); err != nil {
		return fmt.Errorf("failed to establish notification socket: %w", err)
	}

	for {
		var msg socketMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read notification: %w", err)
		}

		switch NotificationType(msg.NotificationType) {
		case NotificationFileAdded, NotificationFileDeleted, NotificationFileModified:
			n, err := decodeNotification(msg)
			if err != nil {
				return err
			}
			handler(ctx, n)
		case "ping":
			if err := wsjson.Write(ctx, conn, socketCommand{Command: "pong"}); err != nil {
				return fmt.Errorf("failed to answer ping: %w", err)
			}
		}
	}
}

func decodeNotification(msg socketMessage) (Notification, error) {
	n := Notification{NotificationType: NotificationType(msg.NotificationType)}

	// The payload is sent either as an object or as a JSON encoded string.
	data := msg.Data
	var encoded string
	if err := json.Unmarshal(data, &encoded); err == nil {
		data = json.RawMessage(encoded)
	}

	var payload struct {
		TargetDrive TargetDrive `json:"targetDrive"`
		Header      FileHeader  `json:"header"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return n, fmt.Errorf("failed to decode %s notification: %w", msg.NotificationType, err)
	}

	n.TargetDrive = payload.TargetDrive
	n.Header = payload.Header
	return n, nil
}
