package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"coin-chase/internal/protocol"
)

var (
	ErrNotConnected     = errors.New("not connected")
	ErrNotLoggedIn      = errors.New("not logged in")
	ErrAlreadyConnected = errors.New("already connected")
)

// ConnectionError is a transport or handshake failure. Op names the step
// that failed: dial, read, write or login.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Conn is a message-framed connection. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket. A nil Dialer uses
// websocket.DefaultDialer.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func (d WebsocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, rawURL, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, err
	}
	return conn, nil
}

// endpoint adds the token and codec query parameters to base.
func endpoint(base, token string, codec protocol.Codec) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	q := u.Query()
	q.Del("token")
	if token != "" {
		q.Set("token", token)
	}
	if codec != nil {
		q.Set("codec", codec.Name())
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
