package net

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"coin-chase/internal/protocol"
	"coin-chase/internal/store"
	"coin-chase/logging"
	"coin-chase/logging/network"
)

func (s *server) handleWebsocket(w nethttp.ResponseWriter, r *nethttp.Request) {
	codec, err := protocol.CodecByName(r.URL.Query().Get("codec"))
	if err != nil {
		httpError(w, err.Error(), nethttp.StatusBadRequest)
		return
	}

	returning := false
	var identity store.Identity
	token := r.URL.Query().Get("token")
	if token != "" {
		if id, err := s.tokens.Verify(token); err == nil {
			identity, returning = id, true
		} else {
			s.logger.Printf("rejecting token from %s: %v", r.RemoteAddr, err)
		}
	}
	if !returning {
		identity, token, err = s.tokens.Mint()
		if err != nil {
			httpError(w, "failed to mint identity", nethttp.StatusInternalServerError)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("upgrade failed for %s: %v", identity, err)
		return
	}

	ctx := context.Background()
	sub := s.hub.Attach(ctx, identity, conn, codec, returning)
	hello := protocol.ServerMessage{
		Ver:        protocol.Version,
		Type:       protocol.TypeIdentityToken,
		Identity:   identity,
		Token:      token,
		ServerTime: time.Now().UnixMilli(),
	}
	if err := s.hub.send(sub, hello); err != nil {
		s.hub.Detach(ctx, sub, "write failed")
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			reason := "closed"
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = err.Error()
			}
			s.hub.Detach(ctx, sub, reason)
			return
		}

		var msg protocol.ClientMessage
		if err := codec.Unmarshal(payload, &msg); err != nil {
			s.logger.Printf("discarding malformed message from %s: %v", identity, err)
			network.MessageRejected(ctx, s.pub, logging.PlayerRef(string(identity)), network.MessageRejectedPayload{Reason: "malformed"})
			continue
		}

		var writeErr error
		switch msg.Type {
		case protocol.TypeSubscribe:
			writeErr = s.subscribe(sub, msg)
		case protocol.TypeCall:
			writeErr = s.call(ctx, sub, msg)
		case protocol.TypeHeartbeat:
			now := time.Now()
			rtt := s.hub.Heartbeat(sub, now, msg.SentAt)
			writeErr = s.hub.send(sub, protocol.ServerMessage{
				Ver:        protocol.Version,
				Type:       protocol.TypeHeartbeat,
				ServerTime: now.UnixMilli(),
				ClientTime: msg.SentAt,
				RTTMillis:  rtt.Milliseconds(),
			})
		default:
			s.logger.Printf("unknown message type %q from %s", msg.Type, identity)
			network.MessageRejected(ctx, s.pub, logging.PlayerRef(string(identity)), network.MessageRejectedPayload{Reason: "unknown type " + msg.Type})
			writeErr = s.hub.send(sub, protocol.ServerMessage{Ver: protocol.Version, Type: protocol.TypeError, Seq: msg.Seq, Error: "unknown message type"})
		}
		if writeErr != nil {
			s.hub.Detach(ctx, sub, "write failed")
			return
		}
	}
}

func (s *server) subscribe(sub *subscriber, msg protocol.ClientMessage) error {
	tables := msg.Tables
	if len(tables) == 0 {
		tables = store.PublicTables
	}
	for _, t := range tables {
		if !isPublicTable(t) {
			return s.hub.send(sub, protocol.ServerMessage{Ver: protocol.Version, Type: protocol.TypeError, Seq: msg.Seq, Error: "unknown table " + t})
		}
	}
	return s.hub.SubscribeTables(sub, tables, msg.Seq)
}

// call runs a reducer. Successful calls are answered by the broadcast of
// their commit; failures are answered to the caller only.
func (s *server) call(ctx context.Context, sub *subscriber, msg protocol.ClientMessage) error {
	args := store.Args{}
	if msg.Args != nil {
		args = *msg.Args
	}
	var err error
	if !store.Callable(msg.Reducer) {
		err = &store.ReducerError{Reducer: msg.Reducer, Err: store.ErrUnknownReducer}
	} else {
		_, err = s.hub.store.Call(store.WithRequestID(ctx, msg.Seq), sub.identity, msg.Reducer, args)
	}
	if err == nil {
		return nil
	}
	return s.hub.send(sub, protocol.ServerMessage{
		Ver:  protocol.Version,
		Type: protocol.TypeTransactionUpdate,
		Seq:  msg.Seq,
		Update: &protocol.TransactionUpdate{
			Status:  protocol.StatusFailed,
			Reducer: msg.Reducer,
			Caller:  sub.identity,
			Error:   store.ErrorCode(err),
		},
	})
}

func isPublicTable(name string) bool {
	for _, t := range store.PublicTables {
		if t == name {
			return true
		}
	}
	return false
}
