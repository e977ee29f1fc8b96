// Package realtime pushes notification payloads to connected user sessions.
// Delivery is best-effort and at-most-once: a recipient without a live
// session relies on the persisted inbox record and email instead.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// BroadcastRecipient addresses every connected session regardless of user.
const BroadcastRecipient = "*"

// Broadcaster delivers a payload to the sessions of a single recipient, or to
// everyone when the recipient is BroadcastRecipient.
type Broadcaster interface {
	Push(ctx context.Context, recipientID string, payload any) error
}

type envelope struct {
	RecipientID string          `json:"recipient_id"`
	Payload     json.RawMessage `json:"payload"`
}

// Hub tracks websocket sessions per user and distributes pushes across
// instances over a Redis pub/sub channel. With no Redis client the hub
// delivers to local sessions only.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*session]struct{}

	redis   *redis.Client
	channel string
	logger  *zap.Logger
}

type session struct {
	userID string
	conn   *websocket.Conn
	write  sync.Mutex
}

// NewHub constructs a hub. The redis client may be nil.
func NewHub(client *redis.Client, channel string, logger *zap.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]map[*session]struct{}),
		redis:    client,
		channel:  channel,
		logger:   logger,
	}
}

// Run subscribes to the distribution channel and delivers incoming envelopes
// to local sessions until the context is cancelled. It is a no-op without a
// Redis client.
func (h *Hub) Run(ctx context.Context) {
	if h.redis == nil {
		return
	}
	pubsub := h.redis.Subscribe(ctx, h.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Warn("malformed realtime envelope", zap.Error(err))
				continue
			}
			h.deliverLocal(env.RecipientID, env.Payload)
		}
	}
}

// Register attaches a connected session for the user and blocks reading the
// connection until the peer goes away. Teardown happens on return.
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	s := &session{userID: userID, conn: conn}

	h.mu.Lock()
	if h.sessions[userID] == nil {
		h.sessions[userID] = make(map[*session]struct{})
	}
	h.sessions[userID][s] = struct{}{}
	h.mu.Unlock()

	defer h.unregister(s)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if peers, ok := h.sessions[s.userID]; ok {
		delete(peers, s)
		if len(peers) == 0 {
			delete(h.sessions, s.userID)
		}
	}
}

// Push publishes the payload for the recipient. With Redis configured the
// envelope goes over the channel so every instance, including this one, can
// deliver to its local sessions.
func (h *Hub) Push(ctx context.Context, recipientID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if h.redis == nil {
		h.deliverLocal(recipientID, raw)
		return nil
	}
	env, err := json.Marshal(envelope{RecipientID: recipientID, Payload: raw})
	if err != nil {
		return err
	}
	return h.redis.Publish(ctx, h.channel, env).Err()
}

func (h *Hub) deliverLocal(recipientID string, payload []byte) {
	h.mu.RLock()
	var targets []*session
	if recipientID == BroadcastRecipient {
		for _, peers := range h.sessions {
			for s := range peers {
				targets = append(targets, s)
			}
		}
	} else {
		for s := range h.sessions[recipientID] {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.write.Lock()
		err := s.conn.WriteMessage(websocket.TextMessage, payload)
		s.write.Unlock()
		if err != nil {
			h.logger.Debug("dropping dead realtime session",
				zap.String("user_id", s.userID), zap.Error(err))
			h.unregister(s)
		}
	}
}
