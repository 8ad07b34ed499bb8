package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/brandchat-server/internal/bus"
	"github.com/vovakirdan/brandchat-server/internal/proto"
	"github.com/vovakirdan/brandchat-server/internal/store"
)

// ConsumerKind tells the two chat endpoints apart.
type ConsumerKind int

const (
	// ConsumerUser is an ordinary brand user on the chat endpoint.
	ConsumerUser ConsumerKind = iota
	// ConsumerOperator is a staff member on the admin-chat endpoint.
	ConsumerOperator
)

// Subprotocol returns the websocket subprotocol of the endpoint.
func (k ConsumerKind) Subprotocol() string {
	if k == ConsumerOperator {
		return proto.SubprotocolAdminChat
	}
	return proto.SubprotocolChat
}

func (k ConsumerKind) String() string {
	if k == ConsumerOperator {
		return "operator"
	}
	return "user"
}

// Session is the per-connection state: identity and room membership.
// A session is either unjoined (room == nil) or joined to exactly one room,
// and its client is a member of that room's group iff joined.
type Session struct {
	Client *Client
	User   *store.User
	Kind   ConsumerKind
	// Brand is set for user sessions.
	Brand *store.Brand

	bus bus.Bus
	log *zerolog.Logger

	mu        sync.Mutex
	room      *store.Room
	closeOnce sync.Once
}

// Actor returns the identity used by the room rules.
func (s *Session) Actor() Actor {
	return Actor{UserID: s.User.ID, Operator: s.Kind == ConsumerOperator}
}

// Room returns the joined room or nil.
func (s *Session) Room() *store.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// Join moves the session from unjoined to joined(room).
func (s *Session) Join(ctx context.Context, room *store.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room != nil {
		return forbidden("already joined a room, leave it first")
	}
	if err := s.bus.Add(ctx, bus.RoomGroup(room.ID), s.Client); err != nil {
		return infra("join group", err)
	}
	s.room = room
	return nil
}

// Leave moves the session back to unjoined and returns the room it left.
func (s *Session) Leave(ctx context.Context) (*store.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room == nil {
		return nil, forbidden("not joined to any room")
	}
	return s.leaveLocked(ctx)
}

func (s *Session) leaveLocked(ctx context.Context) (*store.Room, error) {
	room := s.room
	s.room = nil
	if err := s.bus.Discard(ctx, bus.RoomGroup(room.ID), s.Client); err != nil {
		return room, infra("leave group", err)
	}
	return room, nil
}

// Close runs the disconnect cleanup exactly once: the same leave as an
// explicit leave_room, plus leaving the operators group.
func (s *Session) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.room != nil {
			if room, err := s.leaveLocked(ctx); err != nil {
				s.log.Warn().Err(err).Int64("room_id", room.ID).Msg("leave on disconnect")
			}
		}
		if s.Kind == ConsumerOperator {
			if err := s.bus.Discard(ctx, bus.OperatorsGroup, s.Client); err != nil {
				s.log.Warn().Err(err).Msg("leave operators group")
			}
		}
	})
}
