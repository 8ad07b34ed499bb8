package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/brandchat-server/internal/bus"
	"github.com/vovakirdan/brandchat-server/internal/proto"
	"github.com/vovakirdan/brandchat-server/internal/store"
)

// PageSize is the fixed size of every paginated listing.
const PageSize = 100

// DefaultMaxTextLength bounds message text when no limit is configured.
const DefaultMaxTextLength = 4000

// Store is the persistence the chat actions need.
type Store interface {
	store.BrandStore
	store.RoomStore
	store.MessageStore
}

// FileRemover deletes stored attachment files.
type FileRemover interface {
	Remove(ctx context.Context, files ...string) error
}

// Options tune the chat service.
type Options struct {
	MaxTextLength int
	Files         FileRemover
	Now           func() time.Time
}

// Service executes chat actions on behalf of sessions and notifies other
// connections through the bus.
type Service struct {
	store         Store
	bus           bus.Bus
	files         FileRemover
	maxTextLength int
	now           func() time.Time
	log           *zerolog.Logger
}

// NewService creates the chat service.
func NewService(st Store, b bus.Bus, opts Options, logger *zerolog.Logger) *Service {
	svc := &Service{
		store:         st,
		bus:           b,
		files:         opts.Files,
		maxTextLength: opts.MaxTextLength,
		now:           opts.Now,
		log:           orNop(logger),
	}
	if svc.maxTextLength <= 0 {
		svc.maxTextLength = DefaultMaxTextLength
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// joinedRoom returns the session's room or a forbidden error.
func joinedRoom(s *Session) (*store.Room, error) {
	room := s.Room()
	if room == nil {
		return nil, forbidden("join a room first")
	}
	return room, nil
}

// requireSubscription re-checks a user's subscription. Operators pass.
func (svc *Service) requireSubscription(ctx context.Context, s *Session) error {
	if s.Kind == ConsumerOperator {
		return nil
	}
	active, err := svc.subscriptionActive(ctx, s)
	if err != nil {
		return err
	}
	if !active {
		return forbidden("subscription is not active")
	}
	return nil
}

func (svc *Service) subscriptionActive(ctx context.Context, s *Session) (bool, error) {
	if s.Brand == nil {
		return false, nil
	}
	active, err := svc.store.IsSubscriptionActive(ctx, s.Brand.ID, svc.now())
	if err != nil {
		return false, infra("check subscription", err)
	}
	return active, nil
}

// writeState collects the facts AuthorizeCreate and AuthorizeModify need.
func (svc *Service) writeState(ctx context.Context, s *Session, room *store.Room, creating bool) (RoomState, error) {
	state := RoomState{Kind: room.Kind}
	if s.Kind == ConsumerOperator {
		return state, nil
	}

	active, err := svc.subscriptionActive(ctx, s)
	if err != nil {
		return state, err
	}
	state.SubscriptionActive = active
	if !active || room.Kind == store.RoomKindSupport {
		return state, nil
	}

	if state.Blocked, err = svc.blocked(ctx, s, room.ID); err != nil {
		return state, err
	}
	if !creating || room.Kind != store.RoomKindInstant {
		return state, nil
	}

	initiator, err := svc.store.CoopInitiator(ctx, room.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// no coop record: nobody is the initiator
	case err != nil:
		return state, infra("get coop initiator", err)
	default:
		state.Initiator = initiator
	}
	if state.Authored, err = svc.store.CountUserMessages(ctx, room.ID, s.User.ID); err != nil {
		return state, infra("count user messages", err)
	}
	return state, nil
}

// blocked reports whether the session's brand and another participant's
// brand have blacklisted each other. A room with no other participant, or
// one whose other participant owns no brand, counts as blocked.
func (svc *Service) blocked(ctx context.Context, s *Session, roomID int64) (bool, error) {
	participants, err := svc.store.ListParticipants(ctx, roomID)
	if err != nil {
		return false, infra("list participants", err)
	}
	others := 0
	for _, userID := range participants {
		if userID == s.User.ID {
			continue
		}
		others++
		other, err := svc.store.GetBrandByUserID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return true, nil
		}
		if err != nil {
			return false, infra("get brand", err)
		}
		blocked, err := svc.store.IsBlocked(ctx, s.Brand.ID, other.ID)
		if err != nil {
			return false, infra("check blacklist", err)
		}
		if blocked {
			return true, nil
		}
	}
	return others == 0, nil
}

// notify publishes a frame to the room group, plus the operators group for
// support rooms. The originating connection is excluded; it gets the reply.
func (svc *Service) notify(ctx context.Context, s *Session, room *store.Room, action string, status int, data any) error {
	groups := []string{bus.RoomGroup(room.ID)}
	if room.Kind == store.RoomKindSupport {
		groups = append(groups, bus.OperatorsGroup)
	}

	payload, err := json.Marshal(proto.Notification(action, status, data))
	if err != nil {
		return infra("encode notification", err)
	}
	if err := svc.bus.Publish(ctx, bus.Publication{
		Groups:  groups,
		Exclude: s.Client.ID(),
		Payload: payload,
	}); err != nil {
		return infra("publish", err)
	}
	return nil
}
