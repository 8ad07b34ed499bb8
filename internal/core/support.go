package core

import (
	"context"

	"github.com/vovakirdan/brandchat-server/internal/proto"
)

// SupportRoom fetches or creates the caller's own support room. It does not
// touch the session's membership. created reports a fresh room.
func (svc *Service) SupportRoom(ctx context.Context, s *Session) (*proto.RoomPayload, bool, error) {
	if err := svc.requireSubscription(ctx, s); err != nil {
		return nil, false, err
	}

	room, created, err := svc.store.GetOrCreateSupportRoom(ctx, s.User.ID)
	if err != nil {
		return nil, false, infra("get support room", err)
	}
	summary, err := svc.store.GetRoomSummary(ctx, room.ID)
	if err != nil {
		return nil, false, infra("get room summary", err)
	}
	if created {
		s.log.Info().Int64("room_id", room.ID).Msg("support room created")
	}
	return proto.NewRoomPayload(summary, s.User.ID), created, nil
}
