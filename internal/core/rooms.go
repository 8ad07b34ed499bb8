package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/vovakirdan/brandchat-server/internal/proto"
	"github.com/vovakirdan/brandchat-server/internal/store"
)

// JoinRoom joins the session to a room. Users must participate in it;
// operators may join any room.
func (svc *Service) JoinRoom(ctx context.Context, s *Session, roomID int64) (*proto.JoinPayload, error) {
	if s.Room() != nil {
		return nil, forbidden("already joined a room, leave it first")
	}

	var state RoomState
	if s.Kind == ConsumerUser {
		active, err := svc.subscriptionActive(ctx, s)
		if err != nil {
			return nil, err
		}
		state.SubscriptionActive = active
		if state.Participant, err = svc.store.IsParticipant(ctx, roomID, s.User.ID); err != nil {
			return nil, infra("check participant", err)
		}
	}
	if err := AuthorizeJoin(s.Actor(), state); err != nil {
		return nil, err
	}

	room, err := svc.store.GetRoomByID(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("room not found")
	}
	if err != nil {
		return nil, infra("get room", err)
	}

	if err := s.Join(ctx, room); err != nil {
		return nil, err
	}
	s.log.Debug().Int64("room_id", room.ID).Msg("joined room")
	return &proto.JoinPayload{
		RoomID:   room.ID,
		Response: fmt.Sprintf("Joined room %d successfully!", room.ID),
	}, nil
}

// LeaveRoom returns the session to unjoined.
func (svc *Service) LeaveRoom(ctx context.Context, s *Session) (*proto.JoinPayload, error) {
	room, err := s.Leave(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Int64("room_id", room.ID).Msg("left room")
	return &proto.JoinPayload{
		RoomID:   room.ID,
		Response: fmt.Sprintf("Leaved room %d successfully!", room.ID),
	}, nil
}

// Rooms lists the rooms a user participates in, or every room for operators,
// most recently active first.
func (svc *Service) Rooms(ctx context.Context, s *Session, page int) (*proto.Page, error) {
	if err := svc.requireSubscription(ctx, s); err != nil {
		return nil, err
	}

	var filter store.RoomFilter
	var viewer int64
	if s.Kind == ConsumerUser {
		userID := s.User.ID
		filter.ParticipantID = &userID
		viewer = userID
	}

	count, err := svc.store.CountRooms(ctx, filter)
	if err != nil {
		return nil, infra("count rooms", err)
	}
	offset, next, err := Paginate(count, page)
	if err != nil {
		return nil, err
	}

	summaries, err := svc.store.ListRoomSummaries(ctx, filter, PageSize, offset)
	if err != nil {
		return nil, infra("list rooms", err)
	}
	results := make([]*proto.RoomPayload, 0, len(summaries))
	for _, summary := range summaries {
		results = append(results, proto.NewRoomPayload(summary, viewer))
	}
	return &proto.Page{Count: count, Results: results, Next: next}, nil
}

// RoomMessages lists messages of the joined room, newest first.
func (svc *Service) RoomMessages(ctx context.Context, s *Session, page int) (*proto.Page, error) {
	room, err := joinedRoom(s)
	if err != nil {
		return nil, err
	}
	if err := svc.requireSubscription(ctx, s); err != nil {
		return nil, err
	}

	count, err := svc.store.CountMessages(ctx, room.ID)
	if err != nil {
		return nil, infra("count messages", err)
	}
	offset, next, err := Paginate(count, page)
	if err != nil {
		return nil, err
	}

	messages, err := svc.store.ListMessages(ctx, room.ID, PageSize, offset)
	if err != nil {
		return nil, infra("list messages", err)
	}
	return &proto.Page{Count: count, Results: proto.NewMessagePayloads(messages), Next: next}, nil
}

// ParsePage reads a page number given as a JSON number or numeric string.
// A missing page means the first one.
func ParsePage(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 1, nil
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, badRequest("page must be an integer")
		}
	}
	page, err := strconv.Atoi(text)
	if err != nil {
		return 0, badRequest("page must be an integer")
	}
	if page < 1 {
		return 0, badRequest("page must be greater than or equal to 1")
	}
	return page, nil
}

// Paginate checks page against count and returns the offset and next page.
// The first page of an empty listing is valid.
func Paginate(count, page int) (int, *int, error) {
	if page < 1 {
		return 0, nil, badRequest("page must be greater than or equal to 1")
	}
	pages := (count + PageSize - 1) / PageSize
	if pages == 0 {
		pages = 1
	}
	if page > pages {
		return 0, nil, badRequest("page contains no results")
	}

	var next *int
	if page < pages {
		n := page + 1
		next = &n
	}
	return (page - 1) * PageSize, next, nil
}
