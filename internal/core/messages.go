package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vovakirdan/brandchat-server/internal/proto"
	"github.com/vovakirdan/brandchat-server/internal/store"
)

func (svc *Service) checkText(text string, allowEmpty bool) error {
	if strings.TrimSpace(text) == "" && !allowEmpty {
		return badRequest("text must not be empty")
	}
	if utf8.RuneCountInString(text) > svc.maxTextLength {
		return badRequest(fmt.Sprintf("text must be at most %d characters", svc.maxTextLength))
	}
	return nil
}

// CreateMessage posts a message with optional attachments into the joined
// room and notifies the room (and operators for support rooms).
func (svc *Service) CreateMessage(ctx context.Context, s *Session, text string, attachmentIDs []int64) (*proto.MessagePayload, error) {
	room, err := joinedRoom(s)
	if err != nil {
		return nil, err
	}
	if err := svc.checkText(text, len(attachmentIDs) > 0); err != nil {
		return nil, err
	}

	state, err := svc.writeState(ctx, s, room, true)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeCreate(s.Actor(), state); err != nil {
		return nil, err
	}

	msg := &store.Message{RoomID: room.ID, UserID: s.User.ID, Text: text}
	if err := svc.store.CreateMessage(ctx, msg, attachmentIDs); err != nil {
		if errors.Is(err, store.ErrAttachmentUnavailable) {
			return nil, badRequest("attachment does not exist or is already used")
		}
		return nil, infra("create message", err)
	}

	payload := proto.NewMessagePayload(msg)
	if err := svc.notify(ctx, s, room, proto.ActionCreateMessage, proto.StatusCreated, payload); err != nil {
		return nil, err
	}
	s.log.Debug().Int64("room_id", room.ID).Int64("message_id", msg.ID).Msg("message created")
	return payload, nil
}

// EditMessage changes the text of the caller's message in the joined room.
// Missing and foreign messages are both reported as not found.
func (svc *Service) EditMessage(ctx context.Context, s *Session, id int64, text string) (*proto.MessagePayload, error) {
	room, err := joinedRoom(s)
	if err != nil {
		return nil, err
	}
	if err := svc.checkText(text, false); err != nil {
		return nil, err
	}

	state, err := svc.writeState(ctx, s, room, false)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeModify(s.Actor(), state); err != nil {
		return nil, err
	}

	msg, err := svc.store.UpdateMessageText(ctx, id, room.ID, s.User.ID, text)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("message not found")
	}
	if err != nil {
		return nil, infra("update message", err)
	}

	payload := proto.NewMessagePayload(msg)
	if err := svc.notify(ctx, s, room, proto.ActionEditMessage, proto.StatusOK, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// DeleteMessages deletes the caller's messages in the joined room. Either
// every id is deleted or none is.
func (svc *Service) DeleteMessages(ctx context.Context, s *Session, ids []int64) (*proto.DeletedPayload, error) {
	room, err := joinedRoom(s)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, badRequest("msg_id_list must not be empty")
	}
	ids = uniqueIDs(ids)

	state, err := svc.writeState(ctx, s, room, false)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeModify(s.Actor(), state); err != nil {
		return nil, err
	}

	attachments, err := svc.store.DeleteMessages(ctx, ids, room.ID, s.User.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("message not found")
	}
	if err != nil {
		return nil, infra("delete messages", err)
	}
	svc.removeFiles(ctx, attachments)

	payload := &proto.DeletedPayload{MessagesIDs: ids, RoomID: room.ID}
	if err := svc.notify(ctx, s, room, proto.ActionDeleteMessages, proto.StatusOK, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// uniqueIDs drops repeated ids, keeping the first occurrence order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (svc *Service) removeFiles(ctx context.Context, attachments []store.Attachment) {
	if svc.files == nil || len(attachments) == 0 {
		return
	}
	files := make([]string, 0, len(attachments))
	for _, a := range attachments {
		files = append(files, a.File)
	}
	if err := svc.files.Remove(ctx, files...); err != nil {
		svc.log.Warn().Err(err).Strs("files", files).Msg("remove attachment files")
	}
}
