package http

import (
	"context"
	"encoding/json"

	"github.com/vovakirdan/brandchat-server/internal/core"
	"github.com/vovakirdan/brandchat-server/internal/proto"
)

// dispatch runs one inbound action and builds its reply. Domain errors become
// error replies; any other error is an infrastructure failure and is returned.
func dispatch(ctx context.Context, svc *core.Service, s *core.Session, in proto.Inbound) (proto.Outbound, error) {
	data, status, err := route(ctx, svc, s, in)
	if err != nil {
		if ce, ok := core.AsCoreError(err); ok {
			return proto.ErrorReply(in.Action, in.RequestID, ce.Status, ce.Message), nil
		}
		return proto.Outbound{}, err
	}
	return proto.Reply(in.Action, in.RequestID, status, data), nil
}

func route(ctx context.Context, svc *core.Service, s *core.Session, in proto.Inbound) (any, int, error) {
	switch in.Action {
	case proto.ActionJoinRoom:
		roomID, err := requiredID(in.RoomID, "room_id")
		if err != nil {
			return nil, 0, err
		}
		payload, err := svc.JoinRoom(ctx, s, roomID)
		return payload, proto.StatusOK, err

	case proto.ActionLeaveRoom:
		payload, err := svc.LeaveRoom(ctx, s)
		return payload, proto.StatusOK, err

	case proto.ActionGetRooms:
		page, err := core.ParsePage(in.Page)
		if err != nil {
			return nil, 0, err
		}
		payload, err := svc.Rooms(ctx, s, page)
		return payload, proto.StatusOK, err

	case proto.ActionGetRoomMessages:
		page, err := core.ParsePage(in.Page)
		if err != nil {
			return nil, 0, err
		}
		payload, err := svc.RoomMessages(ctx, s, page)
		return payload, proto.StatusOK, err

	case proto.ActionCreateMessage:
		var text string
		if in.Text != nil {
			text = *in.Text
		}
		payload, err := svc.CreateMessage(ctx, s, text, in.AttachmentIDs)
		return payload, proto.StatusCreated, err

	case proto.ActionEditMessage:
		id, err := requiredID(in.MsgID, "msg_id")
		if err != nil {
			return nil, 0, err
		}
		if in.EditedText == nil {
			return nil, 0, core.BadRequest("edited_text is required")
		}
		payload, err := svc.EditMessage(ctx, s, id, *in.EditedText)
		return payload, proto.StatusOK, err

	case proto.ActionDeleteMessages:
		payload, err := svc.DeleteMessages(ctx, s, in.MsgIDList)
		return payload, proto.StatusOK, err

	case proto.ActionGetSupportRoom:
		payload, created, err := svc.SupportRoom(ctx, s)
		if created {
			return payload, proto.StatusCreated, err
		}
		return payload, proto.StatusOK, err

	default:
		return nil, 0, core.BadRequest("unknown action")
	}
}

func requiredID(raw json.RawMessage, field string) (int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, core.BadRequest(field + " is required")
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil || id <= 0 {
		return 0, core.BadRequest(field + " must be a positive integer")
	}
	return id, nil
}
