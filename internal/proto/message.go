package proto

import (
	"encoding/json"
	"time"
)

// Subprotocol names negotiated by the two chat endpoints.
const (
	SubprotocolChat      = "chat"
	SubprotocolAdminChat = "admin-chat"
)

// Actions understood by the gateway.
const (
	ActionJoinRoom        = "join_room"
	ActionLeaveRoom       = "leave_room"
	ActionGetRooms        = "get_rooms"
	ActionGetRoomMessages = "get_room_messages"
	ActionCreateMessage   = "create_message"
	ActionEditMessage     = "edit_message"
	ActionDeleteMessages  = "delete_messages"
	ActionGetSupportRoom  = "get_support_room"
)

// Status codes carried in response_status.
const (
	StatusOK         = 200
	StatusCreated    = 201
	StatusBadRequest = 400
	StatusForbidden  = 403
	StatusNotFound   = 404
)

// Inbound is a frame coming from the client. Fields other than Action and
// RequestID are action specific.
type Inbound struct {
	Action string `json:"action"`
	// RequestID is chosen by the client and echoed verbatim.
	RequestID     json.RawMessage `json:"request_id,omitempty"`
	RoomID        json.RawMessage `json:"room_id,omitempty"`
	Page          json.RawMessage `json:"page,omitempty"`
	Text          *string         `json:"text,omitempty"`
	AttachmentIDs []int64         `json:"attachment_ids,omitempty"`
	MsgID         json.RawMessage `json:"msg_id,omitempty"`
	MsgIDList     []int64         `json:"msg_id_list,omitempty"`
	EditedText    *string         `json:"edited_text,omitempty"`
}

// Outbound is a frame sent to the client. Replies echo RequestID; broadcast
// notifications leave it empty. Data is null on error, Errors is null on success.
type Outbound struct {
	Action         string          `json:"action"`
	RequestID      json.RawMessage `json:"request_id,omitempty"`
	ResponseStatus int             `json:"response_status"`
	Data           any             `json:"data"`
	Errors         []string        `json:"errors"`
}

// Reply builds a successful reply to a request.
func Reply(action string, requestID json.RawMessage, status int, data any) Outbound {
	return Outbound{Action: action, RequestID: requestID, ResponseStatus: status, Data: data}
}

// ErrorReply builds a failed reply to a request.
func ErrorReply(action string, requestID json.RawMessage, status int, msg string) Outbound {
	return Outbound{Action: action, RequestID: requestID, ResponseStatus: status, Errors: []string{msg}}
}

// Notification builds an unsolicited frame for other connections.
func Notification(action string, status int, data any) Outbound {
	return Outbound{Action: action, ResponseStatus: status, Data: data}
}

// AttachmentPayload is an attachment inlined into a message.
type AttachmentPayload struct {
	ID   int64  `json:"id"`
	File string `json:"file"`
}

// MessagePayload is a chat message as seen by clients. User is null when the
// author account no longer exists.
type MessagePayload struct {
	ID          int64               `json:"id"`
	Room        int64               `json:"room"`
	User        *int64              `json:"user"`
	Text        string              `json:"text"`
	CreatedAt   time.Time           `json:"created_at"`
	Attachments []AttachmentPayload `json:"attachments"`
}

// BrandPayload is the public part of a brand profile.
type BrandPayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo"`
}

// InterlocutorPayload describes another participant of a room.
type InterlocutorPayload struct {
	ID       int64         `json:"id"`
	Email    string        `json:"email"`
	Fullname string        `json:"fullname"`
	Brand    *BrandPayload `json:"brand"`
}

// RoomPayload is a room summary.
type RoomPayload struct {
	ID            int64                 `json:"id"`
	Type          string                `json:"type"`
	LastMessage   *MessagePayload       `json:"last_message"`
	Interlocutors []InterlocutorPayload `json:"interlocutors"`
}

// Page is one page of a paginated listing. Next is null on the last page.
type Page struct {
	Count   int  `json:"count"`
	Results any  `json:"results"`
	Next    *int `json:"next"`
}

// JoinPayload answers join_room and leave_room.
type JoinPayload struct {
	RoomID   int64  `json:"room_id"`
	Response string `json:"response"`
}

// DeletedPayload lists deleted messages of a room.
type DeletedPayload struct {
	MessagesIDs []int64 `json:"messages_ids"`
	RoomID      int64   `json:"room_id"`
}
