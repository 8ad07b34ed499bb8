package proto

import "github.com/vovakirdan/brandchat-server/internal/store"

// NewMessagePayload converts a stored message.
func NewMessagePayload(msg *store.Message) *MessagePayload {
	if msg == nil {
		return nil
	}
	payload := &MessagePayload{
		ID:          msg.ID,
		Room:        msg.RoomID,
		Text:        msg.Text,
		CreatedAt:   msg.CreatedAt,
		Attachments: make([]AttachmentPayload, 0, len(msg.Attachments)),
	}
	if msg.UserID != 0 {
		user := msg.UserID
		payload.User = &user
	}
	for _, a := range msg.Attachments {
		payload.Attachments = append(payload.Attachments, AttachmentPayload{ID: a.ID, File: a.File})
	}
	return payload
}

// NewMessagePayloads converts a list of stored messages.
func NewMessagePayloads(messages []*store.Message) []*MessagePayload {
	out := make([]*MessagePayload, 0, len(messages))
	for _, msg := range messages {
		out = append(out, NewMessagePayload(msg))
	}
	return out
}

// NewRoomPayload converts a room summary. The participant viewerID is left
// out of the interlocutors; pass 0 to list every participant.
func NewRoomPayload(summary *store.RoomSummary, viewerID int64) *RoomPayload {
	payload := &RoomPayload{
		ID:            summary.Room.ID,
		Type:          string(summary.Room.Kind),
		LastMessage:   NewMessagePayload(summary.LastMessage),
		Interlocutors: make([]InterlocutorPayload, 0, len(summary.Participants)),
	}
	for _, p := range summary.Participants {
		if p.UserID == viewerID {
			continue
		}
		item := InterlocutorPayload{ID: p.UserID, Email: p.Email, Fullname: p.Fullname}
		if p.Brand != nil {
			item.Brand = &BrandPayload{ID: p.Brand.ID, Name: p.Brand.Name, Logo: p.Brand.Logo}
		}
		payload.Interlocutors = append(payload.Interlocutors, item)
	}
	return payload
}
