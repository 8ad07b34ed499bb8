package core

import "github.com/vovakirdan/brandchat-server/internal/store"

// Actor is the identity behind a session as seen by the room rules.
type Actor struct {
	UserID   int64
	Operator bool
}

// RoomState holds the facts about a room and the actor the rules depend on.
// Only the facts relevant to the actor and room kind need to be filled.
type RoomState struct {
	Kind               store.RoomKind
	Participant        bool
	SubscriptionActive bool
	// Blocked reports a blacklist entry between the actor and another participant.
	Blocked bool
	// Initiator is the coop initiator of an instant room.
	Initiator int64
	// Authored is the number of messages the actor already wrote in the room.
	Authored int
}

func matchLike(kind store.RoomKind) bool {
	return kind == store.RoomKindMatch || kind == store.RoomKindInstant
}

// AuthorizeJoin decides whether the actor may join the room.
// Operators oversee every room; users must participate.
func AuthorizeJoin(actor Actor, state RoomState) *CoreError {
	if actor.Operator {
		return nil
	}
	if !state.SubscriptionActive {
		return forbidden("subscription is not active")
	}
	if !state.Participant {
		return forbidden("you are not a participant of this room")
	}
	return nil
}

// AuthorizeCreate decides whether the actor may post a new message.
func AuthorizeCreate(actor Actor, state RoomState) *CoreError {
	if err := authorizeWrite(actor, state); err != nil {
		return err
	}
	if actor.Operator || state.Kind != store.RoomKindInstant {
		return nil
	}
	if actor.UserID != state.Initiator {
		return forbidden("only the initiator may write in an instant room")
	}
	if state.Authored > 0 {
		return forbidden("wait for the reply to your first message")
	}
	return nil
}

// AuthorizeModify decides whether the actor may edit or delete its messages.
// Ownership is checked by the store.
func AuthorizeModify(actor Actor, state RoomState) *CoreError {
	return authorizeWrite(actor, state)
}

func authorizeWrite(actor Actor, state RoomState) *CoreError {
	if actor.Operator {
		if state.Kind != store.RoomKindSupport {
			return forbidden("operators may write only in support rooms")
		}
		return nil
	}
	if !state.SubscriptionActive {
		return forbidden("subscription is not active")
	}
	if matchLike(state.Kind) && state.Blocked {
		return forbidden("this conversation is blocked")
	}
	return nil
}
