// Package bus implements the publish/subscribe layer that fans chat events out
// to live connections. Membership is an explicit (group, connection) table
// mutated only by connection lifecycle transitions; publishers name groups and
// never touch membership.
package bus

import (
	"context"
	"strconv"
)

// OperatorsGroup holds every live operator connection.
const OperatorsGroup = "operators"

// RoomGroup returns the group name for a room.
func RoomGroup(roomID int64) string {
	return "room:" + strconv.FormatInt(roomID, 10)
}

// Subscriber is a live connection able to receive payloads.
type Subscriber interface {
	ID() string
	// Deliver hands a payload to the connection without blocking.
	// It returns false when the payload was dropped.
	Deliver(payload []byte) bool
}

// Publication is a payload addressed to the union of several groups.
type Publication struct {
	Groups []string `json:"groups"`
	// Exclude is a subscriber id that must not receive the payload.
	Exclude string `json:"exclude,omitempty"`
	Payload []byte `json:"payload"`
}

// Bus adds and removes subscribers from groups and publishes to groups.
// A subscriber present in several groups of one publication receives one copy.
type Bus interface {
	Add(ctx context.Context, group string, sub Subscriber) error
	Discard(ctx context.Context, group string, sub Subscriber) error
	Members(group string) []string
	Publish(ctx context.Context, pub Publication) error
}
