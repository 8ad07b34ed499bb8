package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a row does not exist or is filtered out by ownership.
	ErrNotFound = errors.New("not found")
	// ErrAttachmentUnavailable is returned when an attachment is missing or already attached.
	ErrAttachmentUnavailable = errors.New("attachment unavailable")
	// ErrAlreadyExists is returned when a unique row is inserted twice.
	ErrAlreadyExists = errors.New("already exists")
)

// User represents an account identity.
type User struct {
	ID           int64
	Email        string
	Fullname     string
	PasswordHash string
	IsStaff      bool
	IsSuperuser  bool
	IsActive     bool
	CreatedAt    time.Time
}

// IsOperator reports whether the user may use the operator chat.
func (u *User) IsOperator() bool {
	return u != nil && (u.IsStaff || u.IsSuperuser)
}

// Brand is the business profile owned by a user.
type Brand struct {
	ID     int64
	UserID int64
	Name   string
	Logo   string
}

// RoomKind defines the kind of a room. It never changes after creation.
type RoomKind string

const (
	RoomKindMatch   RoomKind = "M"
	RoomKindInstant RoomKind = "I"
	RoomKindSupport RoomKind = "S"
)

// Valid reports whether k is one of the known room kinds.
func (k RoomKind) Valid() bool {
	switch k {
	case RoomKindMatch, RoomKindInstant, RoomKindSupport:
		return true
	}
	return false
}

// ParseRoomKind converts a stored value into a RoomKind.
func ParseRoomKind(s string) (RoomKind, error) {
	k := RoomKind(s)
	if !k.Valid() {
		return "", errors.New("unknown room kind: " + s)
	}
	return k, nil
}

// Room represents a chat room.
type Room struct {
	ID        int64
	Kind      RoomKind
	CreatedAt time.Time
}

// Message represents a persisted chat message.
type Message struct {
	ID          int64
	RoomID      int64
	UserID      int64
	Text        string
	CreatedAt   time.Time
	Attachments []Attachment
}

// Attachment is an uploaded file reference. MessageID is nil until attached.
type Attachment struct {
	ID        int64
	MessageID *int64
	File      string
	CreatedAt time.Time
}

// Participant is a room participant with the brand they own, if any.
type Participant struct {
	UserID   int64
	Email    string
	Fullname string
	Brand    *Brand
}

// RoomSummary is a room with its latest message and participants.
type RoomSummary struct {
	Room         Room
	LastMessage  *Message
	Participants []Participant
}

// Favorite marks a room as favorite for a user.
type Favorite struct {
	ID        int64
	UserID    int64
	RoomID    int64
	CreatedAt time.Time
}

// FavoriteSummary is a favorite with the summary of its room.
type FavoriteSummary struct {
	Favorite Favorite
	Room     *RoomSummary
}

// RoomFilter narrows room listings. A nil ParticipantID lists every room.
type RoomFilter struct {
	ParticipantID *int64
}

// UserStore handles user persistence.
type UserStore interface {
	// GetUserByID retrieves an active user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByEmail retrieves an active user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// BrandStore answers brand, subscription, blacklist and coop lookups.
// The rows are produced by other subsystems; the chat only reads them.
type BrandStore interface {
	// GetBrandByUserID returns the brand owned by the user.
	GetBrandByUserID(ctx context.Context, userID int64) (*Brand, error)

	// IsSubscriptionActive reports whether the brand has an active subscription at now.
	IsSubscriptionActive(ctx context.Context, brandID int64, now time.Time) (bool, error)

	// IsBlocked reports whether either brand has blocked the other.
	IsBlocked(ctx context.Context, brandID, otherBrandID int64) (bool, error)

	// CoopInitiator returns the user id of the brand that opened an instant room.
	CoopInitiator(ctx context.Context, roomID int64) (int64, error)
}

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom creates a room with the given participants.
	CreateRoom(ctx context.Context, kind RoomKind, participants []int64) (*Room, error)

	// GetRoomByID retrieves a room by ID.
	GetRoomByID(ctx context.Context, id int64) (*Room, error)

	// IsParticipant checks if the user participates in the room.
	IsParticipant(ctx context.Context, roomID, userID int64) (bool, error)

	// ListParticipants lists user ids participating in the room.
	ListParticipants(ctx context.Context, roomID int64) ([]int64, error)

	// GetOrCreateSupportRoom returns the support room whose participant is userID,
	// creating it when missing. The bool reports whether it was created.
	GetOrCreateSupportRoom(ctx context.Context, userID int64) (*Room, bool, error)

	// CountRooms counts rooms matching the filter.
	CountRooms(ctx context.Context, filter RoomFilter) (int, error)

	// ListRoomSummaries lists rooms ordered by latest message, rooms without messages last.
	ListRoomSummaries(ctx context.Context, filter RoomFilter, limit, offset int) ([]*RoomSummary, error)

	// GetRoomSummary returns the summary of a single room.
	GetRoomSummary(ctx context.Context, roomID int64) (*RoomSummary, error)

	// DeleteEmptyRooms removes rooms without participants and returns the
	// attachments that belonged to their messages.
	DeleteEmptyRooms(ctx context.Context) (int64, []Attachment, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists msg and attaches attachmentIDs in order.
	CreateMessage(ctx context.Context, msg *Message, attachmentIDs []int64) error

	// UpdateMessageText changes the text of a message authored by userID in roomID.
	UpdateMessageText(ctx context.Context, id, roomID, userID int64, text string) (*Message, error)

	// DeleteMessages deletes all ids authored by userID in roomID or nothing at all.
	// It returns the attachments removed with the messages.
	DeleteMessages(ctx context.Context, ids []int64, roomID, userID int64) ([]Attachment, error)

	// CountMessages counts messages in a room.
	CountMessages(ctx context.Context, roomID int64) (int, error)

	// ListMessages lists room messages newest first with attachments.
	ListMessages(ctx context.Context, roomID int64, limit, offset int) ([]*Message, error)

	// CountUserMessages counts messages authored by userID in roomID.
	CountUserMessages(ctx context.Context, roomID, userID int64) (int, error)
}

// AttachmentStore handles attachment persistence.
type AttachmentStore interface {
	// CreateAttachment records an uploaded file that is not attached yet.
	CreateAttachment(ctx context.Context, file string) (*Attachment, error)

	// DeleteDanglingAttachments removes unattached attachments created before olderThan.
	DeleteDanglingAttachments(ctx context.Context, olderThan time.Time) ([]Attachment, error)
}

// FavoriteStore handles favorite rooms of users.
type FavoriteStore interface {
	// AddFavorite marks the room as favorite for the user. It returns
	// ErrAlreadyExists when the room is already a favorite.
	AddFavorite(ctx context.Context, userID, roomID int64) (*Favorite, error)

	// DeleteFavorite removes a favorite owned by userID.
	DeleteFavorite(ctx context.Context, id, userID int64) error

	// CountFavorites counts favorites of the user.
	CountFavorites(ctx context.Context, userID int64) (int, error)

	// ListFavorites lists favorites of the user ordered by the latest message
	// of their room, rooms without messages last.
	ListFavorites(ctx context.Context, userID int64, limit, offset int) ([]*FavoriteSummary, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	BrandStore
	RoomStore
	MessageStore
	AttachmentStore
	FavoriteStore

	// Close closes the underlying database connection.
	Close() error
}
