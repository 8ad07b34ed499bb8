package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/brandchat-server/internal/store"
)

// ==== RoomStore implementation ====

// CreateRoom creates a room with the given participants.
func (s *SQLiteStore) CreateRoom(ctx context.Context, kind store.RoomKind, participants []int64) (*store.Room, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("create room: invalid kind %q", kind)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	room, err := insertRoom(ctx, tx, kind, participants, s.timestamp())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return room, nil
}

func insertRoom(ctx context.Context, tx *sql.Tx, kind store.RoomKind, participants []int64, now time.Time) (*store.Room, error) {
	result, err := tx.ExecContext(ctx, `INSERT INTO rooms (type, created_at) VALUES (?, ?)`, kind, now)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}
	roomID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	for _, userID := range participants {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO room_participants (room_id, user_id) VALUES (?, ?)`, roomID, userID,
		); err != nil {
			return nil, fmt.Errorf("insert participant: %w", err)
		}
	}

	var room store.Room
	var kindStr string
	err = tx.QueryRowContext(ctx, `SELECT id, type, created_at FROM rooms WHERE id = ?`, roomID).
		Scan(&room.ID, &kindStr, &room.CreatedAt)
	if err != nil {
		return nil, notFound("room", err)
	}
	room.Kind = store.RoomKind(kindStr)
	return &room, nil
}

// GetRoomByID retrieves a room by ID.
func (s *SQLiteStore) GetRoomByID(ctx context.Context, id int64) (*store.Room, error) {
	var room store.Room
	var kind string
	err := s.db.QueryRowContext(ctx, `SELECT id, type, created_at FROM rooms WHERE id = ?`, id).
		Scan(&room.ID, &kind, &room.CreatedAt)
	if err != nil {
		return nil, notFound("room", err)
	}
	if room.Kind, err = store.ParseRoomKind(kind); err != nil {
		return nil, err
	}
	return &room, nil
}

// IsParticipant checks if the user participates in the room.
func (s *SQLiteStore) IsParticipant(ctx context.Context, roomID, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM room_participants WHERE room_id = ? AND user_id = ?)`, roomID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query participant: %w", err)
	}
	return exists, nil
}

// ListParticipants lists user ids participating in the room.
func (s *SQLiteStore) ListParticipants(ctx context.Context, roomID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM room_participants WHERE room_id = ? ORDER BY user_id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetOrCreateSupportRoom returns the support room whose participant is userID,
// creating it when missing.
func (s *SQLiteStore) GetOrCreateSupportRoom(ctx context.Context, userID int64) (*store.Room, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		SELECT r.id, r.created_at
		FROM rooms r
		JOIN room_participants rp ON rp.room_id = r.id
		WHERE rp.user_id = ? AND r.type = ?
		ORDER BY r.id
		LIMIT 1
	`
	room := store.Room{Kind: store.RoomKindSupport}
	err = tx.QueryRowContext(ctx, query, userID, store.RoomKindSupport).Scan(&room.ID, &room.CreatedAt)
	switch {
	case err == nil:
		return &room, false, tx.Commit()
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, fmt.Errorf("query support room: %w", err)
	}

	created, err := insertRoom(ctx, tx, store.RoomKindSupport, []int64{userID}, s.timestamp())
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit tx: %w", err)
	}
	return created, true, nil
}

func roomFilterClause(filter store.RoomFilter) (string, []any) {
	if filter.ParticipantID == nil {
		return "", nil
	}
	return ` WHERE EXISTS (SELECT 1 FROM room_participants rp WHERE rp.room_id = r.id AND rp.user_id = ?)`,
		[]any{*filter.ParticipantID}
}

// CountRooms counts rooms matching the filter.
func (s *SQLiteStore) CountRooms(ctx context.Context, filter store.RoomFilter) (int, error) {
	where, args := roomFilterClause(filter)
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms r`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rooms: %w", err)
	}
	return count, nil
}

// ListRoomSummaries lists rooms ordered by latest message, rooms without messages last.
func (s *SQLiteStore) ListRoomSummaries(ctx context.Context, filter store.RoomFilter, limit, offset int) ([]*store.RoomSummary, error) {
	where, args := roomFilterClause(filter)
	query := `
		SELECT r.id, r.type, r.created_at
		FROM rooms r
		LEFT JOIN (
			SELECT room_id, MAX(created_at) AS last_at FROM messages GROUP BY room_id
		) lm ON lm.room_id = r.id` + where + `
		ORDER BY lm.last_at IS NULL, lm.last_at DESC, r.id DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}

	var rooms []store.Room
	for rows.Next() {
		var room store.Room
		var kind string
		if err := rows.Scan(&room.ID, &kind, &room.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan room: %w", err)
		}
		room.Kind = store.RoomKind(kind)
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	// The pool holds a single connection; release it before the per-room queries.
	rows.Close()

	summaries := make([]*store.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summary, err := s.summarize(ctx, room)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// GetRoomSummary returns the summary of a single room.
func (s *SQLiteStore) GetRoomSummary(ctx context.Context, roomID int64) (*store.RoomSummary, error) {
	room, err := s.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, *room)
}

func (s *SQLiteStore) summarize(ctx context.Context, room store.Room) (*store.RoomSummary, error) {
	last, err := s.ListMessages(ctx, room.ID, 1, 0)
	if err != nil {
		return nil, err
	}
	participants, err := s.listParticipantProfiles(ctx, room.ID)
	if err != nil {
		return nil, err
	}

	summary := &store.RoomSummary{Room: room, Participants: participants}
	if len(last) > 0 {
		summary.LastMessage = last[0]
	}
	return summary, nil
}

func (s *SQLiteStore) listParticipantProfiles(ctx context.Context, roomID int64) ([]store.Participant, error) {
	query := `
		SELECT u.id, u.email, u.fullname, b.id, b.name, b.logo
		FROM room_participants rp
		JOIN users u ON u.id = rp.user_id
		LEFT JOIN brands b ON b.user_id = u.id
		WHERE rp.room_id = ?
		ORDER BY u.id
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	participants := make([]store.Participant, 0, 2)
	for rows.Next() {
		var p store.Participant
		var brandID sql.NullInt64
		var brandName, brandLogo sql.NullString
		if err := rows.Scan(&p.UserID, &p.Email, &p.Fullname, &brandID, &brandName, &brandLogo); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		if brandID.Valid {
			p.Brand = &store.Brand{
				ID:     brandID.Int64,
				UserID: p.UserID,
				Name:   brandName.String,
				Logo:   brandLogo.String,
			}
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// DeleteEmptyRooms removes rooms without participants and returns the
// attachments that belonged to their messages.
func (s *SQLiteStore) DeleteEmptyRooms(ctx context.Context) (int64, []store.Attachment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const empty = `NOT EXISTS (SELECT 1 FROM room_participants rp WHERE rp.room_id = rooms.id)`

	attachments, err := queryAttachments(ctx, tx, `
		SELECT a.id, a.message_id, a.file, a.created_at
		FROM message_attachments a
		JOIN messages m ON m.id = a.message_id
		JOIN rooms ON rooms.id = m.room_id
		WHERE `+empty)
	if err != nil {
		return 0, nil, err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE `+empty)
	if err != nil {
		return 0, nil, fmt.Errorf("delete empty rooms: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, nil, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("commit tx: %w", err)
	}
	return deleted, attachments, nil
}
