package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vovakirdan/brandchat-server/internal/store"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ==== MessageStore implementation ====

// CreateMessage persists msg and attaches attachmentIDs in order.
// Fails with store.ErrAttachmentUnavailable if any attachment is missing or already attached.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *store.Message, attachmentIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	msg.CreatedAt = s.timestamp()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO messages (room_id, user_id, text, created_at) VALUES (?, ?, ?, ?)`,
		msg.RoomID, msg.UserID, msg.Text, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if msg.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	for pos, attachmentID := range attachmentIDs {
		res, err := tx.ExecContext(ctx,
			`UPDATE message_attachments SET message_id = ?, position = ? WHERE id = ? AND message_id IS NULL`,
			msg.ID, pos, attachmentID)
		if err != nil {
			return fmt.Errorf("attach %d: %w", attachmentID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		} else if n != 1 {
			return fmt.Errorf("attach %d: %w", attachmentID, store.ErrAttachmentUnavailable)
		}
	}

	attachments, err := queryAttachments(ctx, tx, attachmentsQuery+` WHERE a.message_id = ? ORDER BY a.position, a.id`, msg.ID)
	if err != nil {
		return err
	}
	msg.Attachments = attachments

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpdateMessageText changes the text of a message authored by userID in roomID.
// Ownership is part of the statement, so a concurrent writer with a different
// author matches zero rows.
func (s *SQLiteStore) UpdateMessageText(ctx context.Context, id, roomID, userID int64, text string) (*store.Message, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET text = ? WHERE id = ? AND room_id = ? AND user_id = ?`,
		text, id, roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
	}
	return s.getMessage(ctx, id)
}

// DeleteMessages deletes all ids authored by userID in roomID or nothing at all.
func (s *SQLiteStore) DeleteMessages(ctx context.Context, ids []int64, roomID, userID int64) ([]store.Attachment, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("delete messages: %w", store.ErrNotFound)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	in := placeholders(len(ids))

	attachments, err := queryAttachments(ctx, tx,
		attachmentsQuery+` JOIN messages m ON m.id = a.message_id
		WHERE m.room_id = ? AND m.user_id = ? AND m.id IN (`+in+`)`,
		int64Args(ids, roomID, userID)...)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM message_attachments WHERE message_id IN (
			SELECT id FROM messages WHERE room_id = ? AND user_id = ? AND id IN (`+in+`)
		)`, int64Args(ids, roomID, userID)...,
	); err != nil {
		return nil, fmt.Errorf("delete attachments: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE room_id = ? AND user_id = ? AND id IN (`+in+`)`,
		int64Args(ids, roomID, userID)...)
	if err != nil {
		return nil, fmt.Errorf("delete messages: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n != int64(len(ids)) {
		// rollback in defer
		return nil, fmt.Errorf("delete messages: matched %d of %d: %w", n, len(ids), store.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return attachments, nil
}

// CountMessages counts messages in a room.
func (s *SQLiteStore) CountMessages(ctx context.Context, roomID int64) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE room_id = ?`, roomID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// CountUserMessages counts messages authored by userID in roomID.
func (s *SQLiteStore) CountUserMessages(ctx context.Context, roomID, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE room_id = ? AND user_id = ?`, roomID, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count user messages: %w", err)
	}
	return count, nil
}

// ListMessages lists room messages newest first with attachments.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID int64, limit, offset int) ([]*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, user_id, text, created_at
		FROM messages
		WHERE room_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, roomID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	messages, err := scanMessages(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	if err := s.loadAttachments(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *SQLiteStore) getMessage(ctx context.Context, id int64) (*store.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room_id, user_id, text, created_at FROM messages WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query message: %w", err)
	}
	messages, err := scanMessages(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
	}
	if err := s.loadAttachments(ctx, messages); err != nil {
		return nil, err
	}
	return messages[0], nil
}

func scanMessages(rows *sql.Rows) ([]*store.Message, error) {
	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		var userID sql.NullInt64
		if err := rows.Scan(&msg.ID, &msg.RoomID, &userID, &msg.Text, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.UserID = userID.Int64
		msg.Attachments = []store.Attachment{}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func (s *SQLiteStore) loadAttachments(ctx context.Context, messages []*store.Message) error {
	if len(messages) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(messages))
	byID := make(map[int64]*store.Message, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.ID)
		byID[msg.ID] = msg
	}

	attachments, err := queryAttachments(ctx, s.db,
		attachmentsQuery+` WHERE a.message_id IN (`+placeholders(len(ids))+`) ORDER BY a.position, a.id`,
		int64Args(ids)...)
	if err != nil {
		return err
	}
	for _, a := range attachments {
		if msg, ok := byID[*a.MessageID]; ok {
			msg.Attachments = append(msg.Attachments, a)
		}
	}
	return nil
}

// ==== AttachmentStore implementation ====

const attachmentsQuery = `SELECT a.id, a.message_id, a.file, a.created_at FROM message_attachments a`

// CreateAttachment records an uploaded file that is not attached yet.
func (s *SQLiteStore) CreateAttachment(ctx context.Context, file string) (*store.Attachment, error) {
	now := s.timestamp()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO message_attachments (file, created_at) VALUES (?, ?)`, file, now)
	if err != nil {
		return nil, fmt.Errorf("insert attachment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	return &store.Attachment{ID: id, File: file, CreatedAt: now}, nil
}

// DeleteDanglingAttachments removes unattached attachments created before olderThan.
func (s *SQLiteStore) DeleteDanglingAttachments(ctx context.Context, olderThan time.Time) ([]store.Attachment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cutoff := olderThan.UTC()
	attachments, err := queryAttachments(ctx, tx,
		attachmentsQuery+` WHERE a.message_id IS NULL AND a.created_at <= ?`, cutoff)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM message_attachments WHERE message_id IS NULL AND created_at <= ?`, cutoff,
	); err != nil {
		return nil, fmt.Errorf("delete attachments: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return attachments, nil
}

func queryAttachments(ctx context.Context, q querier, query string, args ...any) ([]store.Attachment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	var attachments []store.Attachment
	for rows.Next() {
		var a store.Attachment
		var messageID sql.NullInt64
		if err := rows.Scan(&a.ID, &messageID, &a.File, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		if messageID.Valid {
			id := messageID.Int64
			a.MessageID = &id
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

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
