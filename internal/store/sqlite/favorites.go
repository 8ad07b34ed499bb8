package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/brandchat-server/internal/store"
)

// ==== FavoriteStore implementation ====

// AddFavorite marks the room as favorite for the user.
func (s *SQLiteStore) AddFavorite(ctx context.Context, userID, roomID int64) (*store.Favorite, error) {
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO room_favorites (user_id, room_id, created_at) VALUES (?, ?, ?)`,
		userID, roomID, now)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) {
			switch sqliteErr.ExtendedCode {
			case sqlite3.ErrConstraintUnique:
				return nil, fmt.Errorf("favorite: %w", store.ErrAlreadyExists)
			case sqlite3.ErrConstraintForeignKey:
				return nil, fmt.Errorf("favorite room: %w", store.ErrNotFound)
			}
		}
		return nil, fmt.Errorf("insert favorite: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get favorite id: %w", err)
	}
	return &store.Favorite{ID: id, UserID: userID, RoomID: roomID, CreatedAt: now}, nil
}

// DeleteFavorite removes a favorite owned by userID. Favorites of other users
// are reported as not found.
func (s *SQLiteStore) DeleteFavorite(ctx context.Context, id, userID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM room_favorites WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("favorite: %w", store.ErrNotFound)
	}
	return nil
}

// CountFavorites counts favorites of the user.
func (s *SQLiteStore) CountFavorites(ctx context.Context, userID int64) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM room_favorites WHERE user_id = ?`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count favorites: %w", err)
	}
	return count, nil
}

// ListFavorites lists favorites of the user ordered like ListRoomSummaries.
func (s *SQLiteStore) ListFavorites(ctx context.Context, userID int64, limit, offset int) ([]*store.FavoriteSummary, error) {
	query := `
		SELECT f.id, f.user_id, f.created_at, r.id, r.type, r.created_at
		FROM room_favorites f
		JOIN rooms r ON r.id = f.room_id
		LEFT JOIN (
			SELECT room_id, MAX(created_at) AS last_at FROM messages GROUP BY room_id
		) lm ON lm.room_id = r.id
		WHERE f.user_id = ?
		ORDER BY lm.last_at IS NULL, lm.last_at DESC, f.id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}

	type row struct {
		fav  store.Favorite
		room store.Room
	}
	var found []row
	for rows.Next() {
		var r row
		var kind string
		if err := rows.Scan(&r.fav.ID, &r.fav.UserID, &r.fav.CreatedAt, &r.room.ID, &kind, &r.room.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		r.room.Kind = store.RoomKind(kind)
		r.fav.RoomID = r.room.ID
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate favorites: %w", err)
	}
	rows.Close()

	favorites := make([]*store.FavoriteSummary, 0, len(found))
	for _, r := range found {
		summary, err := s.summarize(ctx, r.room)
		if err != nil {
			return nil, err
		}
		favorites = append(favorites, &store.FavoriteSummary{Favorite: r.fav, Room: summary})
	}
	return favorites, nil
}
