package favorites

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/brandchat-server/internal/core"
	"github.com/vovakirdan/brandchat-server/internal/store"
)

// Common errors for favorite operations.
var (
	ErrAlreadyFavorite  = errors.New("room is already a favorite")
	ErrRoomNotFound     = errors.New("room not found")
	ErrFavoriteNotFound = errors.New("favorite not found")
	ErrInvalidPage      = errors.New("invalid page")
)

// Page is one page of favorites. Next is nil on the last page.
type Page struct {
	Count     int
	Favorites []*store.FavoriteSummary
	Next      *int
}

// Service manages the favorite rooms of users.
type Service struct {
	store store.Store
}

// New creates a new favorites Service.
func New(st store.Store) *Service {
	return &Service{
		store: st,
	}
}

// List returns a page of the user's favorites, most recently active room first.
func (s *Service) List(ctx context.Context, userID int64, page int) (*Page, error) {
	count, err := s.store.CountFavorites(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count favorites: %w", err)
	}
	offset, next, err := core.Paginate(count, page)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPage, err)
	}

	favs, err := s.store.ListFavorites(ctx, userID, core.PageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return &Page{Count: count, Favorites: favs, Next: next}, nil
}

// Add marks a room as favorite for the user and returns it with the room summary.
func (s *Service) Add(ctx context.Context, userID, roomID int64) (*store.FavoriteSummary, error) {
	if _, err := s.store.GetRoomByID(ctx, roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("get room: %w", err)
	}

	fav, err := s.store.AddFavorite(ctx, userID, roomID)
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		return nil, ErrAlreadyFavorite
	case errors.Is(err, store.ErrNotFound):
		// room deleted in between
		return nil, ErrRoomNotFound
	case err != nil:
		return nil, fmt.Errorf("add favorite: %w", err)
	}

	summary, err := s.store.GetRoomSummary(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("get room summary: %w", err)
	}
	return &store.FavoriteSummary{Favorite: *fav, Room: summary}, nil
}

// Delete removes a favorite. Only its owner may delete it; favorites of
// other users are reported as not found.
func (s *Service) Delete(ctx context.Context, userID, favoriteID int64) error {
	if err := s.store.DeleteFavorite(ctx, favoriteID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrFavoriteNotFound
		}
		return fmt.Errorf("delete favorite: %w", err)
	}
	return nil
}
