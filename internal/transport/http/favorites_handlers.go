package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/brandchat-server/internal/proto"
	"github.com/vovakirdan/brandchat-server/internal/service/favorites"
	"github.com/vovakirdan/brandchat-server/internal/store"
)

// FavoritesHandlers provides HTTP handlers for favorite rooms.
type FavoritesHandlers struct {
	service *favorites.Service
	log     *zerolog.Logger
}

// NewFavoritesHandlers creates a new favorites handlers instance.
func NewFavoritesHandlers(svc *favorites.Service, logger *zerolog.Logger) *FavoritesHandlers {
	return &FavoritesHandlers{
		service: svc,
		log:     logger,
	}
}

// AddFavoriteRequest represents the request body for adding a favorite.
type AddFavoriteRequest struct {
	Room int64 `json:"room" binding:"required"`
}

// FavoriteResponse represents a favorite room in API responses.
type FavoriteResponse struct {
	ID   int64              `json:"id"`
	Room *proto.RoomPayload `json:"room"`
}

func favoriteToResponse(f *store.FavoriteSummary, viewerID int64) FavoriteResponse {
	return FavoriteResponse{ID: f.Favorite.ID, Room: proto.NewRoomPayload(f.Room, viewerID)}
}

// List handles listing the favorites of the current user.
// GET /api/chat_favorites?page=N
func (h *FavoritesHandlers) List(c *gin.Context) {
	user := contextUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	page := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "invalid page"})
			return
		}
		page = n
	}

	result, err := h.service.List(c.Request.Context(), user.ID, page)
	if err != nil {
		if errors.Is(err, favorites.ErrInvalidPage) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "invalid page"})
			return
		}
		h.log.Error().Err(err).Int64("user_id", user.ID).Msg("failed to list favorites")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	results := make([]FavoriteResponse, 0, len(result.Favorites))
	for _, f := range result.Favorites {
		results = append(results, favoriteToResponse(f, user.ID))
	}
	c.JSON(http.StatusOK, proto.Page{Count: result.Count, Results: results, Next: result.Next})
}

// Create handles adding a room to the favorites of the current user.
// POST /api/chat_favorites
func (h *FavoritesHandlers) Create(c *gin.Context) {
	user := contextUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req AddFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid add favorite request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	fav, err := h.service.Add(c.Request.Context(), user.ID, req.Room)
	if err != nil {
		switch {
		case errors.Is(err, favorites.ErrAlreadyFavorite):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room is already a favorite"})
		case errors.Is(err, favorites.ErrRoomNotFound):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room not found"})
		default:
			h.log.Error().Err(err).Int64("user_id", user.ID).Int64("room_id", req.Room).Msg("failed to add favorite")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Int64("user_id", user.ID).Int64("room_id", req.Room).Msg("favorite added")
	c.JSON(http.StatusCreated, favoriteToResponse(fav, user.ID))
}

// Delete handles removing a favorite of the current user.
// DELETE /api/chat_favorites/:id
func (h *FavoritesHandlers) Delete(c *gin.Context) {
	user := contextUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "favorite not found"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), user.ID, id); err != nil {
		if errors.Is(err, favorites.ErrFavoriteNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "favorite not found"})
			return
		}
		h.log.Error().Err(err).Int64("user_id", user.ID).Int64("favorite_id", id).Msg("failed to delete favorite")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("user_id", user.ID).Int64("favorite_id", id).Msg("favorite deleted")
	c.Status(http.StatusNoContent)
}
