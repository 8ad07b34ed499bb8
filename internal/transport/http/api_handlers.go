package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/brandchat-server/internal/auth"
	"github.com/vovakirdan/brandchat-server/internal/store"
	"github.com/vovakirdan/brandchat-server/internal/uploads"
)

// APIHandlers provides HTTP handlers for REST API endpoints.
type APIHandlers struct {
	authService    *auth.Service
	attachments    store.AttachmentStore
	uploads        *uploads.Dir
	maxUploadBytes int64
	log            *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, attachments store.AttachmentStore, dir *uploads.Dir, maxUploadBytes int64, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService:    authService,
		attachments:    attachments,
		uploads:        dir,
		maxUploadBytes: maxUploadBytes,
		log:            logger,
	}
}

// TokenRequest represents the token request body.
type TokenRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse represents the token response body.
type TokenResponse struct {
	Token string `json:"token"`
}

// AttachmentResponse describes an uploaded, not yet attached file.
type AttachmentResponse struct {
	ID   int64  `json:"id"`
	File string `json:"file"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Token exchanges credentials for an access token.
// POST /api/auth/token
func (h *APIHandlers) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid token request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Msg("failed to issue token")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{Token: token})
}

// UploadAttachment stores a file that a later create_message can attach.
// POST /api/message-attachments
func (h *APIHandlers) UploadAttachment(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "file is required"})
		return
	}

	file, err := header.Open()
	if err != nil {
		h.log.Error().Err(err).Msg("open uploaded file")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	defer file.Close()

	name, err := h.uploads.Save(file, header.Filename)
	if err != nil {
		h.log.Error().Err(err).Msg("save uploaded file")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	attachment, err := h.attachments.CreateAttachment(c.Request.Context(), name)
	if err != nil {
		_ = h.uploads.Remove(c.Request.Context(), name)
		h.log.Error().Err(err).Msg("create attachment")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if user := contextUser(c); user != nil {
		h.log.Info().Int64("user_id", user.ID).Int64("attachment_id", attachment.ID).Msg("attachment uploaded")
	}
	c.JSON(http.StatusCreated, AttachmentResponse{ID: attachment.ID, File: attachment.File})
}
