package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/tilesource/internal/source"
	"github.com/jaennil/guide_helper/tilesource/internal/usecase"
	"github.com/jaennil/guide_helper/tilesource/pkg/logger"
)

const (
	internalServerErrorText = "the server encountered an error and could not process your request"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type Handler struct {
	validate       *validator.Validate
	tileUseCase    *usecase.TileUseCase
	acquireTimeout time.Duration
}

func NewHandler(v *validator.Validate, uc *usecase.TileUseCase, acquireTimeout time.Duration) *Handler {
	return &Handler{
		validate:       v,
		tileUseCase:    uc,
		acquireTimeout: acquireTimeout,
	}
}

func (h *Handler) RespondWithInternalServerError(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusInternalServerError, internalServerErrorText, nil)
}

func (h *Handler) RespondWithJSON(c *gin.Context, code int, message string, data any) {
	success := code < 400

	r := response{
		Success: success,
		Message: message,
		Data:    data,
	}

	c.JSON(code, r)
}

// RespondWithError maps use case and source errors to status codes.
func (h *Handler) RespondWithError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, usecase.ErrInvalidCoordinate):
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, usecase.ErrOutOfBounds), errors.Is(err, usecase.ErrNotActive):
		h.RespondWithJSON(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, usecase.ErrAborted):
		h.RespondWithJSON(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, source.ErrLoad):
		h.RespondWithJSON(c, http.StatusBadGateway, err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		h.RespondWithJSON(c, http.StatusGatewayTimeout, "timed out waiting for tile", nil)
	default:
		loggerFrom(c).Error("request failed", "path", c.Request.URL.Path, "error", err)
		h.RespondWithInternalServerError(c)
	}
}

func loggerFrom(c *gin.Context) logger.Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(logger.Logger); ok {
			return l
		}
	}
	return logger.FromContext(c.Request.Context())
}
