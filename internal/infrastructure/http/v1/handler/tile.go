package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/tilesource/internal/infrastructure/http/v1/dto"
	"github.com/jaennil/guide_helper/tilesource/internal/tile"
	"github.com/jaennil/guide_helper/tilesource/internal/usecase"
)

func (h *Handler) bindTile(c *gin.Context) (tile.Coordinate, bool) {
	var uri dto.TileURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, "z, x and y should be non-negative integers", nil)
		return tile.Coordinate{}, false
	}
	if err := h.validate.Struct(uri); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return tile.Coordinate{}, false
	}

	coord := tile.Coordinate{Z: uri.Z, X: uri.X, Y: uri.Y}
	if !coord.Valid() {
		h.RespondWithJSON(c, http.StatusBadRequest, "tile coordinate out of range", nil)
		return tile.Coordinate{}, false
	}
	return coord, true
}

func (h *Handler) Tile(c *gin.Context) {
	coord, ok := h.bindTile(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.acquireTimeout)
	defer cancel()

	data, err := h.tileUseCase.Acquire(ctx, coord)
	if err != nil {
		h.RespondWithError(c, err)
		return
	}

	h.writeTile(c, data)
}

func (h *Handler) ReloadTile(c *gin.Context) {
	coord, ok := h.bindTile(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.acquireTimeout)
	defer cancel()

	data, err := h.tileUseCase.Reload(ctx, coord)
	if err != nil {
		h.RespondWithError(c, err)
		return
	}

	h.writeTile(c, data)
}

func (h *Handler) AbortTile(c *gin.Context) {
	coord, ok := h.bindTile(c)
	if !ok {
		return
	}

	state, err := h.tileUseCase.Abort(c.Request.Context(), coord)
	if err != nil {
		h.RespondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "tile request aborted", dto.TileStateResponse{
		Coord: coord.String(),
		State: state.String(),
	})
}

func (h *Handler) UnloadTile(c *gin.Context) {
	coord, ok := h.bindTile(c)
	if !ok {
		return
	}

	if err := h.tileUseCase.Release(c.Request.Context(), coord); err != nil {
		h.RespondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "tile unloaded", dto.TileStateResponse{
		Coord: coord.String(),
		State: tile.StateUnloaded.String(),
	})
}

func (h *Handler) Source(c *gin.Context) {
	tiles, err := h.tileUseCase.Status(c.Request.Context())
	if err != nil {
		h.RespondWithError(c, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "source", dto.SourceResponse{
		Source: h.tileUseCase.Source(),
		Tiles:  tiles,
	})
}

func (h *Handler) writeTile(c *gin.Context, data *usecase.TileData) {
	if !data.ExpiresAt.IsZero() {
		c.Header("Expires", data.ExpiresAt.UTC().Format(http.TimeFormat))
	}
	c.Header("X-Tile-State", data.State.String())
	c.Data(http.StatusOK, data.ContentType, data.Data)
}
