package dto

import (
	"github.com/jaennil/guide_helper/tilesource/internal/source"
	"github.com/jaennil/guide_helper/tilesource/internal/usecase"
)

type TileURI struct {
	Z uint32 `uri:"z" validate:"lte=30"`
	X uint32 `uri:"x"`
	Y uint32 `uri:"y"`
}

type TileStateResponse struct {
	Coord string `json:"coord"`
	State string `json:"state"`
}

type SourceResponse struct {
	Source source.Options       `json:"source"`
	Tiles  []usecase.TileStatus `json:"tiles"`
}
