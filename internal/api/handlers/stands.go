package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"standmap-service/internal/api/dto"
	"standmap-service/internal/ports"
)

// StandHandler exposes the read-only stand catalog. Clients use the index
// when selecting a destination.
type StandHandler struct {
	Catalog ports.StandCatalog
	Log     *zap.Logger
}

func (h *StandHandler) List(c *gin.Context) {
	stands, err := h.Catalog.ListStands(c.Request.Context())
	if err != nil {
		h.Log.Error("list stands failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal server error")
		return
	}

	res := dto.ListStandsResponse{
		Stands: make([]dto.StandResponse, 0, len(stands)),
	}
	for i, s := range stands {
		res.Stands = append(res.Stands, dto.StandResponse{
			Index: i,
			ID:    s.ID,
			Name:  s.Name,
			Lat:   s.Coords.Lat,
			Lng:   s.Coords.Lon,
			Img:   s.Image,
		})
	}

	c.JSON(http.StatusOK, res)
}
