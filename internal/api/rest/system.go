package rest

import (
	"net/http"

	"github.com/KevinKickass/EquipTrack/internal/types"
	"github.com/gin-gonic/gin"
)

type statusCount struct {
	Status types.EquipmentStatus `json:"status"`
	Count  int                   `json:"count"`
	Color  string                `json:"color"`
}

// GET /api/v1/dashboard/summary
func (s *Server) getDashboardSummary(c *gin.Context) {
	ctx := c.Request.Context()
	counts := s.lm.Equipment().Summary(ctx)

	out := make([]statusCount, 0, len(types.AllStatuses))
	total := 0
	for _, st := range types.AllStatuses {
		out = append(out, statusCount{Status: st, Count: counts[st], Color: st.Color()})
		total += counts[st]
	}

	c.JSON(http.StatusOK, gin.H{
		"total":           total,
		"by_status":       out,
		"pending_quality": len(s.lm.History().Pending(ctx)),
	})
}

// GET /api/v1/dashboard/status
func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.GetCurrentStatus())
}
