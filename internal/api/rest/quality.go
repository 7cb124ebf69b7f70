package rest

import (
	"net/http"
	"strconv"

	"github.com/KevinKickass/EquipTrack/internal/history"
	"github.com/KevinKickass/EquipTrack/internal/types"
	"github.com/gin-gonic/gin"
)

// GET /api/v1/quality/pending
func (s *Server) listPendingRecords(c *gin.Context) {
	records := s.lm.History().Pending(c.Request.Context())
	if records == nil {
		records = []*types.ProcessRecord{}
	}
	c.JSON(http.StatusOK, records)
}

type dispositionRequest struct {
	Verdict string `json:"verdict" form:"resultado"`
}

// POST /api/v1/quality/records/:id/disposition
func (s *Server) disposeRecord(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dispositionRequest
	if !bindBody(c, &req) {
		return
	}
	res, err := s.lm.MachineController().Dispose(c.Request.Context(), actorFrom(c), id, req.Verdict)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/v1/history?start=&end=&equipment_id=&quality=&kind=
func (s *Server) listHistory(c *gin.Context) {
	f := history.Filter{
		Start:   c.Query("start"),
		End:     c.Query("end"),
		Quality: types.QualityStatus(c.Query("quality")),
		Kind:    types.RecordKind(c.Query("kind")),
	}
	if raw := c.Query("equipment_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, "invalid equipment_id", err)
			return
		}
		f.EquipmentID = &id
	}

	records, err := s.lm.History().List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []*types.ProcessRecord{}
	}
	c.JSON(http.StatusOK, records)
}
