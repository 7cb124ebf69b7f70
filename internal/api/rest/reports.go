package rest

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/KevinKickass/EquipTrack/internal/reports"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GET /api/v1/reports
func (s *Server) listReports(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.ReportCatalog().ListReports(c.Request.Context()))
}

// GET /api/v1/reports/fields
func (s *Server) listReportFields(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"fields":  reports.Fields(),
		"default": reports.DefaultFields,
	})
}

// GET /api/v1/reports/:id
func (s *Server) getReport(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	d, err := s.lm.ReportCatalog().GetReport(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// POST /api/v1/reports
func (s *Server) createReport(c *gin.Context) {
	var req reports.DefinitionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	d, err := s.lm.ReportCatalog().CreateReport(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// PUT /api/v1/reports/:id
func (s *Server) updateReport(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req reports.DefinitionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	d, err := s.lm.ReportCatalog().UpdateReport(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// DELETE /api/v1/reports/:id
func (s *Server) deleteReport(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := s.lm.ReportCatalog().DeleteReport(c.Request.Context(), actorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/v1/reports/:id/export?format=excel|pdf&data_inicio=&data_fim=&equipamento_id=
func (s *Server) exportReport(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var filters reports.Filters
	if err := c.ShouldBindQuery(&filters); err != nil {
		badRequest(c, "Invalid filters", err)
		return
	}
	format := c.Query("format")
	if format == "" {
		format = c.Query("formato")
	}

	doc, err := s.lm.ReportEngine().Generate(c.Request.Context(), id, format, filters, actorFrom(c))
	if err != nil {
		s.logger.Info("Report export refused", zap.Int64("report_id", id), zap.String("format", format), zap.Error(err))
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", contentDisposition(doc.Filename))
	c.Header("X-Report-Rows", strconv.Itoa(doc.Rows))
	if doc.ArchiveKey != "" {
		c.Header("X-Report-Archive-Key", doc.ArchiveKey)
	}
	c.Data(http.StatusOK, doc.ContentType, doc.Data)
}

// contentDisposition sends an ASCII fallback plus the RFC 5987 UTF-8 name.
func contentDisposition(filename string) string {
	fallback := strings.Map(func(r rune) rune {
		if r > 0x7e || r < 0x20 || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, filename)
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, fallback, url.PathEscape(filename))
}

// ---- layouts ----

// GET /api/v1/layouts
func (s *Server) listLayouts(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.ReportCatalog().ListLayouts(c.Request.Context()))
}

// GET /api/v1/layouts/:id
func (s *Server) getLayout(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	l, err := s.lm.ReportCatalog().GetLayout(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// POST /api/v1/layouts
func (s *Server) createLayout(c *gin.Context) {
	var req reports.LayoutInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	l, err := s.lm.ReportCatalog().CreateLayout(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

// PUT /api/v1/layouts/:id
func (s *Server) updateLayout(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req reports.LayoutInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	l, err := s.lm.ReportCatalog().UpdateLayout(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// DELETE /api/v1/layouts/:id
func (s *Server) deleteLayout(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := s.lm.ReportCatalog().DeleteLayout(c.Request.Context(), actorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
