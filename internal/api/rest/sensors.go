package rest

import (
	"net/http"

	"github.com/KevinKickass/EquipTrack/internal/sensors"
	"github.com/gin-gonic/gin"
)

// GET /api/v1/sensors
func (s *Server) listSensors(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.Sensors().List(c.Request.Context()))
}

// GET /api/v1/sensors/:id
func (s *Server) getSensor(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	sensor, err := s.lm.Sensors().Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sensor)
}

// POST /api/v1/sensors
func (s *Server) createSensor(c *gin.Context) {
	var req sensors.Input
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	sensor, err := s.lm.Sensors().Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sensor)
}

// PATCH /api/v1/sensors/:id
func (s *Server) updateSensor(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req sensors.Input
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	sensor, err := s.lm.Sensors().Update(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sensor)
}

// DELETE /api/v1/sensors/:id
func (s *Server) deleteSensor(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := s.lm.Sensors().Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/v1/sensors/:id/test
func (s *Server) testSensor(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	result, err := s.lm.Sensors().TestCommunication(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
