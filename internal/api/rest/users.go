package rest

import (
	"net/http"

	"github.com/KevinKickass/EquipTrack/internal/auth"
	"github.com/gin-gonic/gin"
)

// User management

// POST /api/v1/users
func (s *Server) createUser(c *gin.Context) {
	var req auth.UserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	u, err := s.lm.Auth().CreateUser(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// GET /api/v1/users
func (s *Server) listUsers(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.Auth().ListUsers(c.Request.Context()))
}

// GET /api/v1/users/:username
func (s *Server) getUser(c *gin.Context) {
	u, err := s.lm.Auth().GetUser(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// PATCH /api/v1/users/:username
func (s *Server) updateUser(c *gin.Context) {
	var req auth.UserUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	u, err := s.lm.Auth().UpdateUser(c.Request.Context(), c.Param("username"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// POST /api/v1/users/:username/toggle
func (s *Server) toggleUser(c *gin.Context) {
	current, err := s.lm.Auth().GetUser(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	u, err := s.lm.Auth().SetUserActive(c.Request.Context(), current.Username, !current.Active)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// DELETE /api/v1/users/:username
func (s *Server) deleteUser(c *gin.Context) {
	if err := s.lm.Auth().DeleteUser(c.Request.Context(), c.Param("username")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Group management

// POST /api/v1/groups
func (s *Server) createGroup(c *gin.Context) {
	var req auth.GroupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	g, err := s.lm.Auth().CreateGroup(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// GET /api/v1/groups
func (s *Server) listGroups(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.Auth().ListGroups(c.Request.Context()))
}

// GET /api/v1/groups/:name
func (s *Server) getGroup(c *gin.Context) {
	g, err := s.lm.Auth().GetGroup(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// PUT /api/v1/groups/:name
func (s *Server) updateGroup(c *gin.Context) {
	var req auth.GroupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	g, err := s.lm.Auth().UpdateGroup(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// DELETE /api/v1/groups/:name
func (s *Server) deleteGroup(c *gin.Context) {
	if err := s.lm.Auth().DeleteGroup(c.Request.Context(), c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
