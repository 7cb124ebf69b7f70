package rest

import (
	"net/http"
	"time"

	"github.com/KevinKickass/EquipTrack/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int         `json:"expires_in"` // seconds
	User        types.Actor `json:"user"`
}

// POST /api/v1/auth/login
func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	session, err := s.lm.Auth().Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.logger.Info("Login failed", zap.String("username", req.Username), zap.String("ip", c.ClientIP()))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: session.AccessToken,
		TokenType:   session.TokenType,
		ExpiresIn:   int(time.Until(session.ExpiresAt).Seconds()),
		User:        session.Actor,
	})
}

// GET /api/v1/auth/me
func (s *Server) getCurrentUser(c *gin.Context) {
	actor := actorFrom(c)
	user, err := s.lm.Auth().GetUser(c.Request.Context(), actor.Username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
