package auth

import (
	"net/http"
	"strings"

	"github.com/KevinKickass/EquipTrack/internal/types"
	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

// AuthMiddleware validates the bearer token and stores the resolved actor in the gin context.
func (a *AuthService) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse("UNAUTHORIZED", "missing authorization header", nil))
			return
		}

		// "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse("UNAUTHORIZED", "invalid authorization header format", nil))
			return
		}

		actor, err := a.ResolveToken(c.Request.Context(), parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse("UNAUTHORIZED", "invalid or expired token", nil))
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireRole lets IT and the listed roles through.
func RequireRole(roles ...types.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := Require(ActorFromContext(c), roles...); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden,
				types.NewErrorResponse("FORBIDDEN", "insufficient role", gin.H{"allowed": roles}))
			return
		}
		c.Next()
	}
}

// RequirePermission checks a capability flag of the actor.
func RequirePermission(required types.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := RequireCapability(ActorFromContext(c), required); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden,
				types.NewErrorResponse("FORBIDDEN", "insufficient permissions", gin.H{"required": required}))
			return
		}
		c.Next()
	}
}

// ActorFromContext returns the actor set by AuthMiddleware, or nil.
func ActorFromContext(c *gin.Context) *types.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil
	}
	actor, _ := v.(*types.Actor)
	return actor
}
