package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/KevinKickass/EquipTrack/internal/auth"
	"github.com/KevinKickass/EquipTrack/internal/types"
	"github.com/gin-gonic/gin"
)

// respondError maps the error taxonomy onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, types.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, types.ErrForbidden):
		status, code = http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, types.ErrInvalidTransition):
		status, code = http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, types.ErrConflict):
		status, code = http.StatusConflict, "CONFLICT"
	case errors.Is(err, types.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, types.ErrUnsupportedFormat):
		status, code = http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT"
	case errors.Is(err, types.ErrNoData):
		status, code = http.StatusUnprocessableEntity, "NO_DATA"
	case errors.Is(err, types.ErrValidation):
		status, code = http.StatusBadRequest, "VALIDATION"
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, types.NewErrorResponse(code, "internal error", nil))
		return
	}
	c.JSON(status, types.NewErrorResponse(code, err.Error(), nil))
}

func badRequest(c *gin.Context, message string, err error) {
	var details any
	if err != nil {
		details = err.Error()
	}
	c.JSON(http.StatusBadRequest, types.NewErrorResponse("BAD_REQUEST", message, details))
}

func actorFrom(c *gin.Context) *types.Actor {
	return auth.ActorFromContext(c)
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name, err)
		return 0, false
	}
	return id, true
}
