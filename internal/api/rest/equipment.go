package rest

import (
	"net/http"

	"github.com/KevinKickass/EquipTrack/internal/equipment"
	"github.com/KevinKickass/EquipTrack/internal/machine"
	"github.com/KevinKickass/EquipTrack/internal/types"
	"github.com/gin-gonic/gin"
)

// equipmentView adds presentation hints for the calling actor.
type equipmentView struct {
	*types.Equipment
	StatusColor string            `json:"status_color"`
	Actions     []machine.Command `json:"available_actions"`
	Locked      bool              `json:"locked"`
}

func newEquipmentView(e *types.Equipment, actor *types.Actor) equipmentView {
	locked := e.Status == types.StatusAwaitingQuality &&
		actor.Role != types.RoleQuality && actor.Role != types.RoleIT
	v := equipmentView{
		Equipment:   e,
		StatusColor: e.Status.Color(),
		Actions:     []machine.Command{},
		Locked:      locked,
	}
	if !locked {
		if actions := machine.AvailableCommands(e.Status, actor.Role); actions != nil {
			v.Actions = actions
		}
	}
	return v
}

// GET /api/v1/equipment
func (s *Server) listEquipment(c *gin.Context) {
	actor := actorFrom(c)
	list := s.lm.Equipment().List(c.Request.Context())
	out := make([]equipmentView, 0, len(list))
	for _, e := range list {
		out = append(out, newEquipmentView(e, actor))
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/v1/equipment/:id
func (s *Server) getEquipment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	actor := actorFrom(c)
	e, err := s.lm.MachineController().View(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newEquipmentView(e, actor))
}

// POST /api/v1/equipment
func (s *Server) createEquipment(c *gin.Context) {
	var req equipment.CreateInput
	if !bindBody(c, &req) {
		return
	}
	e, err := s.lm.Equipment().Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

// PATCH /api/v1/equipment/:id
func (s *Server) updateEquipment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req equipment.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	e, err := s.lm.Equipment().Update(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// POST /api/v1/equipment/:id/toggle flips the active flag.
func (s *Server) toggleEquipment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	current, err := s.lm.Equipment().Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	e, err := s.lm.Equipment().SetActive(c.Request.Context(), actorFrom(c), id, !current.Active)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// DELETE /api/v1/equipment/:id
func (s *Server) deleteEquipment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := s.lm.Equipment().Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type actionRequest struct {
	Action string `json:"action" form:"action"`
	Acao   string `json:"acao" form:"acao"`
	machine.Params
}

// POST /api/v1/equipment/:id/actions
//
// Accepts JSON or form bodies. The command is named by "action" or "acao".
func (s *Server) executeAction(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req actionRequest
	if !bindBody(c, &req) {
		return
	}

	name := req.Action
	if name == "" {
		name = req.Acao
	}
	cmd, err := machine.ParseCommand(name)
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := s.lm.MachineController().ExecuteCommand(c.Request.Context(), actorFrom(c), id, cmd, req.Params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// bindBody binds JSON or form encoded bodies and rejects anything else with 415.
func bindBody(c *gin.Context, obj any) bool {
	switch c.ContentType() {
	case gin.MIMEJSON, gin.MIMEPOSTForm, gin.MIMEMultipartPOSTForm:
	default:
		c.JSON(http.StatusUnsupportedMediaType,
			types.NewErrorResponse("UNSUPPORTED_MEDIA_TYPE", "use application/json or form encoding", c.ContentType()))
		return false
	}
	if err := c.ShouldBind(obj); err != nil {
		badRequest(c, "Invalid request body", err)
		return false
	}
	return true
}
