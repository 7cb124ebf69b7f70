package machine

import (
	"fmt"

	"github.com/KevinKickass/EquipTrack/internal/types"
)

type Command string

const (
	CommandStartProcess       Command = "start_process"
	CommandFinishProcess      Command = "finish_process"
	CommandStartMaintenance   Command = "start_maintenance"
	CommandFinishMaintenance  Command = "finish_maintenance"
	CommandStartCleaning      Command = "start_cleaning"
	CommandFinishCleaning     Command = "finish_cleaning"
	CommandQualityDisposition Command = "quality_disposition"
)

// Form values used by the operator screens.
var commandAliases = map[string]Command{
	"iniciar":   CommandStartProcess,
	"finalizar": CommandFinishProcess,
}

func ParseCommand(s string) (Command, error) {
	if c, ok := commandAliases[s]; ok {
		return c, nil
	}
	c := Command(s)
	if _, ok := transitions[c]; !ok {
		return "", fmt.Errorf("unknown action %q: %w", s, types.ErrValidation)
	}
	return c, nil
}

type transition struct {
	from  types.EquipmentStatus
	to    types.EquipmentStatus
	roles []types.Role
}

// Every command is valid from exactly one state. IT passes every role check.
var transitions = map[Command]transition{
	CommandStartProcess:       {from: types.StatusFree, to: types.StatusInUse, roles: []types.Role{types.RoleOperator}},
	CommandFinishProcess:      {from: types.StatusInUse, to: types.StatusAwaitingQuality, roles: []types.Role{types.RoleOperator}},
	CommandStartMaintenance:   {from: types.StatusFree, to: types.StatusMaintenance, roles: []types.Role{types.RoleMaintenance}},
	CommandFinishMaintenance:  {from: types.StatusMaintenance, to: types.StatusFree, roles: []types.Role{types.RoleMaintenance}},
	CommandStartCleaning:      {from: types.StatusFree, to: types.StatusCleaning, roles: []types.Role{types.RoleCleaning}},
	CommandFinishCleaning:     {from: types.StatusCleaning, to: types.StatusAwaitingQuality, roles: []types.Role{types.RoleCleaning}},
	CommandQualityDisposition: {from: types.StatusAwaitingQuality, to: types.StatusFree, roles: []types.Role{types.RoleQuality}},
}

// ValidateTransition returns the target state of cmd from the given state.
func ValidateTransition(from types.EquipmentStatus, cmd Command) (types.EquipmentStatus, error) {
	t, ok := transitions[cmd]
	if !ok {
		return "", fmt.Errorf("unknown action %q: %w", cmd, types.ErrValidation)
	}
	if t.from != from {
		return "", fmt.Errorf("cannot %s while %s (requires %s): %w", cmd, from, t.from, types.ErrInvalidTransition)
	}
	return t.to, nil
}

// AllowedRoles lists the roles (besides IT) that may issue cmd.
func AllowedRoles(cmd Command) []types.Role {
	return append([]types.Role(nil), transitions[cmd].roles...)
}

// AvailableCommands lists the commands valid from status for the given role,
// in a stable order, for presentation.
func AvailableCommands(status types.EquipmentStatus, role types.Role) []Command {
	order := []Command{
		CommandStartProcess, CommandFinishProcess,
		CommandStartMaintenance, CommandFinishMaintenance,
		CommandStartCleaning, CommandFinishCleaning,
		CommandQualityDisposition,
	}
	var out []Command
	for _, c := range order {
		t := transitions[c]
		if t.from != status {
			continue
		}
		if role == types.RoleIT || hasRole(t.roles, role) {
			out = append(out, c)
		}
	}
	return out
}

func hasRole(roles []types.Role, r types.Role) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}
