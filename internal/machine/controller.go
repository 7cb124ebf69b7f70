// Package machine is the equipment lifecycle engine: it validates role-gated
// transitions, mutates equipment state and feeds the process history.
package machine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/KevinKickass/EquipTrack/internal/api/websocket"
	"github.com/KevinKickass/EquipTrack/internal/auth"
	"github.com/KevinKickass/EquipTrack/internal/history"
	"github.com/KevinKickass/EquipTrack/internal/storage"
	"github.com/KevinKickass/EquipTrack/internal/types"
	"go.uber.org/zap"
)

type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

// Params carries the fields submitted with a command. Only the fields of the
// issued command are read.
type Params struct {
	Product       string `json:"product" form:"produto"`
	WorkOrder     string `json:"work_order" form:"ordem_producao"`
	Duration      string `json:"duration" form:"duracao"`
	LoadedAt      string `json:"loaded_at" form:"carregado_as"`
	Responsible   string `json:"responsible" form:"responsavel"`
	Reason        string `json:"reason" form:"motivo"`
	PlannedReturn string `json:"planned_return" form:"previsao_retorno"`
	RecordID      int64  `json:"record_id" form:"registro_id"`
	Verdict       string `json:"verdict" form:"resultado"`
}

// Result is the outcome of a successful command.
type Result struct {
	Equipment *types.Equipment      `json:"equipment"`
	Previous  types.EquipmentStatus `json:"previous_state"`
	Record    *types.ProcessRecord  `json:"record,omitempty"`
}

type Controller struct {
	store   *storage.MemoryStore
	history *history.Store
	wsHub   Broadcaster
	logger  *zap.Logger
	now     func() time.Time

	locks keyedMutex
}

func NewController(store *storage.MemoryStore, hist *history.Store, wsHub Broadcaster, logger *zap.Logger) *Controller {
	return &Controller{
		store:   store,
		history: hist,
		wsHub:   wsHub,
		logger:  logger,
		now:     time.Now,
	}
}

// ExecuteCommand runs cmd against one equipment. Checks happen in this order:
// unknown equipment, quality lock, role, transition validity, command payload.
// Nothing is changed when any check fails.
func (c *Controller) ExecuteCommand(ctx context.Context, actor *types.Actor, equipmentID int64, cmd Command, p Params) (*Result, error) {
	if actor == nil {
		return nil, fmt.Errorf("no actor: %w", types.ErrUnauthorized)
	}

	unlock := c.locks.Lock(equipmentID)
	defer unlock()

	var res Result
	err := c.store.Update(func(tx *storage.Tx) error {
		e, err := tx.Equipment(equipmentID)
		if err != nil {
			return err
		}
		if err := checkQualityLock(actor, e); err != nil {
			return err
		}
		if err := auth.Require(actor, AllowedRoles(cmd)...); err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
		to, err := ValidateTransition(e.Status, cmd)
		if err != nil {
			return err
		}

		res.Previous = e.Status
		now := c.now()
		record, err := c.apply(tx, actor, e, cmd, p, now)
		if err != nil {
			return err
		}

		e.Status = to
		e.UpdatedAt = now
		if err := e.CheckOccupancy(); err != nil {
			return err
		}
		tx.PutEquipment(e)

		res.Equipment = e
		res.Record = record
		return nil
	})
	if err != nil {
		c.logger.Info("Equipment command rejected",
			zap.Int64("equipment_id", equipmentID),
			zap.String("command", string(cmd)),
			zap.String("actor", actor.Username),
			zap.Error(err))
		return nil, err
	}

	c.logger.Info("Equipment state changed",
		zap.Int64("equipment_id", equipmentID),
		zap.String("command", string(cmd)),
		zap.String("previous_state", string(res.Previous)),
		zap.String("state", string(res.Equipment.Status)),
		zap.String("actor", actor.Username))

	c.broadcast(websocket.NewEquipmentStateMessage(res.Equipment, res.Previous, string(cmd), actor.Username))
	if res.Record != nil {
		if cmd == CommandQualityDisposition {
			c.broadcast(websocket.NewQualityDisposedMessage(res.Record))
		} else {
			c.broadcast(websocket.NewProcessFinalizedMessage(res.Record))
		}
	}
	return &res, nil
}

// Dispose closes a pending record with a verdict and frees its equipment.
func (c *Controller) Dispose(ctx context.Context, actor *types.Actor, recordID int64, verdict string) (*Result, error) {
	r, err := c.history.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return c.ExecuteCommand(ctx, actor, r.EquipmentID, CommandQualityDisposition, Params{
		RecordID: recordID,
		Verdict:  verdict,
	})
}

// View returns one equipment, honouring the quality lock.
func (c *Controller) View(ctx context.Context, actor *types.Actor, equipmentID int64) (*types.Equipment, error) {
	var e *types.Equipment
	err := c.store.View(func(tx *storage.Tx) error {
		var err error
		e, err = tx.Equipment(equipmentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := checkQualityLock(actor, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (c *Controller) apply(tx *storage.Tx, actor *types.Actor, e *types.Equipment, cmd Command, p Params, now time.Time) (*types.ProcessRecord, error) {
	responsible := strings.TrimSpace(p.Responsible)
	if responsible == "" {
		responsible = actorName(actor)
	}

	switch cmd {
	case CommandStartProcess:
		if strings.TrimSpace(p.Product) == "" {
			return nil, fmt.Errorf("product is required: %w", types.ErrValidation)
		}
		e.Process = &types.ProcessInfo{
			Product:     strings.TrimSpace(p.Product),
			WorkOrder:   strings.TrimSpace(p.WorkOrder),
			Duration:    p.Duration,
			LoadedAt:    p.LoadedAt,
			Responsible: responsible,
			StartedOn:   now.Format("2006-01-02"),
		}

	case CommandFinishProcess:
		proc := e.Process
		e.Process = nil
		return c.history.Append(tx, &types.ProcessRecord{
			EquipmentID:   e.ID,
			EquipmentName: e.Name,
			Kind:          types.RecordProcess,
			Product:       proc.Product,
			WorkOrder:     proc.WorkOrder,
			Responsible:   proc.Responsible,
			FinalizedAt:   now,
		}), nil

	case CommandStartMaintenance:
		if strings.TrimSpace(p.Reason) == "" {
			return nil, fmt.Errorf("reason is required: %w", types.ErrValidation)
		}
		e.Maintenance = &types.MaintenanceInfo{
			Reason:        strings.TrimSpace(p.Reason),
			PlannedReturn: p.PlannedReturn,
			Responsible:   responsible,
			StartedAt:     now,
		}

	case CommandFinishMaintenance:
		e.Maintenance = nil

	case CommandStartCleaning:
		e.Cleaning = &types.CleaningInfo{
			PlannedReturn: p.PlannedReturn,
			Responsible:   responsible,
			StartedAt:     now,
		}

	case CommandFinishCleaning:
		cl := e.Cleaning
		e.Cleaning = nil
		return c.history.Append(tx, &types.ProcessRecord{
			EquipmentID:   e.ID,
			EquipmentName: e.Name,
			Kind:          types.RecordCleaning,
			Product:       types.CleaningProduct,
			Responsible:   cl.Responsible,
			FinalizedAt:   now,
		}), nil

	case CommandQualityDisposition:
		recordID := p.RecordID
		if recordID == 0 {
			pending, ok := c.history.PendingFor(tx, e.ID)
			if !ok {
				return nil, fmt.Errorf("no pending record for equipment %d: %w", e.ID, types.ErrNotFound)
			}
			recordID = pending.ID
		}
		if _, err := tx.Record(recordID); err != nil {
			return nil, err
		}
		verdict, err := types.ParseVerdict(p.Verdict)
		if err != nil {
			return nil, err
		}
		return c.history.Dispose(tx, recordID, e.ID, verdict, actorName(actor), now)
	}
	return nil, nil
}

func (c *Controller) broadcast(msg websocket.Message) {
	if c.wsHub != nil {
		c.wsHub.Broadcast(msg)
	}
}

// checkQualityLock hides equipment awaiting quality from everyone but quality and IT.
func checkQualityLock(actor *types.Actor, e *types.Equipment) error {
	if e.Status != types.StatusAwaitingQuality {
		return nil
	}
	if actor != nil && (actor.Role == types.RoleQuality || actor.Role == types.RoleIT) {
		return nil
	}
	return fmt.Errorf("equipment %d is awaiting quality disposition: %w", e.ID, types.ErrForbidden)
}

func actorName(a *types.Actor) string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}

// keyedMutex serialises commands per equipment id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(id int64) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[int64]*keyLock)
	}
	l, ok := k.locks[id]
	if !ok {
		l = &keyLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
