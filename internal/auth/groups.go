package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/KevinKickass/EquipTrack/internal/storage"
	"github.com/KevinKickass/EquipTrack/internal/types"
	"go.uber.org/zap"
)

const defaultGroupColor = "#6c757d"

type GroupInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Color       string          `json:"color"`
	Permissions map[string]bool `json:"permissions"`
}

func (in GroupInput) toGroup() (*types.Group, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("group name is required: %w", types.ErrValidation)
	}
	perms, err := types.ParsePermissions(in.Permissions)
	if err != nil {
		return nil, err
	}
	color := in.Color
	if color == "" {
		color = defaultGroupColor
	}
	return &types.Group{Name: name, Description: in.Description, Color: color, Permissions: perms}, nil
}

func (a *AuthService) CreateGroup(ctx context.Context, in GroupInput) (*types.Group, error) {
	group, err := in.toGroup()
	if err != nil {
		return nil, err
	}

	err = a.store.Update(func(tx *storage.Tx) error {
		if _, err := tx.Group(group.Name); err == nil {
			return fmt.Errorf("group %q already exists: %w", group.Name, types.ErrConflict)
		}
		tx.PutGroup(group)
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("group created", zap.String("group", group.Name))
	return group.Clone(), nil
}

// UpdateGroup replaces the group stored under name. A rename moves every user
// of the old name to the new one; their resolved permissions stay as they are.
func (a *AuthService) UpdateGroup(ctx context.Context, name string, in GroupInput) (*types.Group, error) {
	group, err := in.toGroup()
	if err != nil {
		return nil, err
	}

	migrated := 0
	err = a.store.Update(func(tx *storage.Tx) error {
		if _, err := tx.Group(name); err != nil {
			return err
		}
		if group.Name != name {
			if _, err := tx.Group(group.Name); err == nil {
				return fmt.Errorf("group %q already exists: %w", group.Name, types.ErrConflict)
			}
			if err := tx.DeleteGroup(name); err != nil {
				return err
			}
			for _, u := range tx.ListUsers() {
				if u.Group != nil && *u.Group == name {
					newName := group.Name
					u.Group = &newName
					tx.PutUser(u)
					migrated++
				}
			}
		}
		tx.PutGroup(group)
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("group updated",
		zap.String("group", name),
		zap.String("new_name", group.Name),
		zap.Int("migrated_users", migrated),
	)
	return group.Clone(), nil
}

// DeleteGroup fails with ErrConflict while any user still references the group.
func (a *AuthService) DeleteGroup(ctx context.Context, name string) error {
	err := a.store.Update(func(tx *storage.Tx) error {
		if _, err := tx.Group(name); err != nil {
			return err
		}
		for _, u := range tx.ListUsers() {
			if u.Group != nil && *u.Group == name {
				return fmt.Errorf("group %q is used by %q: %w", name, u.Username, types.ErrConflict)
			}
		}
		return tx.DeleteGroup(name)
	})
	if err != nil {
		return err
	}
	a.logger.Info("group deleted", zap.String("group", name))
	return nil
}

func (a *AuthService) GetGroup(ctx context.Context, name string) (*types.Group, error) {
	var group *types.Group
	err := a.store.View(func(tx *storage.Tx) error {
		g, err := tx.Group(name)
		group = g
		return err
	})
	return group, err
}

func (a *AuthService) ListGroups(ctx context.Context) []*types.Group {
	var groups []*types.Group
	_ = a.store.View(func(tx *storage.Tx) error {
		groups = tx.ListGroups()
		return nil
	})
	return groups
}
