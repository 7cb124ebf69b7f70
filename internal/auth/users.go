package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/KevinKickass/EquipTrack/internal/storage"
	"github.com/KevinKickass/EquipTrack/internal/types"
	"go.uber.org/zap"
)

type UserInput struct {
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	DisplayName string          `json:"display_name"`
	Email       string          `json:"email"`
	Role        string          `json:"role"`
	Active      *bool           `json:"active"`
	Group       *string         `json:"group"`
	Grants      map[string]bool `json:"grants"`
}

// UserUpdate carries optional changes; nil fields are left untouched.
// An empty Group string removes the group.
type UserUpdate struct {
	Password    *string         `json:"password"`
	DisplayName *string         `json:"display_name"`
	Email       *string         `json:"email"`
	Role        *string         `json:"role"`
	Active      *bool           `json:"active"`
	Group       *string         `json:"group"`
	Grants      map[string]bool `json:"grants"`
}

func (a *AuthService) CreateUser(ctx context.Context, in UserInput) (*types.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", types.ErrValidation)
	}
	if in.Password == "" {
		return nil, fmt.Errorf("password is required: %w", types.ErrValidation)
	}
	role, err := types.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	grants, err := types.ParsePermissions(in.Grants)
	if err != nil {
		return nil, err
	}
	hash, err := a.passwordHasher.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := a.now()
	user := &types.User{
		Username:     username,
		PasswordHash: hash,
		DisplayName:  in.DisplayName,
		Email:        in.Email,
		Role:         role,
		Active:       true,
		Group:        normalizeGroup(in.Group),
		Grants:       grants,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Active != nil {
		user.Active = *in.Active
	}
	if user.DisplayName == "" {
		user.DisplayName = username
	}

	err = a.store.Update(func(tx *storage.Tx) error {
		if _, err := tx.User(username); err == nil {
			return fmt.Errorf("user %q already exists: %w", username, types.ErrConflict)
		}
		if err := resolvePermissions(tx, user); err != nil {
			return err
		}
		tx.PutUser(user)
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("user created", zap.String("username", username), zap.String("role", string(role)))
	return user.Clone(), nil
}

// UpdateUser applies upd. Saving a user always recomputes the resolved
// permissions from its grants and the currently selected group.
func (a *AuthService) UpdateUser(ctx context.Context, username string, upd UserUpdate) (*types.User, error) {
	var role types.Role
	if upd.Role != nil {
		r, err := types.ParseRole(*upd.Role)
		if err != nil {
			return nil, err
		}
		role = r
	}
	var grants types.Permissions
	if upd.Grants != nil {
		g, err := types.ParsePermissions(upd.Grants)
		if err != nil {
			return nil, err
		}
		grants = g
	}
	var hash string
	if upd.Password != nil {
		if *upd.Password == "" {
			return nil, fmt.Errorf("password must not be empty: %w", types.ErrValidation)
		}
		h, err := a.passwordHasher.HashPassword(*upd.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		hash = h
	}

	var saved *types.User
	err := a.store.Update(func(tx *storage.Tx) error {
		user, err := tx.User(username)
		if err != nil {
			return err
		}
		if hash != "" {
			user.PasswordHash = hash
		}
		if upd.DisplayName != nil {
			user.DisplayName = *upd.DisplayName
		}
		if upd.Email != nil {
			user.Email = *upd.Email
		}
		if role != "" {
			user.Role = role
		}
		if upd.Active != nil {
			user.Active = *upd.Active
		}
		if upd.Group != nil {
			user.Group = normalizeGroup(upd.Group)
		}
		if grants != nil {
			user.Grants = grants
		}
		if err := resolvePermissions(tx, user); err != nil {
			return err
		}
		user.UpdatedAt = a.now()
		tx.PutUser(user)
		saved = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("user updated", zap.String("username", username))
	return saved, nil
}

func (a *AuthService) SetUserActive(ctx context.Context, username string, active bool) (*types.User, error) {
	return a.UpdateUser(ctx, username, UserUpdate{Active: &active})
}

func (a *AuthService) DeleteUser(ctx context.Context, username string) error {
	err := a.store.Update(func(tx *storage.Tx) error {
		return tx.DeleteUser(username)
	})
	if err != nil {
		return err
	}
	a.logger.Info("user deleted", zap.String("username", username))
	return nil
}

func (a *AuthService) GetUser(ctx context.Context, username string) (*types.User, error) {
	var user *types.User
	err := a.store.View(func(tx *storage.Tx) error {
		u, err := tx.User(username)
		user = u
		return err
	})
	return user, err
}

func (a *AuthService) ListUsers(ctx context.Context) []*types.User {
	var users []*types.User
	_ = a.store.View(func(tx *storage.Tx) error {
		users = tx.ListUsers()
		return nil
	})
	return users
}

// resolvePermissions copies the group's flags into the user. The copy is not
// a live link: later group edits reach the user only when it is saved again.
func resolvePermissions(tx *storage.Tx, u *types.User) error {
	perms := u.Grants.Clone()
	if perms == nil {
		perms = types.Permissions{}
	}
	if u.Group != nil {
		g, err := tx.Group(*u.Group)
		if err != nil {
			return err
		}
		perms = perms.Merge(g.Permissions)
	}
	u.Permissions = perms
	return nil
}

func normalizeGroup(g *string) *string {
	if g == nil {
		return nil
	}
	name := strings.TrimSpace(*g)
	if name == "" {
		return nil
	}
	return &name
}
