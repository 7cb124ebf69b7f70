package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KevinKickass/EquipTrack/internal/config"
	"github.com/KevinKickass/EquipTrack/internal/storage"
	"github.com/KevinKickass/EquipTrack/internal/types"
	"go.uber.org/zap"
)

// Session is returned by a successful login.
type Session struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	Actor       types.Actor `json:"actor"`
}

type AuthService struct {
	store          *storage.MemoryStore
	jwtHandler     *JWTHandler
	passwordHasher *PasswordHasher
	logger         *zap.Logger
	now            func() time.Time
}

func NewAuthService(store *storage.MemoryStore, cfg config.AuthConfig, logger *zap.Logger) *AuthService {
	return &AuthService{
		store:          store,
		jwtHandler:     NewJWTHandler(cfg.GetJWTSecret(), cfg.AccessTokenTTL),
		passwordHasher: NewPasswordHasherWithParams(cfg.Argon2MemoryKiB, cfg.Argon2Time),
		logger:         logger,
		now:            time.Now,
	}
}

// Authenticate checks the credentials and issues an access token. Unknown
// users, wrong passwords and inactive accounts all yield ErrUnauthorized.
func (a *AuthService) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	var user *types.User
	err := a.store.View(func(tx *storage.Tx) error {
		u, err := tx.User(username)
		user = u
		return err
	})
	if err != nil {
		a.logger.Info("login failed", zap.String("username", username), zap.String("reason", "unknown user"))
		return nil, fmt.Errorf("invalid credentials: %w", types.ErrUnauthorized)
	}

	valid, err := a.passwordHasher.VerifyPassword(password, user.PasswordHash)
	if err != nil || !valid {
		a.logger.Info("login failed", zap.String("username", username), zap.String("reason", "wrong password"))
		return nil, fmt.Errorf("invalid credentials: %w", types.ErrUnauthorized)
	}

	if !user.Active {
		a.logger.Info("login failed", zap.String("username", username), zap.String("reason", "inactive"))
		return nil, fmt.Errorf("account inactive: %w", types.ErrUnauthorized)
	}

	token, expiresAt, err := a.jwtHandler.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}

	a.logger.Info("login succeeded", zap.String("username", username), zap.String("role", string(user.Role)))
	return &Session{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		Actor:       actorFromUser(user),
	}, nil
}

// ResolveToken validates an access token and loads the actor from the store,
// so role changes and deactivation take effect on the next request.
func (a *AuthService) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	claims, err := a.jwtHandler.ValidateAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, types.ErrUnauthorized)
	}

	var user *types.User
	err = a.store.View(func(tx *storage.Tx) error {
		u, err := tx.User(claims.Username)
		user = u
		return err
	})
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("user %q no longer exists: %w", claims.Username, types.ErrUnauthorized)
		}
		return nil, err
	}
	if !user.Active {
		return nil, fmt.Errorf("account inactive: %w", types.ErrUnauthorized)
	}

	actor := actorFromUser(user)
	return &actor, nil
}

// Require passes if the actor is IT or holds one of roles.
func Require(actor *types.Actor, roles ...types.Role) error {
	if actor == nil {
		return fmt.Errorf("no actor: %w", types.ErrUnauthorized)
	}
	if actor.Role == types.RoleIT {
		return nil
	}
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return fmt.Errorf("role %q not allowed: %w", actor.Role, types.ErrForbidden)
}

// RequireCapability checks the resolved permission flags. IT always passes.
func RequireCapability(actor *types.Actor, c types.Capability) error {
	if actor == nil {
		return fmt.Errorf("no actor: %w", types.ErrUnauthorized)
	}
	if actor.Role == types.RoleIT || actor.Permissions.Has(c) {
		return nil
	}
	return fmt.Errorf("missing capability %q: %w", c, types.ErrForbidden)
}

func actorFromUser(u *types.User) types.Actor {
	return types.Actor{
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		Permissions: u.Permissions.Clone(),
	}
}
