package players

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/craftmart/craftmart-backend/pkg/db"
	"github.com/craftmart/craftmart-backend/pkg/db/models"
	pkgerrors "github.com/craftmart/craftmart-backend/pkg/errors"
	"gorm.io/gorm"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

// ValidUsername reports whether name is a legal Minecraft username.
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// Repository persists linked in-game identities.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByUsername matches case-insensitively; Minecraft names are not case sensitive.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*models.Player, error) {
	var player models.Player
	err := r.db.WithContext(ctx).
		Where("LOWER(username) = ?", strings.ToLower(strings.TrimSpace(username))).
		First(&player).Error
	if err != nil {
		return nil, err
	}
	return &player, nil
}

// Ensure returns the player row for username, creating it on first sight.
func (r *Repository) Ensure(ctx context.Context, username string) (*models.Player, error) {
	username = strings.TrimSpace(username)
	if !ValidUsername(username) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid minecraft username")
	}

	player, err := r.FindByUsername(ctx, username)
	if err == nil {
		return player, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load player")
	}

	player = &models.Player{Username: username}
	if err := r.db.WithContext(ctx).Create(player).Error; err != nil {
		if db.IsUniqueViolation(err, "players_username_key") {
			return r.FindByUsername(ctx, username)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create player")
	}
	return player, nil
}
