package database

import (
	"github.com/robalyx/starboard/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	guild     *models.GuildModel
	starboard *models.StarboardModel
	message   *models.MessageModel
	vote      *models.VoteModel
	filter    *models.FilterModel
	autostar  *models.AutostarModel
	role      *models.RoleModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		guild:     models.NewGuild(db, logger),
		starboard: models.NewStarboard(db, logger),
		message:   models.NewMessage(db, logger),
		vote:      models.NewVote(db, logger),
		filter:    models.NewFilter(db, logger),
		autostar:  models.NewAutostar(db, logger),
		role:      models.NewRole(db, logger),
	}
}

// Guild returns the guild, user and member model repository.
func (r *Repository) Guild() *models.GuildModel {
	return r.guild
}

// Starboard returns the starboard, override and exclusive group model repository.
func (r *Repository) Starboard() *models.StarboardModel {
	return r.starboard
}

// Message returns the original message and starboard post model repository.
func (r *Repository) Message() *models.MessageModel {
	return r.message
}

// Vote returns the vote model repository.
func (r *Repository) Vote() *models.VoteModel {
	return r.vote
}

// Filter returns the filter model repository.
func (r *Repository) Filter() *models.FilterModel {
	return r.filter
}

// Autostar returns the autostar channel model repository.
func (r *Repository) Autostar() *models.AutostarModel {
	return r.autostar
}

// Role returns the XP, position and permission role model repository.
func (r *Repository) Role() *models.RoleModel {
	return r.role
}
