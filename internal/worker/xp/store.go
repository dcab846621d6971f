package xp

import (
	"github.com/robalyx/starboard/internal/database"
	"github.com/robalyx/starboard/internal/database/models"
)

// dbStore serves Store from the database models.
type dbStore struct {
	*models.GuildModel
	*models.VoteModel
	*models.RoleModel
}

// NewStore adapts the database client to Store.
func NewStore(db database.Client) Store {
	repo := db.Model()

	return &dbStore{
		GuildModel: repo.Guild(),
		VoteModel:  repo.Vote(),
		RoleModel:  repo.Role(),
	}
}
