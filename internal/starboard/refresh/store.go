package refresh

import (
	"github.com/robalyx/starboard/internal/database"
	"github.com/robalyx/starboard/internal/database/models"
)

// dbStore serves Store from the database models.
type dbStore struct {
	*models.MessageModel
	*models.VoteModel
	*models.StarboardModel
	*models.RoleModel
	*models.FilterModel
}

// NewStore adapts the database client to Store.
func NewStore(db database.Client) Store {
	repo := db.Model()

	return &dbStore{
		MessageModel:   repo.Message(),
		VoteModel:      repo.Vote(),
		StarboardModel: repo.Starboard(),
		RoleModel:      repo.Role(),
		FilterModel:    repo.Filter(),
	}
}
