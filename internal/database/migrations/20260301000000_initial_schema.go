package migrations

import (
	"context"
	"fmt"

	"github.com/robalyx/starboard/internal/database/types"
	"github.com/uptrace/bun"
)

// schemaModels lists every table in creation order. Tables are dropped in reverse.
var schemaModels = []any{ //nolint:gochecknoglobals // -
	(*types.Guild)(nil),
	(*types.User)(nil),
	(*types.Member)(nil),
	(*types.ExclusiveGroup)(nil),
	(*types.Starboard)(nil),
	(*types.Override)(nil),
	(*types.Message)(nil),
	(*types.StarboardMessage)(nil),
	(*types.Vote)(nil),
	(*types.FilterGroup)(nil),
	(*types.Filter)(nil),
	(*types.AutostarChannel)(nil),
	(*types.XPRole)(nil),
	(*types.PosRole)(nil),
	(*types.PermRole)(nil),
	(*types.PermRoleStarboard)(nil),
}

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		for _, model := range schemaModels {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table %T: %w", model, err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		for i := len(schemaModels) - 1; i >= 0; i-- {
			model := schemaModels[i]

			_, err := db.NewDropTable().
				Model(model).
				IfExists().
				Cascade().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table %T: %w", model, err)
			}
		}

		return nil
	})
}
