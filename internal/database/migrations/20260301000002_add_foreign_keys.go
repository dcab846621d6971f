package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// foreignKey describes a constraint added after all tables exist.
type foreignKey struct {
	table      string
	name       string
	definition string
}

var foreignKeys = []foreignKey{ //nolint:gochecknoglobals // -
	{"starboards", "fk_starboards_guild", "FOREIGN KEY (guild_id) REFERENCES guilds (guild_id) ON DELETE CASCADE"},
	{"members", "fk_members_guild", "FOREIGN KEY (guild_id) REFERENCES guilds (guild_id) ON DELETE CASCADE"},
	{"members", "fk_members_user", "FOREIGN KEY (user_id) REFERENCES users (user_id) ON DELETE CASCADE"},
	{"overrides", "fk_overrides_starboard", "FOREIGN KEY (starboard_id) REFERENCES starboards (id) ON DELETE CASCADE"},
	{"starboard_messages", "fk_starboard_messages_message", "FOREIGN KEY (message_id) REFERENCES messages (message_id) ON DELETE CASCADE"},
	{"starboard_messages", "fk_starboard_messages_starboard", "FOREIGN KEY (starboard_id) REFERENCES starboards (id) ON DELETE CASCADE"},
	{"votes", "fk_votes_message", "FOREIGN KEY (message_id) REFERENCES messages (message_id) ON DELETE CASCADE"},
	{"votes", "fk_votes_starboard", "FOREIGN KEY (starboard_id) REFERENCES starboards (id) ON DELETE CASCADE"},
	{"filters", "fk_filters_group", "FOREIGN KEY (filter_group_id) REFERENCES filter_groups (id) ON DELETE CASCADE"},
	{"permrole_starboards", "fk_permrole_starboards_permrole", "FOREIGN KEY (permrole_id) REFERENCES permroles (role_id) ON DELETE CASCADE"},
	{"permrole_starboards", "fk_permrole_starboards_starboard", "FOREIGN KEY (starboard_id) REFERENCES starboards (id) ON DELETE CASCADE"},
}

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		for _, fk := range foreignKeys {
			_, err := db.NewRaw(fmt.Sprintf(`
				DO $$ BEGIN
					ALTER TABLE %s ADD CONSTRAINT %s %s;
				EXCEPTION WHEN duplicate_object THEN NULL;
				END $$;
			`, fk.table, fk.name, fk.definition)).Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to add foreign key %s: %w", fk.name, err)
			}
		}

		// Deleting a group detaches its starboards instead of deleting them
		_, err := db.NewRaw(`
			CREATE OR REPLACE FUNCTION detach_exclusive_group() RETURNS trigger AS $$
			BEGIN
				UPDATE starboards SET exclusive_group = NULL WHERE exclusive_group = OLD.id;
				RETURN OLD;
			END;
			$$ LANGUAGE plpgsql;

			DROP TRIGGER IF EXISTS trg_detach_exclusive_group ON exclusive_groups;
			CREATE TRIGGER trg_detach_exclusive_group
				BEFORE DELETE ON exclusive_groups
				FOR EACH ROW EXECUTE FUNCTION detach_exclusive_group();
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create exclusive group trigger: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP TRIGGER IF EXISTS trg_detach_exclusive_group ON exclusive_groups;
			DROP FUNCTION IF EXISTS detach_exclusive_group();
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop exclusive group trigger: %w", err)
		}

		for i := len(foreignKeys) - 1; i >= 0; i-- {
			fk := foreignKeys[i]

			_, err := db.NewRaw(fmt.Sprintf(
				"ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", fk.table, fk.name,
			)).Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop foreign key %s: %w", fk.name, err)
			}
		}

		return nil
	})
}
