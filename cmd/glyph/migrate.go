package main

import (
	"fmt"
	"strconv"

	"github.com/banshee-data/glyph.codec/internal/db"
)

func (c *cli) runMigrate(args []string) error {
	fs := newFlagSet("migrate")
	dbPath := fs.String("db", "glyph.db", "Job database path")
	pos, err := parseArgs(fs, args, 1, 2)
	if err != nil {
		return err
	}

	store, err := db.OpenNoMigrate(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	switch action := pos[0]; action {
	case "up":
		if err := store.MigrateUp(); err != nil {
			return err
		}
	case "down":
		if err := store.MigrateDown(); err != nil {
			return err
		}
	case "force":
		if len(pos) != 2 {
			return fmt.Errorf("force needs a version")
		}
		v, err := strconv.Atoi(pos[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", pos[1], err)
		}
		if err := store.MigrateForce(v); err != nil {
			return err
		}
	case "status", "version":
	default:
		return fmt.Errorf("unknown migrate action %q (want up, down, status, version or force)", action)
	}

	st, err := store.Status()
	if err != nil {
		return err
	}
	dirty := ""
	if st.Dirty {
		dirty = " (dirty)"
	}
	fmt.Fprintf(c.out, "schema version %d of %d%s\n", st.Current, st.Latest, dirty)
	return nil
}
