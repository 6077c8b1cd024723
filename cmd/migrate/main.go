package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"

	"github.com/iliyamo/banking-auth/internal/config"
	"github.com/iliyamo/banking-auth/internal/database"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, version, force")
		steps   = flag.Int("steps", 0, "Number of migration steps (for up/down)")
		version = flag.Uint("version", 0, "Target version (for force command)")
	)
	flag.Parse()

	cfg := config.Load()
	db, err := database.Open(cfg.DSNParts())
	if err != nil {
		log.Fatalf("mysql connect: %v", err)
	}
	defer db.Close()

	m, err := database.NewMigrator(db)
	if err != nil {
		log.Fatalf("migrator: %v", err)
	}

	switch *command {
	case "up":
		if err := run(m, true, *steps); err != nil {
			log.Fatalf("migration up failed: %v", err)
		}
		fmt.Println("migrations applied")
	case "down":
		if err := run(m, false, *steps); err != nil {
			log.Fatalf("migration down failed: %v", err)
		}
		fmt.Println("migrations rolled back")
	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return
		}
		if err != nil {
			log.Fatalf("version: %v", err)
		}
		if dirty {
			log.Fatalf("database is dirty at version %d", v)
		}
		fmt.Printf("current migration version: %d\n", v)
	case "force":
		if *version == 0 {
			log.Fatal("force needs -version")
		}
		if err := m.Force(int(*version)); err != nil {
			log.Fatalf("force: %v", err)
		}
		fmt.Printf("forced database to version %d\n", *version)
	default:
		log.Fatalf("unknown command %q (supported: up, down, version, force)", *command)
	}
}

// run applies steps migrations in the given direction, or all of them
// when steps is 0.
func run(m *migrate.Migrate, up bool, steps int) error {
	var err error
	switch {
	case steps > 0 && up:
		err = m.Steps(steps)
	case steps > 0:
		err = m.Steps(-steps)
	case up:
		err = m.Up()
	default:
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
