package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"marketstall/internal/config"
	"marketstall/internal/database"
	"marketstall/internal/domain/reservation"
	"marketstall/internal/pkg/logger"
)

// reaper removes expired holds and queue entries once; meant for cron.
func main() {
	app := &cli.App{
		Name:  "reaper",
		Usage: "delete expired stall holds and queue entries",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "database DSN, overrides DATABASE_URL",
				EnvVars: []string{"REAPER_DATABASE_URL"},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("reaper failed")
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Setup(cfg.IsProduction(), cfg.LogLevel)

	dsn := cfg.DatabaseURL
	if v := c.String("database-url"); v != "" {
		dsn = v
	}

	db, err := database.Connect(dsn)
	if err != nil {
		return err
	}
	if err := database.Migrate(db, reservation.Migrate); err != nil {
		return err
	}

	holds, entries, err := reservation.NewCleanupService(reservation.NewRepository(db)).RunOnce(c.Context)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{"holds": holds, "queue_entries": entries}).Info("reservation cleanup completed")
	return nil
}
