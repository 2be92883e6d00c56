package main

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"marketstall/internal/config"
	"marketstall/internal/database"
	"marketstall/internal/domain/announcement"
	"marketstall/internal/domain/auth"
	"marketstall/internal/pkg/logger"
	"marketstall/internal/server"
)

func main() {
	app := &cli.App{
		Name:  "seed",
		Usage: "bootstrap accounts and demo content",
		Commands: []*cli.Command{
			{
				Name:  "admin",
				Usage: "create an admin account or promote an existing one",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true, EnvVars: []string{"SEED_ADMIN_EMAIL"}},
					&cli.StringFlag{Name: "password", EnvVars: []string{"SEED_ADMIN_PASSWORD"}},
					&cli.StringFlag{Name: "name", Value: "Market admin"},
				},
				Action: seedAdmin,
			},
			{
				Name:  "demo",
				Usage: "create demo customers and a welcome announcement",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "customers", Value: 3},
					&cli.StringFlag{Name: "password", Value: "customer123"},
				},
				Action: seedDemo,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("seed failed")
	}
}

func services() (*auth.Service, *announcement.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger.Setup(cfg.IsProduction(), cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	if err := database.Migrate(db, server.Migrations...); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	// Seeding never issues tokens.
	return auth.NewService(auth.NewUserRepository(db), nil), announcement.NewService(announcement.NewRepository(db)), nil
}

func seedAdmin(c *cli.Context) error {
	users, _, err := services()
	if err != nil {
		return err
	}

	user, created, err := users.EnsureAdmin(c.Context, auth.RegisterRequest{
		Name:     c.String("name"),
		Email:    c.String("email"),
		Password: c.String("password"),
	})
	if errors.Is(err, auth.ErrWeakPassword) {
		return fmt.Errorf("--password of 6+ characters is required for a new account")
	}
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{"user_id": user.ID, "email": user.Email, "created": created}).Info("admin ready")
	return nil
}

func seedDemo(c *cli.Context) error {
	users, announcements, err := services()
	if err != nil {
		return err
	}

	for i := 1; i <= c.Int("customers"); i++ {
		email := fmt.Sprintf("customer%d@market.local", i)
		_, err := users.Register(c.Context, auth.RegisterRequest{
			Name:     fmt.Sprintf("Customer %d", i),
			Email:    email,
			Phone:    fmt.Sprintf("08%08d", i),
			Password: c.String("password"),
		})
		switch {
		case err == nil:
			log.WithField("email", email).Info("customer created")
		case errors.Is(err, auth.ErrEmailAlreadyExists):
			log.WithField("email", email).Info("customer exists, skipped")
		default:
			return err
		}
	}

	if _, err := announcements.Create(c.Context, 0, announcement.CreateRequest{
		Title:   "Welcome to the weekend market",
		Content: "Saturday opens zones A and B. Sunday opens every zone.",
	}); err != nil {
		return err
	}
	log.Info("demo content ready")
	return nil
}
