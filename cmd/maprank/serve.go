package main

import (
	"fmt"

	"github.com/Black-And-White-Club/maprank/app"
	"github.com/Black-And-White-Club/maprank/config"
	"github.com/urfave/cli/v2"
)

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the ranking engine, the game bridge and the read API",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "migrate", Usage: "apply pending migrations before starting"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			application, err := app.NewApp(c.Context, cfg, app.Options{Migrate: c.Bool("migrate")})
			if err != nil {
				return fmt.Errorf("failed to initialize app: %w", err)
			}
			runErr := application.Run(c.Context)
			closeErr := application.Close()
			if runErr != nil {
				return runErr
			}
			return closeErr
		},
	}
}
