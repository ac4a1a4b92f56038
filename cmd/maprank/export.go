package main

import (
	"bytes"
	"fmt"
	"os"

	rankingservice "github.com/Black-And-White-Club/maprank/app/modules/ranking/application"
	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	rankingexport "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/export"
	"github.com/Black-And-White-Club/maprank/app/observability"
	"github.com/Black-And-White-Club/maprank/config"
	"github.com/Black-And-White-Club/maprank/db/bundb"
	"github.com/urfave/cli/v2"
)

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "write the current standings to a file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Value: "xlsx", Usage: "xlsx or png"},
			&cli.StringFlag{Name: "out", Required: true, Usage: "output file"},
			&cli.IntFlag{Name: "top", Value: rankingexport.DefaultChartTop, Usage: "players shown in the png chart"},
		},
		Action: func(c *cli.Context) error {
			format := c.String("format")
			if format != "xlsx" && format != "png" {
				return fmt.Errorf("unknown export format %q", format)
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != config.StorageDriverPostgres {
				return fmt.Errorf("export reads stored scores and needs the postgres driver")
			}
			dbService, err := bundb.NewBunDBService(c.Context, cfg.Postgres)
			if err != nil {
				return err
			}
			defer dbService.Close()

			obs := observability.NewNoop()
			service := rankingservice.NewRankingService(dbService.RankingDB, obs.Logger, obs.Metrics, obs.Tracer, dbService.GetDB(), nil, rankingservice.Options{
				Points: rankingdomain.PointsConfig{MinValue: cfg.Scoring.MinValue, Multiplier: cfg.Scoring.Multiplier},
			})
			if err := service.Start(c.Context); err != nil {
				return err
			}

			var buf bytes.Buffer
			switch format {
			case "xlsx":
				st, err := rankingexport.Collect(c.Context, service)
				if err != nil {
					return err
				}
				if err := rankingexport.WriteXLSX(&buf, st); err != nil {
					return err
				}
			case "png":
				global, err := service.GetGlobalLeaderboard(c.Context)
				if err != nil {
					return err
				}
				img, err := rankingexport.RenderChart(global, c.Int("top"), rankingexport.DefaultPalette)
				if err != nil {
					return err
				}
				buf.Write(img)
			}

			if err := os.WriteFile(c.String("out"), buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", c.String("out"), err)
			}
			fmt.Printf("Wrote %s (%d bytes)\n", c.String("out"), buf.Len())
			return nil
		},
	}
}
