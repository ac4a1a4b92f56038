package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/user"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	rankingevents "github.com/Black-And-White-Club/maprank/app/modules/ranking/events"
	"github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/gamebridge"
	rankingqueue "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/queue"
	"github.com/Black-And-White-Club/maprank/app/observability"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

func resyncCommand() *cli.Command {
	return &cli.Command{
		Name:  "resync",
		Usage: "ask the running engine to recompute a map (or every map) from stored scores",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "map", Usage: "map id; empty resyncs the active map, or every map when none is active"},
			&cli.StringFlag{Name: "requested-by", Usage: "operator name recorded with the request"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			mapID := c.String("map")
			requestedBy := c.String("requested-by")
			if requestedBy == "" {
				if u, err := user.Current(); err == nil {
					requestedBy = u.Username
				}
			}

			switch {
			case cfg.Queue.Enabled:
				return enqueueResync(c, cfg.Postgres.DSN, mapID, requestedBy)
			case cfg.NATS.URL != "":
				return publishResync(c, cfg.NATS.URL, cfg.NATS.SubjectPrefix, mapID, requestedBy)
			default:
				return errors.New("resync needs the job queue or NATS to reach the running engine")
			}
		},
	}
}

func enqueueResync(c *cli.Context, dsn, mapID, requestedBy string) error {
	obs := observability.NewNoop()
	q, err := rankingqueue.NewInsertOnly(c.Context, dsn, obs.Logger, obs.Metrics)
	if err != nil {
		return err
	}
	defer q.Close()

	res, err := q.EnqueueResync(c.Context, mapID, requestedBy)
	if err != nil {
		return err
	}
	if res.UniqueSkippedAsDuplicate {
		fmt.Printf("Resync of %q already pending as job %d\n", mapID, res.Job.ID)
		return nil
	}
	fmt.Printf("Resync of %q queued as job %d\n", mapID, res.Job.ID)
	return nil
}

func publishResync(c *cli.Context, url, prefix, mapID, requestedBy string) error {
	nc, err := nats.Connect(url, nats.Name("maprank-cli"))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("initialize JetStream: %w", err)
	}
	body, err := json.Marshal(rankingevents.ResyncRequestedPayloadV1{MapID: rankingdomain.MapID(mapID), RequestedBy: requestedBy})
	if err != nil {
		return err
	}
	subject := prefix + "." + gamebridge.SubjectResync
	ack, err := js.Publish(c.Context, subject, body)
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	fmt.Printf("Resync of %q published to %s (stream %s, seq %d)\n", mapID, subject, ack.Stream, ack.Sequence)
	return nil
}
