package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Swind/choreo/core"
	"github.com/Swind/choreo/stage"
	"github.com/Swind/choreo/transport"
	"github.com/urfave/cli/v2"
)

func emitCommand() *cli.Command {
	return &cli.Command{
		Name:  "emit",
		Usage: "Publish the test event script to the configured MQTT topic",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mode",
				Value: "once",
				Usage: "once: series, marker, reveal; loop: full rounds until interrupted",
			},
			&cli.DurationFlag{
				Name:  "delay",
				Usage: "Pause between two series in loop mode",
			},
			&cli.DurationFlag{
				Name:  "step",
				Usage: "Pause between two messages",
			},
			&cli.IntFlag{
				Name:  "rounds",
				Usage: "Loop passes to play, 0 for no limit",
			},
		},
		Action: emitAction,
	}
}

func emitAction(c *cli.Context) error {
	mode := c.String("mode")
	if mode != "once" && mode != "loop" {
		return cli.Exit("mode must be once or loop", 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to load config: %v", err), 1)
	}
	logger := newLogger(os.Stderr, cfg.Log, c.Bool("debug"))
	log := core.NewSlogLogger(logger)

	codec, err := stage.NewCodec(cfg.Transport.Codec)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	opts := transport.MQTTOptions{
		Broker:   cfg.Transport.MQTT.Broker,
		ClientID: cfg.Transport.MQTT.ClientID + "-emitter",
		Topic:    cfg.Transport.MQTT.Topic,
		QoS:      cfg.Transport.MQTT.QoS,
	}
	pub, err := transport.NewMQTTPublisher(transport.NewMQTTClient(opts, log), opts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to connect: %v", err), 1)
	}
	defer pub.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	em := transport.NewEmitter(pub, codec, transport.EmitterOptions{
		Step:   c.Duration("step"),
		Delay:  c.Duration("delay"),
		Rounds: c.Int("rounds"),
	}, log)

	logger.Info("emitting test script", "mode", mode, "topic", opts.Topic)
	if mode == "once" {
		err = em.Once(ctx)
	} else {
		err = em.Loop(ctx)
	}
	if err != nil && ctx.Err() == nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	return nil
}
