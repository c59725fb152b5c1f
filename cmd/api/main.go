package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "stones",
		Usage: "real-time matchmaking and game session server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "load environment variables from `FILE` before reading config",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override LOG_LEVEL (debug, info, warn, error)",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP and websocket server (default)",
				Action: serve,
			},
			{
				Name:  "token",
				Usage: "print a signed access token for local testing",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "user", Usage: "user id", Required: true},
					&cli.StringFlag{Name: "username", Value: "dev"},
					&cli.DurationFlag{Name: "ttl", Value: defaultTokenTTL},
				},
				Action: token,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Error().Err(err).Msg("exited with error")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
