package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/boltgate/cmd/app/commands"
)

func getCardCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "emulate-tap",
			Usage: "Print the tap URL a programmed card would emit (development only)",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "lnurlw-base",
					Required: true,
					Usage:    "lnurlw_base from the card programming payload",
				},
				&cli.StringFlag{
					Name:     "k1",
					Required: true,
					Usage:    "PICCData decryption key (hex)",
				},
				&cli.StringFlag{
					Name:     "k2",
					Required: true,
					Usage:    "SUN MAC key (hex)",
				},
				&cli.StringFlag{
					Name:     "uid",
					Required: true,
					Usage:    "7-byte card UID (hex)",
				},
				&cli.UintFlag{
					Name:     "counter",
					Aliases:  []string{"n"},
					Required: true,
					Usage:    "Tap counter to encode (24 bits)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunEmulateTap(
					commands.DefaultIO().Writer,
					cmd.String("lnurlw-base"),
					cmd.String("k1"),
					cmd.String("k2"),
					cmd.String("uid"),
					uint32(cmd.Uint("counter")),
				)
			},
		},
	}
}
