/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "pharchive",
		Usage: "Archive Product Hunt syndication feeds as normalized RSS snapshots",
		Description: `Periodically archives a configured set of syndication feeds into
		locally stored, normalized RSS snapshots.

		pharchive expands a declarative config of parametrized URL and file
		templates into a concrete worklist, fetches each target with bounded
		retries, normalizes the result into RSS 2.0 and persists it under the
		output directory. Existing non-empty snapshots are never re-fetched.

		Flags can generally be set via environment variables, e.g.:

		--config => PHARCHIVE_CONFIG=config.toml
		--output => PHARCHIVE_OUTPUT=rss
		`,
		Commands: []*cli.Command{
			runCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	// Local secret files are only for development; CI provides real env vars.
	if !strings.EqualFold(os.Getenv("GITHUB_ACTIONS"), "true") {
		if err := godotenv.Load(".env"); err != nil {
			log.Debugf("No .env file loaded: %v", err)
		}
	}

	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
