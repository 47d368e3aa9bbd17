/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"math/rand"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"pharchive/archive"
	"pharchive/config"
	"pharchive/expand"
	"pharchive/notify"
)

// runCmd represents the run command
func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run one archive pass over the configured targets",
		Description: `Expands the configured defs and target templates into the full
worklist, groups the entries by language and archives each group
concurrently. A single pass over the worklist is the unit of execution;
there is no scheduling built in.

Failures are collected for the whole run and sent as one Telegram
notification if credentials are configured.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.toml",
				Usage:   "Path to the archive configuration file",
				EnvVars: []string{"PHARCHIVE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "rss",
				Usage:   "Directory the archived snapshots are written to",
				EnvVars: []string{"PHARCHIVE_OUTPUT"},
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Print expanded URLs and paths, then exit",
			},
			&cli.BoolFlag{
				Name:  "test",
				Usage: "Test mode: process only a subset of items",
			},
			&cli.BoolFlag{
				Name:  "random",
				Usage: "Shuffle items before processing (only active if --test is also specified)",
			},
			&cli.IntFlag{
				Name:    "number",
				Aliases: []string{"n"},
				Value:   1,
				Usage:   "Number of items to process in test mode",
			},
			&cli.StringFlag{
				Name:    "telegram-bot-token",
				Usage:   "Telegram bot token used for the failure notification",
				EnvVars: []string{"TELEGRAM_BOT_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "telegram-chat-id",
				Usage:   "Telegram chat the failure notification is sent to",
				EnvVars: []string{"TELEGRAM_CHAT_ID"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			root := ctx.String("output")
			worklist := expand.Targets(cfg.Defs, cfg.Target)

			// Create folders for all potential targets before slicing, so a
			// test run still leaves the full directory layout behind.
			archive.EnsureFolders(root, worklist)

			if ctx.Bool("test") {
				if ctx.Bool("random") {
					log.Info("Test mode: Randomizing target list.")
					rand.Shuffle(len(worklist), func(i, j int) {
						worklist[i], worklist[j] = worklist[j], worklist[i]
					})
				} else {
					log.Info("Test mode: Using first N targets.")
				}
				number := ctx.Int("number")
				if number < 0 {
					number = 0
				}
				if number > len(worklist) {
					log.Warnf("Requested number (%d) is more than available targets (%d). Processing all available.", number, len(worklist))
					number = len(worklist)
				}
				worklist = worklist[:number]
				log.Infof("Test mode: Processing %d item(s).", len(worklist))
			}

			if ctx.Bool("dry-run") {
				fmt.Println("Dry run: expanded URLs and paths to be processed:")
				if len(worklist) == 0 {
					fmt.Println("No items selected for dry run.")
				}
				for _, entry := range worklist {
					if entry.Filepath == "" {
						log.Errorf("Dry run: Entry missing filepath for URL: %s", entry.URL)
						continue
					}
					lang := entry.Lang
					if lang == "" {
						lang = "[NO LANG]"
					}
					url := entry.URL
					if url == "" {
						url = "[NO URL]"
					}
					fmt.Printf("[LANG: %s] %s -> %s\n", lang, url, filepath.Join(root, entry.Filepath))
				}
				return nil
			}

			if len(worklist) == 0 {
				log.Info("No items to process.")
			}

			runner := archive.NewRunner(root, cfg.ArchiveBaseURL())
			failures := archive.Run(worklist, runner)

			if len(failures) > 0 {
				notifier := notify.NewTelegram(ctx.String("telegram-bot-token"), ctx.String("telegram-chat-id"))
				notifier.Notify(notify.FormatFailureReport(failures))
			}

			log.Info("Archive run finished.")
			return nil
		},
	}
}
