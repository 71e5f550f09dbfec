package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ethscraper",
		Usage: "Scrape blocks, transactions and ERC-20 transfers from an Ethereum JSON-RPC node",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Usage:   "Load environment variables from this file before reading flags",
				EnvVars: []string{"ENV_FILE"},
			},
		},
		Before: loadEnvFile,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Scrape a block range",
				Flags:  runFlags(),
				Action: run,
			},
			{
				Name:   "remove",
				Usage:  "Remove the stored checkpoints of a chain",
				Flags:  removeFlags(),
				Action: remove,
			},
		},
	}
}

// loadEnvFile loads --env-file. Variables already set in the environment win.
func loadEnvFile(c *cli.Context) error {
	path := c.String("env-file")
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %q: %w", path, err)
	}
	return nil
}
