package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/membridge/reembed"
	"github.com/urfave/cli/v2"
)

func reembedCommand() *cli.Command {
	return &cli.Command{
		Name:   "reembed",
		Usage:  "Regenerate every entry and concept vector with the current embedding model",
		Action: reembedAction,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Number of records to process in each batch",
				Value: reembed.DefaultBatchSize,
			},
			&cli.IntFlag{
				Name:  "report-interval",
				Usage: "Report progress every N records",
				Value: 100,
			},
			&cli.IntFlag{
				Name:  "max-retries",
				Usage: "Maximum retry attempts for failed operations",
				Value: 3,
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "Base delay for exponential backoff",
				Value: 1 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "skip-concepts",
				Usage: "Only re-embed entries",
			},
		},
	}
}

func reembedConfig(c *cli.Context) (*reembed.Config, error) {
	config := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		SkipConcepts:   c.Bool("skip-concepts"),
	}
	switch {
	case config.BatchSize <= 0:
		return nil, errors.New("batch-size must be greater than 0")
	case config.ReportInterval <= 0:
		return nil, errors.New("report-interval must be greater than 0")
	case config.MaxRetries <= 0:
		return nil, errors.New("max-retries must be greater than 0")
	}
	return config, nil
}

func reembedAction(c *cli.Context) error {
	config, err := reembedConfig(c)
	if err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", c.String("db"))
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(c.App.ErrWriter)

	result, err := db.Reembed(c.Context, config, c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Re-embedded %d entries and %d concepts\n", result.Entries, result.Concepts)
	return nil
}
