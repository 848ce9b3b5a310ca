package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/membridge/bridge"
	"github.com/poiesic/membridge/core"
	"github.com/urfave/cli/v2"
)

func addAction(c *cli.Context) error {
	text, err := requireArg(c, "text")
	if err != nil {
		return err
	}
	ctx := c.Context

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	tools, err := newTools(c, db)
	if err != nil {
		return err
	}
	defer tools.Close()

	session, err := tools.Bind(c.String("session"))
	if err != nil {
		return err
	}
	msg, err := session.Add(ctx, text)
	if err != nil {
		return fmt.Errorf("add failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "%s in session %s\n", msg, session.ID())

	// The process exits after this command, so wait for the entry to be indexed.
	var reindexErr *bridge.ReindexError
	if err := tools.Drain(ctx); errors.As(err, &reindexErr) {
		slog.Warn("entry stored but not indexed; run reindex later", "err", reindexErr)
	} else if err != nil {
		return err
	}
	return nil
}

func searchAction(c *cli.Context) error {
	query, err := requireArg(c, "query")
	if err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	tools, err := newTools(c, db)
	if err != nil {
		return err
	}
	defer tools.Close()

	var results []*core.SearchResult
	if session := c.String("session"); session != "" {
		bound, err := tools.Bind(session)
		if err != nil {
			return err
		}
		results, err = bound.Search(c.Context, query, c.Int("limit"))
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
	} else {
		results, err = tools.Search(c.Context, query, nil, c.Int("limit"))
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
	}
	printResults(c.App.Writer, results)
	return nil
}

func printResults(w io.Writer, results []*core.SearchResult) {
	fmt.Fprintf(w, "Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Fprintf(w, "%d: '%s' (%s)[%0.3f]", i, hit.Entry.Contents, hit.Entry.Id, hit.Score)
		if len(hit.Entry.Tags) > 0 {
			fmt.Fprintf(w, " {%s}", strings.Join(hit.Entry.Tags, ","))
		}
		fmt.Fprintln(w)
	}
}

func listAction(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.ListEntries(c.Context)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}
	printEntries(c.App.Writer, entries)
	return nil
}

func printEntries(w io.Writer, entries []core.EntryMetadata) {
	for _, e := range entries {
		state := "pending"
		if e.Indexed {
			state = "indexed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.InsertedAt.Format(time.RFC3339), state, strings.Join(e.Tags, ","), e.Preview)
	}
	fmt.Fprintf(w, "%d entries\n", len(entries))
}

func deleteAction(c *cli.Context) error {
	id, err := requireArg(c, "id")
	if err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Delete(c.Context, id); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Successfully deleted data entry: %s\n", id)
	return nil
}

func reindexAction(c *cli.Context) error {
	ctx := c.Context

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if c.Bool("all") {
		marked, err := db.MarkAllPending(ctx)
		if err != nil {
			return fmt.Errorf("failed to mark entries pending: %w", err)
		}
		fmt.Fprintf(c.App.ErrWriter, "Marked %d entries for reindexing\n", marked)
	}

	start := time.Now()
	stats, err := db.ReindexWithStats(ctx)
	fmt.Fprintf(c.App.Writer, "Pending: %d, indexed: %d, failed: %d (%s)\n",
		stats.Pending, stats.Indexed, stats.Failed, elapsedSince(start))
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	checkpoints, err := db.CheckpointRepository().ListCheckpoints(ctx)
	if err != nil {
		return fmt.Errorf("failed to load checkpoints: %w", err)
	}
	printCheckpoints(c.App.Writer, checkpoints)
	return nil
}

func printCheckpoints(w io.Writer, checkpoints []*core.Checkpoint) {
	for _, cp := range checkpoints {
		fmt.Fprintf(w, "  %-10s last entry %s at %s\n", cp.ProcessorType, cp.LastID, cp.UpdatedAt.Format(time.RFC3339))
	}
}
