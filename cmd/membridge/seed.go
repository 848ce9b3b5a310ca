package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"github.com/urfave/cli/v2"
)

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:      "seed",
		Usage:     "Load every *.txt file in a directory through the bridge",
		ArgsUsage: "<dir>",
		Action:    seedAction,
		Flags: []cli.Flag{
			sessionFlag(),
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Number of files loaded concurrently",
				Value: 4,
			},
			&cli.BoolFlag{
				Name:  "lines",
				Usage: "Add each non-blank line as its own entry instead of one entry per file",
			},
		},
	}
}

func seedAction(c *cli.Context) error {
	dir, err := requireArg(c, "dir")
	if err != nil {
		return err
	}
	files, err := seedFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .txt files in %s", dir)
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

	session, err := tools.Bind(c.String("session"))
	if err != nil {
		return err
	}

	added, err := seed(c.Context, files, c.Int("workers"), c.Bool("lines"), session.Add)
	fmt.Fprintf(c.App.Writer, "Added %d entries from %d files to session %s\n", added, len(files), session.ID())
	if err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}

	if err := tools.Drain(c.Context); err != nil {
		return fmt.Errorf("entries stored but indexing failed: %w", err)
	}
	return nil
}

// seedFiles returns the *.txt files in dir, sorted by name.
func seedFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

type addFunc func(ctx context.Context, data string) (string, error)

// seed loads files on a pool of workers and returns how many entries were
// added. Every file is attempted; failures are joined.
func seed(ctx context.Context, files []string, workers int, perLine bool, add addFunc) (int, error) {
	pool, err := ants.NewPool(max(workers, 1))
	if err != nil {
		return 0, err
	}
	defer pool.Release()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		errs  []error
		added atomic.Int64
	)
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for _, file := range files {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			n, err := seedFile(ctx, file, perLine, add)
			added.Add(int64(n))
			if err != nil {
				slog.Error("failed to seed file", "file", file, "err", err)
				fail(fmt.Errorf("%s: %w", file, err))
				return
			}
			slog.Debug("seeded file", "file", file, "entries", n)
		})
		if submitErr != nil {
			wg.Done()
			fail(submitErr)
		}
	}
	wg.Wait()
	return int(added.Load()), errors.Join(errs...)
}

func seedFile(ctx context.Context, file string, perLine bool, add addFunc) (int, error) {
	if !perLine {
		data, err := os.ReadFile(file)
		if err != nil {
			return 0, err
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			return 0, nil
		}
		if _, err := add(ctx, text); err != nil {
			return 0, err
		}
		return 1, nil
	}

	lines, err := linesFromFile(file)
	if err != nil {
		return 0, err
	}
	added := 0
	for line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, err := add(ctx, line); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}
