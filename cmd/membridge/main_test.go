package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/membridge"
	"github.com/poiesic/membridge/ai/mock"
	"github.com/poiesic/membridge/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findFlag[T cli.Flag](flags []cli.Flag, name string) T {
	var zero T
	for _, flag := range flags {
		if f, ok := flag.(T); ok && slices.Contains(flag.Names(), name) {
			return f
		}
	}
	return zero
}

func findCommand(app *cli.App, name string) *cli.Command {
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	return nil
}

func TestGlobalFlags(t *testing.T) {
	app := newApp()

	t.Run("db has default and env var", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](app.Flags, "db")
		require.NotNil(t, f)
		assert.Equal(t, "./membridge_db", f.Value)
		assert.Equal(t, []string{"MEMBRIDGE_DB"}, f.EnvVars)
	})

	t.Run("embedding-host has default value", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](app.Flags, "embedding-host")
		require.NotNil(t, f)
		assert.Equal(t, "http://localhost:11434/v1", f.Value)
		assert.Equal(t, []string{"MEMBRIDGE_EMBEDDING_HOST"}, f.EnvVars)
	})

	t.Run("classifier-host defaults to empty", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](app.Flags, "classifier-host")
		require.NotNil(t, f)
		assert.Empty(t, f.Value)
	})

	t.Run("timeout defaults to two minutes", func(t *testing.T) {
		f := findFlag[*cli.DurationFlag](app.Flags, "timeout")
		require.NotNil(t, f)
		assert.Equal(t, 120*time.Second, f.Value)
	})
}

func TestCommands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"serve", "add", "search", "list", "delete", "reindex", "seed", "reembed"} {
		assert.NotNil(t, findCommand(app, name), name)
	}

	serve := findCommand(app, "serve")
	assert.NotNil(t, findFlag[*cli.StringFlag](serve.Flags, "session"))
	assert.NotNil(t, findFlag[*cli.StringFlag](serve.Flags, "metrics-addr"))
	assert.NotNil(t, findFlag[*cli.DurationFlag](serve.Flags, "settle"))

	reembedCmd := findCommand(app, "reembed")
	batch := findFlag[*cli.IntFlag](reembedCmd.Flags, "batch-size")
	require.NotNil(t, batch)
	assert.Equal(t, 100, batch.Value)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInvalidLogLevel(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"membridge", "--log-level", "loud", "list"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestMissingArguments(t *testing.T) {
	for _, tt := range []struct{ cmd, want string }{
		{"add", "text is required"},
		{"search", "query is required"},
		{"delete", "id is required"},
		{"seed", "dir is required"},
	} {
		t.Run(tt.cmd, func(t *testing.T) {
			app := newApp()
			app.Writer = &bytes.Buffer{}
			err := app.Run([]string{"membridge", "--db", t.TempDir(), tt.cmd})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReembedConfigValidation(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}

	err := app.Run([]string{"membridge", "--db", t.TempDir(), "reembed", "--batch-size", "0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch-size")

	err = app.Run([]string{"membridge", "--db", t.TempDir(), "reembed", "--max-retries", "0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max-retries")
}

// populate stores entries with the mock provider so commands that need no
// AI calls can run against them.
func populate(t *testing.T, dir string, texts ...string) []core.ID {
	t.Helper()
	db, err := membridge.NewDatabase(dir, membridge.WithAIProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer db.Close()

	ids := make([]core.ID, 0, len(texts))
	for _, text := range texts {
		id, err := db.Add(context.Background(), text, []string{"seeded"})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestListAndDeleteCommands(t *testing.T) {
	dir := t.TempDir()
	ids := populate(t, dir, "first note", "second note")

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"membridge", "--db", dir, "list"}))
	assert.Contains(t, out.String(), "first note")
	assert.Contains(t, out.String(), "second note")
	assert.Contains(t, out.String(), "pending")
	assert.Contains(t, out.String(), "2 entries")

	out.Reset()
	app = newApp()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"membridge", "--db", dir, "delete", ids[0].String()}))
	assert.Equal(t, "Successfully deleted data entry: "+ids[0].String()+"\n", out.String())

	app = newApp()
	app.Writer = &out
	err := app.Run([]string{"membridge", "--db", dir, "delete", ids[0].String()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete failed")
}

func TestPrintResults(t *testing.T) {
	var out bytes.Buffer
	printResults(&out, []*core.SearchResult{
		{Entry: &core.Entry{Id: 7, Contents: "contract A", Tags: []string{"s1"}}, Score: 1.5},
	})
	assert.Equal(t, "Found 1 hits\n0: 'contract A' (7)[1.500] {s1}\n", out.String())
}

func TestPrintCheckpoints(t *testing.T) {
	var out bytes.Buffer
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	printCheckpoints(&out, []*core.Checkpoint{{ProcessorType: "concepts", LastID: 12, UpdatedAt: at}})
	assert.Equal(t, "  concepts   last entry 12 at 2025-03-01T12:00:00Z\n", out.String())
}

func TestSeedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("bravo"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("ignored"), 0644))

	files, err := seedFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", filepath.Base(files[0]))
	assert.Equal(t, "b.txt", filepath.Base(files[1]))
}

type recordingAdder struct {
	mu    sync.Mutex
	added []string
	fail  string
}

func (r *recordingAdder) add(ctx context.Context, data string) (string, error) {
	if r.fail != "" && strings.Contains(data, r.fail) {
		return "", errors.New("rejected")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, data)
	return "ok", nil
}

func TestSeed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("line one\n\nline two\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("line three\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.txt"), []byte("  \n"), 0644))
	files, err := seedFiles(dir)
	require.NoError(t, err)

	t.Run("one entry per file", func(t *testing.T) {
		adder := &recordingAdder{}
		n, err := seed(context.Background(), files, 2, false, adder.add)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.ElementsMatch(t, []string{"line one\n\nline two", "line three"}, adder.added)
	})

	t.Run("one entry per line", func(t *testing.T) {
		adder := &recordingAdder{}
		n, err := seed(context.Background(), files, 3, true, adder.add)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.ElementsMatch(t, []string{"line one", "line two", "line three"}, adder.added)
	})

	t.Run("failures are reported and other files still load", func(t *testing.T) {
		adder := &recordingAdder{fail: "three"}
		n, err := seed(context.Background(), files, 1, true, adder.add)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "b.txt")
		assert.Equal(t, 2, n)
	})
}
