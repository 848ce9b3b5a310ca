// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/membridge"
	"github.com/poiesic/membridge/ai"
	"github.com/poiesic/membridge/bridge"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "membridge",
		Usage: "Session-scoped knowledge base for agent tools",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"MEMBRIDGE_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				Value:   "./membridge_db",
				EnvVars: []string{"MEMBRIDGE_DB"},
			},
			&cli.StringFlag{
				Name:    "embedding-host",
				Usage:   "Embedding service host URL",
				Value:   "http://localhost:11434/v1",
				EnvVars: []string{"MEMBRIDGE_EMBEDDING_HOST"},
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model name",
				Value:   "embeddinggemma",
				EnvVars: []string{"MEMBRIDGE_EMBEDDING_MODEL"},
			},
			&cli.StringFlag{
				Name:    "classifier-host",
				Usage:   "Classifier service host URL for concept extraction (defaults to embedding-host)",
				EnvVars: []string{"MEMBRIDGE_CLASSIFIER_HOST"},
			},
			&cli.StringFlag{
				Name:    "classifier-model",
				Usage:   "Classifier model name for concept extraction",
				Value:   "qwen2.5:3b",
				EnvVars: []string{"MEMBRIDGE_CLASSIFIER_MODEL"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API key for the embedding and classifier services",
				EnvVars: []string{"MEMBRIDGE_API_KEY"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "Upper bound on each knowledge base call",
				Value:   bridge.DefaultTimeout,
				EnvVars: []string{"MEMBRIDGE_TIMEOUT"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			serveCommand(),
			{
				Name:      "add",
				Usage:     "Add text to the knowledge base and index it",
				ArgsUsage: "<text>",
				Action:    addAction,
				Flags:     []cli.Flag{sessionFlag()},
			},
			{
				Name:      "search",
				Usage:     "Search the knowledge base",
				ArgsUsage: "<query>",
				Action:    searchAction,
				Flags: []cli.Flag{
					sessionFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 10,
					},
				},
			},
			{
				Name:   "list",
				Usage:  "List every entry",
				Action: listAction,
			},
			{
				Name:      "delete",
				Usage:     "Delete an entry by id",
				ArgsUsage: "<id>",
				Action:    deleteAction,
			},
			{
				Name:   "reindex",
				Usage:  "Index pending entries",
				Action: reindexAction,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Re-index every entry, not just pending ones",
					},
				},
			},
			seedCommand(),
			reembedCommand(),
		},
	}
}

func sessionFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "session",
		Aliases: []string{"s"},
		Usage:   "Session id that scopes writes and searches",
		EnvVars: []string{"MEMBRIDGE_SESSION"},
	}
}

// aiConfig builds the AI provider configuration from the global flags.
func aiConfig(c *cli.Context) *ai.Config {
	classifierHost := c.String("classifier-host")
	if classifierHost == "" {
		classifierHost = c.String("embedding-host")
	}
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithClassifierHost(classifierHost),
		ai.WithClassifierModel(c.String("classifier-model")),
		ai.WithAPIKey(c.String("api-key")),
	)
}

func openDatabase(c *cli.Context) (*membridge.Database, error) {
	config := aiConfig(c)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	db, err := membridge.NewDatabase(c.String("db"), membridge.WithAIConfig(config), membridge.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func newTools(c *cli.Context, engine bridge.Engine, opts ...bridge.Option) (*bridge.Tools, error) {
	opts = append([]bridge.Option{
		bridge.WithTimeout(c.Duration("timeout")),
		bridge.WithLogger(slog.Default()),
	}, opts...)
	return bridge.NewTools(engine, opts...)
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", s)
	}
}

// setupLogger logs to stderr; stdout belongs to command output and the MCP
// protocol.
func setupLogger(c *cli.Context) error {
	level, err := parseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}

func requireArg(c *cli.Context, name string) (string, error) {
	arg := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if arg == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return arg, nil
}

func elapsedSince(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}
