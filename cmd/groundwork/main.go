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

	"github.com/urfave/cli/v2"

	"github.com/poiesic/groundwork"
	"github.com/poiesic/groundwork/config"
	"github.com/poiesic/groundwork/core"
)

// appOptions are appended to the options of every App the commands open.
var appOptions []groundwork.Option

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func scopeFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:    "scope",
		Aliases: []string{"s"},
		Usage:   "Scope constraint as key=value (repeatable)",
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:  "groundwork",
		Usage: "Ingest knowledge sources and retrieve grounded content",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML or TOML configuration file",
				Value:   "groundwork.yaml",
				EnvVars: []string{"GROUNDWORK_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Ingest one or more sources under a scope",
				ArgsUsage: "SOURCE...",
				Action:    addCommand,
				Flags: []cli.Flag{
					scopeFlag(),
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Force the source kind (" + kindList() + ")",
					},
					&cli.StringFlag{
						Name:  "question",
						Usage: "Ingest a Q&A pair; the answer is the argument",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Load and chunk without storing",
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Do not report write progress",
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Retrieve the content most similar to a text",
				ArgsUsage: "TEXT",
				Action:    queryCommand,
				Flags: []cli.Flag{
					scopeFlag(),
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results",
						Value:   3,
					},
					&cli.BoolFlag{
						Name:  "citations",
						Usage: "Print the source url and id of every result",
					},
				},
			},
			{
				Name:   "exists",
				Usage:  "List the entry ids stored under a scope",
				Action: existsCommand,
				Flags:  []cli.Flag{scopeFlag()},
			},
			{
				Name:   "delete",
				Usage:  "Delete every entry stored under a scope",
				Action: deleteCommand,
				Flags:  []cli.Flag{scopeFlag()},
			},
			{
				Name:   "sources",
				Usage:  "List the sources stored under a scope",
				Action: sourcesCommand,
				Flags:  []cli.Flag{scopeFlag()},
			},
			{
				Name:   "count",
				Usage:  "Print the number of entries in the collection",
				Action: countCommand,
			},
			{
				Name:   "reset",
				Usage:  "Irreversibly remove every entry of the collection",
				Action: resetCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm the reset",
					},
				},
			},
			{
				Name:      "watch",
				Usage:     "Re-ingest files of a directory as they change",
				ArgsUsage: "DIR",
				Action:    watchCommand,
				Flags: []cli.Flag{
					scopeFlag(),
					&cli.DurationFlag{
						Name:  "settle",
						Usage: "Wait this long after the last event on a file before re-ingesting it",
						Value: defaultSettle,
					},
				},
			},
		},
	}
}

func kindList() string {
	names := make([]string, len(core.Kinds))
	for i, k := range core.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// openApp loads the configuration named by --config and builds an App.
func openApp(c *cli.Context, opts ...groundwork.Option) (*groundwork.App, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	opts = append([]groundwork.Option{groundwork.WithLogger(slog.Default())}, opts...)
	opts = append(opts, appOptions...)
	app, err := groundwork.New(c.Context, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return app, nil
}

// requireScope parses the --scope flags. Scoped commands refuse to run
// without at least one constraint.
func requireScope(c *cli.Context) (core.Scope, error) {
	scope, err := core.ParseScope(c.StringSlice("scope"))
	if err != nil {
		return nil, err
	}
	if err := scope.Validate(); err != nil {
		return nil, fmt.Errorf("%w: pass --scope key=value", err)
	}
	return scope, nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
