package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/uox3/dfn"
	"github.com/uox3/dfn/internal/config"
	"github.com/uox3/dfn/internal/logging"
	"github.com/uox3/dfn/internal/report"
	"github.com/uox3/dfn/internal/watch"
	"github.com/uox3/dfn/lsp"
)

// env carries the streams and the state set up by the Before hook.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	cfg *config.Config
	log zerolog.Logger
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	e := &env{stdin: stdin, stdout: stdout, stderr: stderr, log: zerolog.Nop()}

	return &cli.App{
		Name:      "dfnls",
		Usage:     "check UOX3 definition files and serve them to editors",
		Version:   version,
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a dfnls.yaml file",
				EnvVars: []string{"DFNLS_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn, error or disabled",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "console or json",
			},
		},
		Before: e.setup,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the language server",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "stdio",
						Usage: "communicate over stdin and stdout (the only transport)",
						Value: true,
					},
				},
				Action: e.serve,
			},
			{
				Name:      "check",
				Usage:     "report diagnostics for definition files",
				ArgsUsage: "[paths...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "text or json",
						Value:   report.FormatText,
					},
					&cli.StringSliceFlag{
						Name:  "ext",
						Usage: "file extensions to scan, overriding the config",
					},
					&cli.BoolFlag{
						Name:  "warnings-as-errors",
						Usage: "fail when any warning is reported",
					},
					&cli.BoolFlag{
						Name:    "watch",
						Aliases: []string{"w"},
						Usage:   "keep running and re-check files as they change",
					},
				},
				Action: e.check,
			},
			{
				Name:   "categories",
				Usage:  "list definition categories and their directories",
				Action: e.categories,
			},
		},
	}
}

func (e *env) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log, e.stderr)
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.log = logger
	return nil
}

func (e *env) serve(c *cli.Context) error {
	store := dfn.NewStore(dfn.WithHistoryLimit(e.cfg.HistoryLimit))
	srv := lsp.NewServer(e.cfg, e.log, store).WithVersion(version)

	e.log.Info().Str("version", version).Msg("language server starting")
	err := srv.Serve(c.Context, e.stdin, e.stdout)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lsp.ErrConnectionClosed):
		e.log.Warn().Msg("client closed the connection without exit")
		return nil
	case errors.Is(err, lsp.ErrExitWithoutShutdown):
		return cli.Exit("", 1)
	default:
		return err
	}
}

func (e *env) check(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		paths = []string{"."}
	}
	exts := e.cfg.Extensions
	if c.IsSet("ext") {
		exts = c.StringSlice("ext")
	}

	ws := dfn.NewWorkspace().
		WithOptions(dfn.WorkspaceOptions{
			Roots:       paths,
			Extensions:  exts,
			Concurrency: e.cfg.Concurrency,
		}).
		WithParser(dfn.NewParser(e.cfg.ParserOptions()...))

	out, err := report.New(e.stdout, c.String("format"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	results, err := ws.Scan(c.Context)
	if err != nil {
		return err
	}
	if err := out.Write(results); err != nil {
		return err
	}

	if c.Bool("watch") {
		return e.watch(c, ws, out)
	}

	if report.Summarize(results).Failed(c.Bool("warnings-as-errors")) {
		return cli.Exit("", 1)
	}
	return nil
}

func (e *env) watch(c *cli.Context, ws *dfn.Workspace, out *report.Writer) error {
	w := watch.New(ws, e.log, func(res dfn.FileResult) {
		if err := out.WriteFile(res); err != nil {
			e.log.Error().Err(err).Msg("failed to write report")
		}
	})
	if err := w.Start(c.Context); err != nil {
		return err
	}
	<-w.Done()
	return nil
}

func (e *env) categories(c *cli.Context) error {
	tw := tabwriter.NewWriter(e.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tDIRECTORY")
	for _, cat := range dfn.Categories() {
		fmt.Fprintf(tw, "%s\t%s/\n", cat, cat.DirName())
	}
	return tw.Flush()
}
