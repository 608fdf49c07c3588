package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/groundwork"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/ingestion"
)

func addCommand(c *cli.Context) error {
	scope, err := requireScope(c)
	if err != nil {
		return err
	}
	sources, err := sourcesFromArgs(c)
	if err != nil {
		return err
	}
	dryRun := c.Bool("dry-run")

	var opts []groundwork.Option
	if !dryRun && !c.Bool("quiet") {
		progress := newProgressTracker(c.App.ErrWriter)
		opts = append(opts, groundwork.WithBatchObserver(progress.Observe))
	}
	app, err := openApp(c, opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	var ingestOpts []ingestion.IngestOption
	if dryRun {
		ingestOpts = append(ingestOpts, ingestion.WithDryRun())
	}

	if len(sources) == 1 {
		res, err := app.Add(c.Context, sources[0], scope, ingestOpts...)
		if err != nil {
			return fmt.Errorf("add failed: %w", err)
		}
		printResult(c.App.Writer, res, dryRun)
		return nil
	}

	requests := make([]ingestion.Request, len(sources))
	for i, s := range sources {
		requests[i] = ingestion.Request{Source: s, Scope: scope}
	}
	results, err := app.AddAll(c.Context, requests, ingestOpts...)
	for _, res := range results {
		if res != nil {
			printResult(c.App.Writer, res, dryRun)
		}
	}
	if err != nil {
		return fmt.Errorf("add failed: %w", err)
	}
	return nil
}

// sourcesFromArgs builds the sources named on the command line. With
// --question the arguments form the answer of a single Q&A pair.
func sourcesFromArgs(c *cli.Context) ([]core.Source, error) {
	args := c.Args().Slice()
	if len(args) == 0 {
		return nil, errors.New("at least one source is required")
	}
	if q := c.String("question"); q != "" {
		return []core.Source{core.QnASource(q, strings.Join(args, " "))}, nil
	}

	var kind core.Kind
	if name := c.String("kind"); name != "" {
		parsed, err := core.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kind = parsed
	}
	sources := make([]core.Source, len(args))
	for i, arg := range args {
		sources[i] = core.NewSource(arg, kind)
	}
	return sources, nil
}

func printResult(w io.Writer, res *ingestion.Result, dryRun bool) {
	fmt.Fprintf(w, "%s\tkind=%s chunks=%d added=%d skipped=%d failures=%d\n",
		res.SourceID, res.Kind, len(res.Chunks), res.Added, res.Skipped, len(res.Failures))
	for _, f := range res.Failures {
		fmt.Fprintf(w, "  failed: %s: %v\n", f.Item, f.Err)
	}
	if !dryRun {
		return
	}
	for _, ch := range res.Chunks {
		fmt.Fprintf(w, "--- chunk %d (%d chars) %s\n%s\n", ch.Index, len(ch.Text), ch.Metadata[core.MetaURL], ch.Text)
	}
}

func queryCommand(c *cli.Context) error {
	scope, err := requireScope(c)
	if err != nil {
		return err
	}
	text := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(text) == "" {
		return errors.New("query text is required")
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	w := c.App.Writer
	if c.Bool("citations") {
		citations, err := app.QueryWithCitations(c.Context, text, scope, c.Int("top-k"))
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		if len(citations) == 0 {
			fmt.Fprintln(w, "no matching content")
		}
		for i, cit := range citations {
			fmt.Fprintf(w, "%d. %s\n   source: %s (%s)\n", i+1, cit.Content, cit.SourceURL, cit.SourceID)
		}
		return nil
	}

	results, err := app.Query(c.Context, text, scope, c.Int("top-k"))
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "no matching content")
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s\n", i+1, r)
	}
	return nil
}

func existsCommand(c *cli.Context) error {
	scope, err := requireScope(c)
	if err != nil {
		return err
	}
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Exists(c.Context, scope)
	if err != nil {
		return err
	}
	for i, id := range res.IDs {
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", id, res.Metadatas[i][core.MetaURL])
	}
	fmt.Fprintf(c.App.Writer, "%d entries\n", res.Len())
	return nil
}

func deleteCommand(c *cli.Context) error {
	scope, err := requireScope(c)
	if err != nil {
		return err
	}
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	n, err := app.Delete(c.Context, scope)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted %d entries\n", n)
	return nil
}

func sourcesCommand(c *cli.Context) error {
	scope, err := requireScope(c)
	if err != nil {
		return err
	}
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	sources, err := app.Sources(c.Context, scope)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE ID\tKIND\tURL")
	for _, s := range sources {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.SourceID, s.Kind, s.URL)
	}
	return tw.Flush()
}

func countCommand(c *cli.Context) error {
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	n, err := app.Count(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, n)
	return nil
}

func resetCommand(c *cli.Context) error {
	if !c.Bool("yes") {
		return errors.New("reset removes every entry of the collection; pass --yes to confirm")
	}
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Reset(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "collection reset")
	return nil
}
