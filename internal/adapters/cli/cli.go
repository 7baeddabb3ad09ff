package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"invoice-audit/internal/app"
	"invoice-audit/internal/ingest"
	"invoice-audit/internal/render"

	"github.com/google/uuid"
	ucli "github.com/urfave/cli/v2"
)

// NewApp builds the command tree over svc. Reports and listings go to out unless a
// command is given --out.
func NewApp(svc app.ApplicationService, out io.Writer) *ucli.App {
	return &ucli.App{
		Name:      "app",
		Usage:     "audit invoice batches for arithmetic, compliance and pattern issues",
		Writer:    out,
		ErrWriter: os.Stderr,
		Commands: []*ucli.Command{
			{
				Name:      "audit",
				Usage:     "audit a JSON or CSV invoice batch",
				ArgsUsage: "<file.json|file.csv>",
				Flags: []ucli.Flag{
					&ucli.BoolFlag{Name: "insights", Usage: "ask the insight agent for heuristic findings"},
					formatFlag(),
					outFlag(),
				},
				Action: func(c *ucli.Context) error {
					return auditFile(c, svc)
				},
			},
			{
				Name:  "runs",
				Usage: "inspect stored audit runs",
				Subcommands: []*ucli.Command{
					{
						Name:  "list",
						Usage: "list recent runs, newest first",
						Flags: []ucli.Flag{&ucli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20}},
						Action: func(c *ucli.Context) error {
							return listRuns(c, svc)
						},
					},
					{
						Name:      "show",
						Usage:     "print a stored run",
						ArgsUsage: "<run-id>",
						Flags:     []ucli.Flag{formatFlag(), outFlag()},
						Action: func(c *ucli.Context) error {
							return showRun(c, svc)
						},
					},
				},
			},
		},
	}
}

func formatFlag() ucli.Flag {
	return &ucli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "json",
		Usage:   "report format: json, md, html or pdf",
	}
}

func outFlag() ucli.Flag {
	return &ucli.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Usage:   "write the report to `FILE` instead of stdout",
	}
}

// Run executes a one-shot CLI command. args is os.Args, program name included.
func Run(ctx context.Context, svc app.ApplicationService, args []string) error {
	return NewApp(svc, os.Stdout).RunContext(ctx, args)
}

func auditFile(c *ucli.Context, svc app.ApplicationService) error {
	if c.NArg() != 1 {
		return ucli.Exit("Usage: app audit <file.json|file.csv> [--insights] [--format json|md|html|pdf] [--out FILE]", 2)
	}
	path := c.Args().First()
	format, err := outputFormat(c)
	if err != nil {
		return err
	}

	batchFormat, err := ingest.FormatFromFilename(path)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open batch: %w", err)
	}
	defer f.Close()

	invoices, err := ingest.Read(f, batchFormat)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	res, err := svc.RunAudit(c.Context, app.AuditRequest{
		Source:       filepath.Base(path),
		Invoices:     invoices,
		WithInsights: c.Bool("insights"),
	})
	if err != nil {
		return err
	}
	if res.Persisted {
		fmt.Fprintf(c.App.ErrWriter, "stored audit run %s\n", res.Run.ID)
	}
	if res.Run.InsightsError != "" {
		fmt.Fprintf(c.App.ErrWriter, "insights unavailable: %s\n", res.Run.InsightsError)
	}

	return withOutput(c, func(w io.Writer) error {
		return render.Write(w, res.Run, format)
	})
}

func listRuns(c *ucli.Context, svc app.ApplicationService) error {
	res, err := svc.ListAuditRuns(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	w := c.App.Writer
	if len(res.Runs) == 0 {
		fmt.Fprintln(w, "No audit runs stored.")
		return nil
	}
	fmt.Fprintf(w, "%-36s  %-20s  %8s  %6s  %s\n", "ID", "CREATED", "INVOICES", "ISSUES", "SOURCE")
	fmt.Fprintln(w, strings.Repeat("-", 96))
	for _, r := range res.Runs {
		fmt.Fprintf(w, "%-36s  %-20s  %8d  %6d  %s\n",
			r.ID, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"), r.InvoiceCount, r.IssueCount, r.Source)
	}
	return nil
}

func showRun(c *ucli.Context, svc app.ApplicationService) error {
	if c.NArg() != 1 {
		return ucli.Exit("Usage: app runs show <run-id> [--format json|md|html|pdf] [--out FILE]", 2)
	}
	id, err := uuid.Parse(c.Args().First())
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", c.Args().First(), err)
	}
	format, err := outputFormat(c)
	if err != nil {
		return err
	}
	return withOutput(c, func(w io.Writer) error {
		return svc.RenderAuditRun(c.Context, id, format, w)
	})
}

func outputFormat(c *ucli.Context) (render.Format, error) {
	format, err := render.ParseFormat(c.String("format"))
	if err != nil {
		return "", err
	}
	if format == render.FormatPDF && c.String("out") == "" {
		return "", errors.New("pdf output needs --out FILE")
	}
	return format, nil
}

// withOutput runs write against --out when given, otherwise against the app writer.
func withOutput(c *ucli.Context, write func(io.Writer) error) error {
	path := c.String("out")
	if path == "" {
		return write(c.App.Writer)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
