// Command pointage-export dumps the prestation ledger as CSV, applying the
// same filters the HTTP API accepts. It opens the SQLite file directly so
// an export works while the server is down.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"pointage/internal/cli"
	"pointage/internal/core"
	"pointage/internal/export"
	applog "pointage/internal/log"
)

func main() {
	var (
		provider = flag.String("provider", "", "filter by provider name")
		client   = flag.String("client", "", "filter by client name")
		task     = flag.String("task", "", "filter by task name")
		from     = flag.String("from", "", "start date lower bound (YYYY-MM-DD, inclusive)")
		to       = flag.String("to", "", "start date upper bound (YYYY-MM-DD, inclusive)")
		invoiced = flag.String("invoiced", "", "true for archived rows, false for open ones, empty for both")
		out      = flag.String("o", "", "output file (default stdout)")
	)
	flag.Parse()

	logger := cli.SetupStderrLogger(applog.ComponentExport)
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(logger)

	f, err := buildFilter(*provider, *client, *task, *from, *to, *invoiced)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	repo := cli.InitRepository(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.QueryTimeout)
	defer cancel()

	rows, err := repo.ListFiltered(ctx, f)
	if err != nil {
		logger.Error("Ledger query failed", "error", err)
		os.Exit(1)
	}

	w := os.Stdout
	if *out != "" {
		w, err = os.Create(*out)
		if err != nil {
			logger.Error("Failed to create output file", "error", err, "path", *out)
			os.Exit(1)
		}
		defer w.Close()
	}

	if err := export.WriteCSV(w, rows); err != nil {
		logger.Error("CSV export failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Export completed", "rows", len(rows), "output", outputName(*out))
}

func buildFilter(provider, client, task, from, to, invoiced string) (core.Filter, error) {
	f := core.Filter{Provider: provider, Client: client, Task: task}

	if from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return core.Filter{}, fmt.Errorf("invalid -from date %q", from)
		}
		f.From = t
	}
	if to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return core.Filter{}, fmt.Errorf("invalid -to date %q", to)
		}
		f.To = t
	}
	if invoiced != "" {
		b, err := strconv.ParseBool(invoiced)
		if err != nil {
			return core.Filter{}, fmt.Errorf("invalid -invoiced value %q", invoiced)
		}
		f.Invoiced = &b
	}

	return f, nil
}

func outputName(path string) string {
	if path == "" {
		return "stdout"
	}
	return path
}
