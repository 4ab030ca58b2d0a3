// Command sheets-init prepares the spreadsheet for a year: it creates the
// "<year> <sheet name>" tab with its header row if missing and reports how
// many transactions it already holds.
package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"fintrack/internal/cli"
	"fintrack/internal/log"
	gsheet "fintrack/internal/sheets/google"
)

func main() {
	year := flag.Int("year", time.Now().Year(), "year whose sheet to create")
	flag.Parse()

	cfg, logger := cli.Bootstrap(log.ComponentSheets)
	if !cfg.SheetsEnabled() {
		cli.Fatal(logger, "Nothing to initialize", errors.New("GOOGLE_SPREADSHEET_ID is not set"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := gsheet.NewFromConfig(ctx, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
	}

	title := client.SheetName(*year)
	if err := client.EnsureSheet(ctx, title); err != nil {
		cli.Fatal(logger, "Failed to create sheet", err)
	}
	ids, err := client.SyncedIDs(ctx, *year)
	if err != nil {
		cli.Fatal(logger, "Failed to read sheet", err)
	}
	logger.Info("Sheet ready", "sheet", title, "spreadsheet_id", cfg.GoogleSpreadsheetID, "rows", len(ids))
}
