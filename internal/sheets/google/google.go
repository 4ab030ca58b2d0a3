package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"fintrack/internal/config"
	"fintrack/internal/core"
	ports "fintrack/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// base name without year (e.g. "Transactions"); each year gets its own sheet.
	sheetBase string

	mu     sync.Mutex
	sheets map[string]int64 // title -> sheet id, nil until loaded
}

// Ensure interface conformance
var _ ports.Sink = (*Client)(nil)

// NewFromConfig creates a Sheets client authenticated with a service account.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Client, error) {
	if strings.TrimSpace(cfg.GoogleSpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(creds),
		"scope", gsheet.SpreadsheetsScope)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return New(svc, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName), nil
}

// New wraps an existing service.
func New(svc *gsheet.Service, spreadsheetID, sheetBase string) *Client {
	if strings.TrimSpace(sheetBase) == "" {
		sheetBase = "Transactions"
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetBase: strings.TrimSpace(sheetBase)}
}

func credentials(cfg *config.Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.GoogleServiceAccountJSON) != "":
		return []byte(cfg.GoogleServiceAccountJSON), nil
	case strings.TrimSpace(cfg.GoogleServiceAccountFile) != "":
		b, err := os.ReadFile(cfg.GoogleServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	if path := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// SheetName returns the title of the sheet holding year's transactions.
func (c *Client) SheetName(year int) string {
	return yearPrefixedName(c.sheetBase, year)
}

// Append adds tx to the sheet for its year, creating the sheet on first use.
func (c *Client) Append(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	title := c.SheetName(tx.Date.Year())
	if err := c.EnsureSheet(ctx, title); err != nil {
		return "", err
	}

	vr := &gsheet.ValueRange{Values: [][]any{rowFor(tx)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, a1(title, "A:F"), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", title, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return title, nil
}

// SyncedIDs reads the id column of year's sheet. A missing sheet yields an empty set.
func (c *Client) SyncedIDs(ctx context.Context, year int) (map[string]struct{}, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	title := c.SheetName(year)
	sheets, err := c.loadSheets(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := sheets[title]; !ok {
		return map[string]struct{}{}, nil
	}
	values, err := c.readIDs(ctx, title)
	if err != nil {
		return nil, err
	}
	return idsFromColumn(values), nil
}

// Remove deletes the row for id from whichever yearly sheet holds it.
func (c *Client) Remove(ctx context.Context, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	sheets, err := c.loadSheets(ctx)
	if err != nil {
		return err
	}
	for title, sheetID := range sheets {
		if !isYearSheet(title, c.sheetBase) {
			continue
		}
		values, err := c.readIDs(ctx, title)
		if err != nil {
			return err
		}
		row := findRow(values, id)
		if row < 0 {
			continue
		}
		req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
				SheetId:    sheetID,
				Dimension:  "ROWS",
				StartIndex: int64(row),
				EndIndex:   int64(row + 1),
			}},
		}}}
		if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("delete row %d in %s: %w", row+1, title, err)
		}
		slog.InfoContext(ctx, "Removed transaction row from sheet", "id", id, "sheet", title, "row", row+1)
		return nil
	}
	slog.DebugContext(ctx, "Transaction not present in any sheet", "id", id)
	return nil
}

// EnsureSheet creates title with a header row if the spreadsheet lacks it.
func (c *Client) EnsureSheet(ctx context.Context, title string) error {
	sheets, err := c.loadSheets(ctx)
	if err != nil {
		return err
	}
	if _, ok := sheets[title]; ok {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
	}}}
	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("create sheet %s: %w", title, err)
	}
	var sheetID int64
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}

	vr := &gsheet.ValueRange{Values: [][]any{header}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, a1(title, "A1:F1"), vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header to %s: %w", title, err)
	}

	c.mu.Lock()
	c.sheets[title] = sheetID
	c.mu.Unlock()
	slog.InfoContext(ctx, "Created yearly sheet", "sheet", title)
	return nil
}

func (c *Client) readIDs(ctx context.Context, title string) ([][]any, error) {
	rng := a1(title, "F:F")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// loadSheets fetches the title -> id map once and returns a copy.
func (c *Client) loadSheets(ctx context.Context) (map[string]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sheets == nil {
		resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("read spreadsheet %s: %w", c.spreadsheetID, err)
		}
		c.sheets = make(map[string]int64, len(resp.Sheets))
		for _, s := range resp.Sheets {
			if s.Properties != nil {
				c.sheets[s.Properties.Title] = s.Properties.SheetId
			}
		}
	}
	out := make(map[string]int64, len(c.sheets))
	for k, v := range c.sheets {
		out[k] = v
	}
	return out, nil
}
