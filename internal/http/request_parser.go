package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object into dst, rejecting unknown
// fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return malformed(errors.New("request body is empty"))
		case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidDate):
			// field-level parse failures are validation errors
			return err
		default:
			return malformed(fmt.Errorf("invalid JSON: %w", err))
		}
	}
	if dec.More() {
		return malformed(errors.New("request body must hold a single JSON object"))
	}
	return nil
}

// parseOptionalDate returns the zero date for an empty value.
func parseOptionalDate(q url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, malformed(fmt.Errorf("%s: %w", key, err))
	}
	return d, nil
}

// parseTransactionFilter reads from, to, category and limit.
func parseTransactionFilter(q url.Values) (storage.TransactionFilter, error) {
	var f storage.TransactionFilter
	var err error
	if f.From, err = parseOptionalDate(q, "from"); err != nil {
		return f, err
	}
	if f.To, err = parseOptionalDate(q, "to"); err != nil {
		return f, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, malformed(errors.New("to is before from"))
	}
	f.Category = sanitizeInput(q.Get("category"))
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, malformed(fmt.Errorf("invalid limit %q", v))
		}
		f.Limit = n
	}
	return f, nil
}

// parseYearMonth reads year and month, defaulting to today's.
func parseYearMonth(q url.Values, today core.Date) (year, month int, err error) {
	year, month = today.Year(), today.Month()
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			return 0, 0, malformed(fmt.Errorf("invalid year %q", v))
		}
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			return 0, 0, malformed(fmt.Errorf("invalid month %q", v))
		}
	}
	return year, month, nil
}

// sanitizeInput trims and drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
