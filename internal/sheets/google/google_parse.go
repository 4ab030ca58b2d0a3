package google

import (
	"fmt"
	"strconv"
	"strings"

	"fintrack/internal/core"
)

// header is the first row of every yearly sheet.
var header = []any{"Date", "Description", "Amount", "Category", "PaymentMethod", "ID"}

const idColumn = 5

// rowFor renders tx in column order. Amounts go out as numbers so the
// sheet can sum them.
func rowFor(tx core.Transaction) []any {
	return []any{
		tx.Date.String(),
		tx.Description,
		tx.Amount.Decimal().InexactFloat64(),
		tx.Category,
		tx.PaymentMethod,
		tx.ID,
	}
}

// idsFromColumn collects the non-empty ids of a single-column read,
// skipping the header cell.
func idsFromColumn(values [][]any) map[string]struct{} {
	ids := make(map[string]struct{}, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		v := strings.TrimSpace(fmt.Sprint(row[0]))
		if v == "" || (i == 0 && strings.EqualFold(v, "ID")) {
			continue
		}
		ids[v] = struct{}{}
	}
	return ids
}

// findRow returns the zero-based row index holding id, or -1.
func findRow(values [][]any, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i
		}
	}
	return -1
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if _, ok := sheetYear(base); ok {
		return base
	}
	return fmt.Sprintf("%d %s", year, base)
}

// sheetYear extracts the leading year of a "<year> <base>" title.
func sheetYear(title string) (int, bool) {
	if len(title) < 5 || title[4] != ' ' {
		return 0, false
	}
	y, err := strconv.Atoi(title[:4])
	if err != nil || y <= 1900 || y >= 3000 {
		return 0, false
	}
	return y, true
}

// isYearSheet reports whether title is one of the yearly sheets for base.
func isYearSheet(title, base string) bool {
	if _, ok := sheetYear(title); !ok {
		return false
	}
	return strings.TrimSpace(title[5:]) == strings.TrimSpace(base)
}

// a1 quotes the sheet title for A1 notation.
func a1(title, cols string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(title, "'", "''"), cols)
}
