package http

import (
	"net/http"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/export"
	"fintrack/internal/log"
)

func (s *Server) handleMonthReport(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r.URL.Query(), s.today())
	if err != nil {
		writeError(w, r, err)
		return
	}
	ov, err := s.deps.Reports.Month(r.Context(), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// handleBudgetReport defaults to the current month.
func (s *Server) handleBudgetReport(w http.ResponseWriter, r *http.Request) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if month == "" {
		month = s.today().Format("2006-01")
	}
	statuses, err := s.deps.Reports.Budgets(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if statuses == nil {
		statuses = []core.BudgetStatus{}
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleLenderReport(w http.ResponseWriter, r *http.Request) {
	balances, err := s.deps.Reports.Lenders(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if balances == nil {
		balances = []core.LenderBalance{}
	}
	writeJSON(w, http.StatusOK, balances)
}

func (s *Server) handleAssetReport(w http.ResponseWriter, r *http.Request) {
	vals, err := s.deps.Reports.Assets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if vals == nil {
		vals = []core.AssetValuation{}
	}
	writeJSON(w, http.StatusOK, vals)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "csv", "text/csv; charset=utf-8", export.WriteCSV)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", export.WriteXLSX)
}

// export streams transactions in [from, to] as an attachment.
func (s *Server) export(w http.ResponseWriter, r *http.Request, ext, contentType string, write export.Writer) {
	f, err := parseTransactionFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := s.deps.Transactions.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(f.From, f.To, ext)+`"`)
	if err := write(w, txs); err != nil {
		// headers are already sent
		log.LogError(r.Context(), "Export failed", err, log.OpExport, log.LogFields{"format": ext})
	}
}
