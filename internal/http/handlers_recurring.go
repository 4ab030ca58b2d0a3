package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

type ruleRequest struct {
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Amount      core.Money `json:"amount"`
	Frequency   string     `json:"frequency"`
	NextDueDate core.Date  `json:"nextDueDate"`
	// Active defaults to true when omitted.
	Active *bool `json:"active"`
}

func (req ruleRequest) rule(id string) (core.RecurringRule, error) {
	freq, err := core.ParseFrequency(req.Frequency)
	if err != nil {
		return core.RecurringRule{}, err
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return core.RecurringRule{
		ID:          id,
		Description: sanitizeInput(req.Description),
		Category:    sanitizeInput(req.Category),
		Amount:      req.Amount,
		Frequency:   freq,
		NextDueDate: req.NextDueDate,
		Active:      active,
	}, nil
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.deps.Repo.ListRules(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rules == nil {
		rules = []core.RecurringRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.deps.Repo.GetRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// handleCreateRule saves the rule and materializes anything already due,
// answering with the rule as it stands afterwards.
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := req.rule("")
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.deps.Repo.AddRule(r.Context(), rule)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Recurring rule created", log.FieldRuleID, saved.ID)

	s.runRecurring(r.Context())
	w.Header().Set("Location", "/api/recurring/"+saved.ID)
	writeJSON(w, http.StatusCreated, s.reloadRule(r, saved))
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := req.rule(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.deps.Repo.UpdateRule(r.Context(), rule)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.runRecurring(r.Context())
	writeJSON(w, http.StatusOK, s.reloadRule(r, saved))
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Repo.DeleteRule(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	noContent(w)
}

// handleRunRecurring runs the materializer now and returns how many
// transactions it generated.
func (s *Server) handleRunRecurring(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recurring == nil {
		writeJSON(w, http.StatusOK, map[string]int{"generated": 0})
		return
	}
	n, err := s.deps.Recurring.Run(r.Context(), s.deps.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"generated": n})
}

// reloadRule returns the stored rule after a materialization run, falling
// back to fallback if it can no longer be read.
func (s *Server) reloadRule(r *http.Request, fallback core.RecurringRule) core.RecurringRule {
	rule, err := s.deps.Repo.GetRule(r.Context(), fallback.ID)
	if err != nil {
		return fallback
	}
	return rule
}
