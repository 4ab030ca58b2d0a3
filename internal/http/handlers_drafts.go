package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"fintrack/internal/ai"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

const maxImageBytes = 10 << 20

type draftTextRequest struct {
	Text string `json:"text"`
}

type draftsBody struct {
	Drafts []ai.Draft `json:"drafts"`
}

// handleDraftText turns free text into drafts for review. Nothing is saved.
func (s *Server) handleDraftText(w http.ResponseWriter, r *http.Request) {
	if s.deps.Parser == nil {
		writeError(w, r, errAIDisabled)
		return
	}
	var req draftTextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	drafts, err := s.deps.Parser.ParseText(r.Context(), req.Text, s.today())
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Parsed text drafts", log.FieldOperation, log.OpParse, log.FieldCount, len(drafts))
	writeJSON(w, http.StatusOK, draftsBody{Drafts: drafts})
}

// handleDraftImage reads a receipt image from the multipart field "file".
func (s *Server) handleDraftImage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Parser == nil {
		writeError(w, r, errAIDisabled)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+1<<20)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeError(w, r, malformed(fmt.Errorf("read upload: %w", err)))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, malformed(errors.New(`missing multipart field "file"`)))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		writeError(w, r, malformed(fmt.Errorf("read upload: %w", err)))
		return
	}
	if len(data) > maxImageBytes {
		writeError(w, r, malformed(errors.New("image larger than 10MB")))
		return
	}

	drafts, err := s.deps.Parser.ParseImage(r.Context(), data, s.today())
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Parsed image drafts", log.FieldOperation, log.OpParse, log.FieldCount, len(drafts))
	writeJSON(w, http.StatusOK, draftsBody{Drafts: drafts})
}

// handleDraftCommit saves reviewed drafts through the regular create path.
// It stops at the first invalid draft; earlier ones stay saved and are
// returned alongside the error.
func (s *Server) handleDraftCommit(w http.ResponseWriter, r *http.Request) {
	var req draftsBody
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Drafts) == 0 {
		writeError(w, r, ai.ErrNoDrafts)
		return
	}
	txs := make([]core.Transaction, len(req.Drafts))
	for i, d := range req.Drafts {
		txs[i] = d.Transaction()
	}
	saved, err := s.deps.Transactions.CreateMany(r.Context(), txs)
	if err != nil {
		status, msg := statusFor(err), err.Error()
		if status == http.StatusInternalServerError {
			log.LogError(r.Context(), "Draft commit failed", err, log.OpCreate,
				log.LogFields{log.FieldCount: len(saved)})
			msg = "internal error"
		}
		writeJSON(w, status, map[string]any{
			"error":        msg,
			"transactions": saved,
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"transactions": saved})
}
