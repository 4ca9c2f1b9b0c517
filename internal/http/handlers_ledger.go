package http

import (
	"net/http"
	"strconv"

	"cashbook/internal/core"
	"cashbook/internal/ledger"
	applog "cashbook/internal/log"
	"cashbook/internal/store"
)

// mutationResponse carries the changed record together with the views
// recomputed after the change.
// Views is absent when the recompute failed after the change was committed.
type mutationResponse struct {
	Transaction *core.Transaction `json:"transaction,omitempty"`
	Views       *ledger.Views     `json:"views,omitempty"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, id core.Identity) {
	c, err := ParseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, err := s.ledger.List(r.Context(), id, c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(records).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request, id core.Identity) {
	tx, err := s.ledger.Get(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(tx).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, id core.Identity) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	draft, err := p.Draft()
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.ledger.Add(r.Context(), id, draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logMutation(r, id, applog.OpCreate, tx)
	s.respondMutation(w, r, id, http.StatusCreated, applog.OpCreate, &tx)
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request, id core.Identity) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	draft, err := p.Draft()
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.ledger.Edit(r.Context(), id, r.PathValue("id"), draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logMutation(r, id, applog.OpUpdate, tx)
	s.respondMutation(w, r, id, http.StatusOK, applog.OpUpdate, &tx)
}

// handleDeleteTransaction requires ?confirm=true; without it the request is
// refused with 409 and nothing changes.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, id core.Identity) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	txID := r.PathValue("id")
	if err := s.ledger.Delete(r.Context(), id, txID, confirmed); err != nil {
		writeError(w, r, err)
		return
	}
	s.structured.LogLedgerChange(r.Context(), applog.OpDelete, store.TransactionsOf(id.Key).String(), txID, "", "")
	s.respondMutation(w, r, id, http.StatusOK, applog.OpDelete, nil)
}

// respondMutation recomputes the default views so the client can redraw
// without a second request. The change is already committed, so a failed
// recompute is logged and the response keeps its success status.
func (s *Server) respondMutation(w http.ResponseWriter, r *http.Request, id core.Identity, status int, op string, tx *core.Transaction) {
	resp := mutationResponse{Transaction: tx}
	views, err := s.ledger.Views(r.Context(), id, ledger.Criteria{})
	if err != nil {
		s.structured.LogError(r.Context(), "View recompute failed after commit", err, applog.ComponentLedger, op,
			applog.NewFields().WithErrorType(applog.ErrorTypeDatabase))
	} else {
		resp.Views = &views
	}
	txID := r.PathValue("id")
	if tx != nil {
		txID = tx.ID
	}
	NewResponse().Status(status).
		TriggerLedgerChanged(op, txID).
		JSON(resp).
		Write(w)
}

func (s *Server) logMutation(r *http.Request, id core.Identity, op string, tx core.Transaction) {
	s.structured.LogLedgerChange(r.Context(), op, store.TransactionsOf(id.Key).String(), tx.ID, string(tx.Category), tx.Amount.String())
}

func (s *Server) handleViews(w http.ResponseWriter, r *http.Request, id core.Identity) {
	c, err := ParseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	views, err := s.ledger.Views(r.Context(), id, c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(views).Write(w)
}

type reportKindView struct {
	Kind  ledger.ReportKind `json:"kind"`
	Title string            `json:"title"`
}

func (s *Server) handleReportKinds(w http.ResponseWriter, r *http.Request, _ core.Identity) {
	kinds := ledger.ReportKinds()
	out := make([]reportKindView, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, reportKindView{Kind: k, Title: k.Title()})
	}
	NewResponse().JSON(out).Write(w)
}

type reportResponse struct {
	ledger.Report
	Columns []string   `json:"columns"`
	Cells   [][]string `json:"cells"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, id core.Identity) {
	kind, err := ledger.ParseReportKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := ParseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.ledger.Report(r.Context(), id, kind, c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cells := make([][]string, 0, len(report.Rows))
	for _, row := range report.Rows {
		cells = append(cells, report.Cells(row))
	}
	NewResponse().JSON(reportResponse{Report: report, Columns: report.Columns(), Cells: cells}).Write(w)
}
