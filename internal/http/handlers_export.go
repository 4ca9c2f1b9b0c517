package http

import (
	"bytes"
	"net/http"

	"golang.org/x/sync/errgroup"

	"cashbook/internal/core"
	"cashbook/internal/export"
	"cashbook/internal/ledger"
	applog "cashbook/internal/log"
)

// handleExportJSON downloads the whole partition as an indented JSON
// document named cash_management_MM-DD-YY.json.
func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request, id core.Identity) {
	doc, err := s.ledger.Export(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Encode(&buf, doc); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().
		Header("Content-Disposition", `attachment; filename="`+export.Filename(doc.ExportedAt, s.ledger.Location())+`"`).
		Body("application/json; charset=utf-8", buf.Bytes()).
		Write(w)
}

// handleExportWorkbook renders the transactions and every report over the
// full history into one xlsx file. The reports are projected concurrently.
func (s *Server) handleExportWorkbook(w http.ResponseWriter, r *http.Request, id core.Identity) {
	doc, err := s.ledger.Export(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	kinds := ledger.ReportKinds()
	reports := make([]ledger.Report, len(kinds))
	g, gctx := errgroup.WithContext(r.Context())
	for i, kind := range kinds {
		g.Go(func() error {
			report, err := s.ledger.Report(gctx, id, kind, ledger.Criteria{})
			reports[i] = report
			return err
		})
	}
	if err := g.Wait(); err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, doc, reports...); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().
		Header("Content-Disposition", `attachment; filename="`+export.WorkbookFilename(doc.ExportedAt, s.ledger.Location())+`"`).
		Body("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes()).
		Write(w)
}

type importResponse struct {
	Imported int           `json:"imported"`
	Views    *ledger.Views `json:"views,omitempty"`
}

// handleImport replaces the partition with an uploaded export document.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, id core.Identity) {
	doc, err := export.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.ledger.Import(r.Context(), id, doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Ledger imported",
		applog.FieldIdentity, id.Key, "count", n)

	resp := importResponse{Imported: n}
	views, err := s.ledger.Views(r.Context(), id, ledger.Criteria{})
	if err != nil {
		s.structured.LogError(r.Context(), "View recompute failed after commit", err, applog.ComponentLedger, applog.OpImport,
			applog.NewFields().WithErrorType(applog.ErrorTypeDatabase))
	} else {
		resp.Views = &views
	}
	NewResponse().
		TriggerLedgerChanged(applog.OpImport, "").
		JSON(resp).
		Write(w)
}
