package web

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/claimdesk/internal/core"
	"github.com/JonMunkholm/claimdesk/internal/logging"
)

// claimJSON is the API representation of a claim. Amounts are decimal
// strings so no precision is lost.
type claimJSON struct {
	ID            int64           `json:"id"`
	PatientName   string          `json:"patient_name"`
	BilledAmount  decimal.Decimal `json:"billed_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Underpayment  decimal.Decimal `json:"underpayment"`
	Status        string          `json:"status"`
	InsurerName   string          `json:"insurer_name"`
	DischargeDate string          `json:"discharge_date"`
	Flagged       bool            `json:"flagged"`
	Detail        *detailJSON     `json:"detail,omitempty"`
}

type detailJSON struct {
	DenialReason string   `json:"denial_reason"`
	CPTCodes     []string `json:"cpt_codes"`
}

type noteJSON struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type claimPageJSON struct {
	Claims     []claimJSON `json:"claims"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
	TotalRows  int64       `json:"total_rows"`
}

type claimViewJSON struct {
	claimJSON
	Notes []noteJSON `json:"notes"`
}

func toClaimJSON(c core.Claim) claimJSON {
	out := claimJSON{
		ID:            c.ID,
		PatientName:   c.PatientName,
		BilledAmount:  c.BilledAmount.Round(2),
		PaidAmount:    c.PaidAmount.Round(2),
		Underpayment:  c.Underpayment().Round(2),
		Status:        c.Status,
		InsurerName:   c.InsurerName,
		DischargeDate: c.DischargeDate.Format(time.DateOnly),
		Flagged:       c.Flagged,
	}
	if c.Detail != nil {
		codes := c.Detail.CPTCodeList()
		if codes == nil {
			codes = []string{}
		}
		out.Detail = &detailJSON{DenialReason: c.Detail.DenialReason, CPTCodes: codes}
	}
	return out
}

func (s *Server) handleAPIListClaims(w http.ResponseWriter, r *http.Request) {
	var form claimListForm
	if err := decodeQuery(r, &form); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	page, err := s.service.ListClaims(r.Context(), form.query())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := claimPageJSON{
		Claims:     make([]claimJSON, 0, len(page.Claims)),
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
		TotalRows:  page.TotalRows,
	}
	for _, c := range page.Claims {
		out.Claims = append(out.Claims, toClaimJSON(c))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleAPIGetClaim(w http.ResponseWriter, r *http.Request) {
	id, err := claimIDParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	view, err := s.service.GetClaim(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := claimViewJSON{claimJSON: toClaimJSON(view.Claim), Notes: make([]noteJSON, 0, len(view.Notes))}
	for _, n := range view.Notes {
		out.Notes = append(out.Notes, noteJSON{ID: n.ID, Author: n.AuthorName, Text: n.Text, CreatedAt: n.CreatedAt})
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleAPIImport runs an import from a multipart request and answers with
// the report. An aborted import is answered with 422 and its report.
func (s *Server) handleAPIImport(w http.ResponseWriter, r *http.Request) {
	report, err := s.runUploadedImport(w, r)
	if report == nil {
		s.fail(w, r, err)
		return
	}

	status := http.StatusOK
	if !report.Committed {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, r, status, report)
}

func (s *Server) handleAPIImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.ImportStatus())
}

// handleHealth reports whether the database answers. While an import runs
// its open transaction already shows that, and on SQLite a ping would wait
// for the import to commit.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.service.ImportStatus().Running {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok", "import": "running"})
		return
	}
	if err := s.service.Ping(r.Context()); err != nil {
		logging.FromContext(r.Context()).Error("health check failed", "error", err)
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
