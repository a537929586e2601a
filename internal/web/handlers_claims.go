package web

import (
	"fmt"
	"net/http"

	"github.com/JonMunkholm/claimdesk/internal/auth"
	"github.com/JonMunkholm/claimdesk/internal/web/templates"
)

// handleClaimList serves the claim list, or just the table when HTMX asks
// for it.
func (s *Server) handleClaimList(w http.ResponseWriter, r *http.Request) {
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

	if isHTMX(r) && r.Header.Get("HX-Target") == "claims-table" {
		s.render(w, r, http.StatusOK, templates.ClaimsTable(page))
		return
	}
	s.render(w, r, http.StatusOK, templates.ClaimsPage(page))
}

func (s *Server) handleClaimDetail(w http.ResponseWriter, r *http.Request) {
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

	if isHTMX(r) {
		s.render(w, r, http.StatusOK, templates.ClaimDetailPanel(view))
		return
	}
	s.render(w, r, http.StatusOK, templates.ClaimDetailPage(view))
}

// handleToggleFlag flips the flag and returns the fragment that was
// swapped: the table row, or the detail panel when view=detail.
func (s *Server) handleToggleFlag(w http.ResponseWriter, r *http.Request) {
	id, err := claimIDParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	claim, err := s.service.ToggleFlag(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	detailView := r.URL.Query().Get("view") == "detail"
	switch {
	case !isHTMX(r):
		back := fmt.Sprintf("/claims/%d", id)
		if !detailView {
			back = auth.SafeNext(refererPath(r), "/claims")
		}
		http.Redirect(w, r, back, http.StatusSeeOther)
	case detailView:
		view, err := s.service.GetClaim(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.render(w, r, http.StatusOK, templates.ClaimDetailPanel(view))
	default:
		s.render(w, r, http.StatusOK, templates.ClaimRow(claim))
	}
}

// handleAddNote stores a note and returns the claim's note list.
func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	id, err := claimIDParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	var form noteForm
	if err := decodeForm(r, &form); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	notes, err := s.service.AddNote(r.Context(), id, currentUser(r), form.Note)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if !isHTMX(r) {
		http.Redirect(w, r, fmt.Sprintf("/claims/%d", id), http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, templates.NotesList(id, notes))
}
