package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/JonMunkholm/claimdesk/internal/core"
	"github.com/JonMunkholm/claimdesk/internal/logging"
	"github.com/JonMunkholm/claimdesk/internal/web/templates"
)

// multipartMemory is how much of an upload is held in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.DashboardStats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, templates.DashboardPage(stats, s.service.ImportStatus()))
}

func (s *Server) handleUploadPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, templates.UploadPage(s.uploadView(nil, "")))
}

func (s *Server) uploadView(report *core.ImportReport, errMsg string) templates.UploadView {
	mode, policy := s.service.ImportDefaults()
	if report != nil {
		mode, policy = report.Mode, report.Policy
	}
	return templates.UploadView{
		Report:      report,
		Error:       errMsg,
		MaxFileSize: s.cfg.Import.MaxFileSize,
		Mode:        mode,
		Policy:      policy,
	}
}

// handleUpload runs an import from the admin form. A finished import,
// committed or not, is answered with its report; a rejected one with an
// error.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	report, err := s.runUploadedImport(w, r)
	if report == nil {
		s.fail(w, r, err)
		return
	}

	status := http.StatusOK
	if !report.Committed {
		status = http.StatusUnprocessableEntity
	}
	if isHTMX(r) {
		s.render(w, r, status, templates.ImportResult(report, ""))
		return
	}
	s.render(w, r, status, templates.UploadPage(s.uploadView(report, "")))
}

// runUploadedImport reads the multipart request and imports it. Both the
// admin form and the API post the same fields: claims and details files,
// and optional mode, policy and format.
func (s *Server) runUploadedImport(w http.ResponseWriter, r *http.Request) (*core.ImportReport, error) {
	maxSize := s.cfg.Import.MaxFileSize
	// Two files plus form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, 2*maxSize+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mb *http.MaxBytesError
		if errors.As(err, &mb) {
			return nil, fmt.Errorf("%w: %w", errFileTooLarge, err)
		}
		return nil, fmt.Errorf("%w: %w", errNoFile, err)
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logging.FromContext(r.Context()).Warn("remove multipart temp files", "error", err)
		}
	}()

	var form importForm
	if err := decodeForm(r, &form); err != nil {
		return nil, err
	}
	mode, policy, err := form.options()
	if err != nil {
		return nil, err
	}
	format, err := core.ParseFormat(form.Format)
	if err != nil {
		return nil, &core.FormatError{Source: "format", Reason: err.Error(), Err: err}
	}

	claims, err := openUpload(r, "claims", maxSize)
	if err != nil {
		return nil, err
	}
	defer claims.Close()
	details, err := openUpload(r, "details", maxSize)
	if err != nil {
		return nil, err
	}
	defer details.Close()

	return s.service.Import(r.Context(), core.ImportRequest{
		Claims:  core.Source{Name: claims.name, Reader: claims, Format: format},
		Details: core.Source{Name: details.name, Reader: details, Format: format},
		Mode:    mode,
		Policy:  policy,
	})
}

type uploadedFile struct {
	multipart.File
	name string
}

func openUpload(r *http.Request, field string, maxSize int64) (*uploadedFile, error) {
	f, header, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%w: %s file", errNoFile, field)
	}
	if header.Size > maxSize {
		f.Close()
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", errFileTooLarge, header.Filename, header.Size, maxSize)
	}
	return &uploadedFile{File: f, name: header.Filename}, nil
}
