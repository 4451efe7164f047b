package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"loadprofile/internal/audit"
	"loadprofile/internal/auth"
	"loadprofile/internal/consolidation/application"
	consolidation "loadprofile/internal/consolidation/domain"
	"loadprofile/internal/consolidation/interfaces"
	"loadprofile/internal/observability/metrics"
)

const (
	basePath = "/api/v1/consolidations"

	defaultMaxUploadBytes = 64 << 20
	multipartMemory       = 8 << 20
	defaultListLimit      = 50
)

// Handler serves consolidation runs.
type Handler struct {
	service        *application.Service
	maxUploadBytes int64
}

// Option configures the handler.
type Option func(*Handler)

// WithMaxUploadBytes bounds the request body.
func WithMaxUploadBytes(limit int64) Option {
	return func(h *Handler) {
		if limit > 0 {
			h.maxUploadBytes = limit
		}
	}
}

// NewHandler constructs a Handler.
func NewHandler(service *application.Service, opts ...Option) (*Handler, error) {
	if service == nil {
		return nil, errors.New("consolidation handler: nil service")
	}
	h := &Handler{service: service, maxUploadBytes: defaultMaxUploadBytes}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// ServeHTTP routes consolidation requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == basePath {
		switch r.Method {
		case http.MethodPost:
			h.handleCreate(w, r)
		case http.MethodGet:
			h.handleList(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}
	id := strings.TrimPrefix(r.URL.Path, basePath+"/")
	if id == r.URL.Path || id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.handleGet(w, r, id)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	format, err := interfaces.ParseFormat(r.FormValue("format"))
	if err != nil {
		http.Error(w, "format must be json, csv, xlsx or pdf", http.StatusBadRequest)
		return
	}
	year, err := strconv.Atoi(strings.TrimSpace(r.FormValue("year")))
	if err != nil {
		http.Error(w, "year is required", http.StatusBadRequest)
		return
	}
	month, err := strconv.Atoi(strings.TrimSpace(r.FormValue("month")))
	if err != nil {
		http.Error(w, "month is required", http.StatusBadRequest)
		return
	}
	var factors map[string]float64
	if raw := strings.TrimSpace(r.FormValue("factors")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &factors); err != nil {
			http.Error(w, "factors must be a JSON object of numbers", http.StatusBadRequest)
			return
		}
	}
	holidayPolicy := application.HolidayPolicy(r.FormValue("holiday_policy"))
	switch holidayPolicy {
	case "", application.HolidayStrict, application.HolidayLenient:
	default:
		http.Error(w, "holiday_policy must be strict or lenient", http.StatusBadRequest)
		return
	}

	files, err := readFiles(r.MultipartForm.File["files"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var supplementary []byte
	if headers := r.MultipartForm.File["supplementary"]; len(headers) > 0 {
		supplementary, err = readPart(headers[0])
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	result, err := h.service.Consolidate(r.Context(), application.ConsolidateCommand{
		TenantID:      auth.TenantIDFromContext(r.Context()),
		Actor:         auth.SubjectFromContext(r.Context()),
		Year:          year,
		Month:         time.Month(month),
		Holidays:      r.FormValue("holidays"),
		HolidayPolicy: holidayPolicy,
		Profile:       r.FormValue("profile"),
		Files:         files,
		Supplementary: supplementary,
		Factors:       factors,
		ClientIP:      audit.ClientIP(r),
		UserAgent:     audit.UserAgent(r),
	})
	switch {
	case errors.Is(err, consolidation.ErrNoChannelsProvided) && result != nil:
		writeJSON(w, http.StatusUnprocessableEntity, struct {
			Error string `json:"error"`
			interfaces.TableView
		}{Error: err.Error(), TableView: interfaces.NewTableView(result.Run, result.Table)})
		return
	case err != nil:
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	h.writeTable(w, format, result)
}

func (h *Handler) writeTable(w http.ResponseWriter, format interfaces.Format, result *application.Result) {
	started := time.Now()
	outcome := "success"
	defer func() {
		metrics.ObserveExport(string(format), outcome, time.Since(started))
	}()

	var (
		body []byte
		err  error
	)
	switch format {
	case interfaces.FormatJSON:
		w.Header().Set("Location", basePath+"/"+result.Run.ID)
		writeJSON(w, http.StatusCreated, interfaces.NewTableView(result.Run, result.Table))
		return
	case interfaces.FormatCSV:
		var buf bytes.Buffer
		err = interfaces.WriteCSV(&buf, result.Table)
		body = buf.Bytes()
	case interfaces.FormatXLSX:
		body, err = interfaces.BuildXLSX(result.Run, result.Table)
	case interfaces.FormatPDF:
		body, err = interfaces.BuildSummaryPDF(result.Run, result.Table)
	}
	if err != nil {
		outcome = "error"
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.FileName(result.Table)))
	w.Header().Set("X-Run-ID", result.Run.ID)
	w.Header().Set("Location", basePath+"/"+result.Run.ID)
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := consolidation.RunFilter{
		TenantID: auth.TenantIDFromContext(r.Context()),
		Limit:    defaultListLimit,
	}
	query := r.URL.Query()
	for key, target := range map[string]*int{"year": &filter.Year, "month": &filter.Month, "limit": &filter.Limit} {
		raw := query.Get(key)
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			http.Error(w, key+" must be a non-negative integer", http.StatusBadRequest)
			return
		}
		*target = value
	}
	runs, err := h.service.List(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*consolidation.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	run, err := h.service.Get(r.Context(), auth.TenantIDFromContext(r.Context()), id)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, consolidation.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, consolidation.ErrInvalidMonth),
		errors.Is(err, consolidation.ErrInvalidHolidayFormat),
		errors.Is(err, consolidation.ErrInvalidFactor),
		errors.Is(err, consolidation.ErrEmptyChannelID),
		errors.Is(err, consolidation.ErrUnknownTariffRule),
		errors.Is(err, consolidation.ErrUnknownPolicy),
		errors.Is(err, consolidation.ErrUnknownProfile):
		return http.StatusBadRequest
	case errors.Is(err, consolidation.ErrNoChannelsProvided):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func readFiles(headers []*multipart.FileHeader) ([]application.ChannelFile, error) {
	files := make([]application.ChannelFile, 0, len(headers))
	for _, header := range headers {
		data, err := readPart(header)
		if err != nil {
			return nil, err
		}
		files = append(files, application.ChannelFile{Name: path.Base(header.Filename), Data: data})
	}
	return files, nil
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", header.Filename, err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", header.Filename, err)
	}
	return data, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
