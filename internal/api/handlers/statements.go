package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/spendlens/internal/api/middleware"
	"github.com/dvloznov/spendlens/internal/archive"
	"github.com/dvloznov/spendlens/internal/jobs"
)

// maxStatementBytes caps uploaded statement size at 32 MiB.
const maxStatementBytes = 32 << 20

// StatementsHandler handles bank statement uploads. The document is archived
// first and parsed asynchronously by the job worker.
type StatementsHandler struct {
	archive   archive.Service
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(archive archive.Service, publisher jobs.Publisher, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{
		archive:   archive,
		publisher: publisher,
		log:       log,
	}
}

// UploadStatement handles POST /api/statements
// Accepts a multipart form with a "file" field. The PDF is archived, an
// ingestion job is enqueued and 202 comes back with the job id to poll.
func (h *StatementsHandler) UploadStatement(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Statement uploads are not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxStatementBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "A multipart 'file' field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Uploaded file is empty")
		return
	}

	ctx := r.Context()
	filename := filepath.Base(header.Filename)

	uri, err := h.archive.Store(ctx, filename, data)
	if err != nil {
		h.log.Error().Err(err).Str("filename", filename).Msg("Failed to archive statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to archive statement")
		return
	}

	autoCategorize := true
	if v := r.FormValue("auto_categorize"); v != "" {
		autoCategorize, err = strconv.ParseBool(v)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid auto_categorize value")
			return
		}
	}

	job := &jobs.IngestStatementJob{
		DocumentURI:    uri,
		Filename:       filename,
		AutoCategorize: autoCategorize,
	}
	if err := h.publisher.PublishIngestStatement(ctx, job); err != nil {
		h.log.Error().Err(err).Str("document_uri", uri).Msg("Failed to enqueue ingestion job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue ingestion job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("document_uri", uri).
		Str("filename", filename).
		Msg("Statement ingestion enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":       job.JobID,
		"document_uri": uri,
		"status":       string(job.Status),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		DocumentURI: query.Get("document_uri"),
		Status:      jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
