package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/config"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/ingest"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/report"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/service"
)

const (
	uploadField     = "file"
	multipartMemory = 8 << 20
)

// Analyzer turns an uploaded dataset into a report.
type Analyzer interface {
	AnalyzeReader(ctx context.Context, r io.Reader, format ingest.Format) (report.Document, error)
}

// AnalyzeHandler serves the upload-and-analyze endpoint.
type AnalyzeHandler struct {
	logger   *slog.Logger
	analyzer Analyzer
	limiter  *rate.Limiter
	maxBytes int64
	timeout  time.Duration
}

// NewAnalyzeHandler constructs an AnalyzeHandler. A non-positive rate disables
// rate limiting.
func NewAnalyzeHandler(logger *slog.Logger, analyzer Analyzer, cfg config.AnalyzeConfig) *AnalyzeHandler {
	h := &AnalyzeHandler{
		logger:   logger,
		analyzer: analyzer,
		maxBytes: cfg.MaxUploadBytes(),
		timeout:  cfg.Timeout,
	}
	if cfg.RatePerMin > 0 {
		h.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMin)), cfg.RatePerMin)
	}
	return h
}

func (h *AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if h.limiter != nil && !h.limiter.Allow() {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(h.limiter)))
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	if h.maxBytes > 0 && r.ContentLength > h.maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds "+strconv.FormatInt(h.maxBytes, 10)+" bytes")
		return
	}
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart form upload")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing form field \""+uploadField+"\"")
		return
	}
	defer file.Close()

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	doc, err := h.analyzer.AnalyzeReader(ctx, file, ingest.FormatFromPath(header.Filename))
	if err != nil {
		h.writeAnalyzeError(w, header.Filename, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := report.Encode(w, doc, ""); err != nil {
		h.logger.Error("failed to encode report", "run_id", doc.RunID, "error", err)
	}
}

func (h *AnalyzeHandler) writeAnalyzeError(w http.ResponseWriter, filename string, err error) {
	var inputErr *service.InputError
	switch {
	case errors.As(err, &inputErr):
		writeError(w, http.StatusBadRequest, inputErr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("analysis timed out", "file", filename)
		writeError(w, http.StatusGatewayTimeout, "analysis timed out")
	case errors.Is(err, context.Canceled):
		// Client went away.
		h.logger.Info("analysis canceled", "file", filename)
	default:
		h.logger.Error("analysis failed", "file", filename, "error", err)
		writeError(w, http.StatusInternalServerError, "analysis failed")
	}
}

func retryAfterSeconds(l *rate.Limiter) int {
	secs := int(time.Duration(float64(time.Second) / float64(l.Limit())).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
