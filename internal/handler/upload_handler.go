package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/stem-dashboard-api/internal/ingest"
	"github.com/noah-isme/stem-dashboard-api/internal/middleware"
	"github.com/noah-isme/stem-dashboard-api/internal/models"
	"github.com/noah-isme/stem-dashboard-api/internal/service"
	appErrors "github.com/noah-isme/stem-dashboard-api/pkg/errors"
	"github.com/noah-isme/stem-dashboard-api/pkg/export"
	"github.com/noah-isme/stem-dashboard-api/pkg/response"
	"github.com/noah-isme/stem-dashboard-api/pkg/tabular"
)

const (
	uploadField       = "file"
	messageSuccess    = "Success."
	messageParseError = "Errors while parsing data."

	// multipartOverhead leaves room for boundaries and form fields on top
	// of the file itself.
	multipartOverhead = 1 << 20
)

type ingestor interface {
	Ingest(ctx context.Context, upload service.Upload) (*service.IngestionResult, error)
}

// UploadResponse is returned when an upload was stored.
type UploadResponse struct {
	Message string                 `json:"message"`
	Result  models.IngestionCounts `json:"result"`
}

// UploadErrorResponse lists every problem found in a rejected upload.
type UploadErrorResponse struct {
	Message string               `json:"message"`
	Errors  []ingest.ReportEntry `json:"errors,omitempty"`
}

// UploadHandler accepts student and enrollment exports.
type UploadHandler struct {
	service  ingestor
	maxBytes int64
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	now      func() time.Time
}

// NewUploadHandler constructs the handler. maxBytes <= 0 disables the limit.
func NewUploadHandler(service ingestor, maxBytes int64) *UploadHandler {
	return &UploadHandler{
		service:  service,
		maxBytes: maxBytes,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		now:      time.Now,
	}
}

// Upload godoc
// @Summary Upload a student or enrollment export
// @Description Validates every row and stores the file only when it has no errors.
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX export"
// @Param kind formData string false "csv or spreadsheet; inferred from the file extension when omitted"
// @Param report query string false "Render a rejected upload's errors as csv or pdf"
// @Success 200 {object} UploadResponse
// @Failure 400 {object} UploadErrorResponse
// @Failure 409 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /uploads [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	reportFormat := strings.ToLower(strings.TrimSpace(c.Query("report")))
	if reportFormat != "" && reportFormat != "csv" && reportFormat != "pdf" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "report must be csv or pdf"))
		return
	}

	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	}
	header, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.ErrPayloadTooLarge)
			return
		}
		unreadable(c)
		return
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		response.Error(c, appErrors.ErrPayloadTooLarge)
		return
	}

	kind, ok := uploadKind(c, header.Filename)
	if !ok {
		unreadable(c)
		return
	}

	file, err := header.Open()
	if err != nil {
		unreadable(c)
		return
	}
	defer file.Close()
	payload, err := io.ReadAll(file)
	if err != nil {
		unreadable(c)
		return
	}

	middleware.AuditDetail(c, "filename", header.Filename)
	middleware.AuditDetail(c, "kind", string(kind))

	result, err := h.service.Ingest(c.Request.Context(), service.Upload{
		Kind:     kind,
		Payload:  payload,
		Filename: header.Filename,
	})
	if err != nil {
		if errors.Is(err, appErrors.ErrSourceUnreadable) {
			middleware.AuditDetail(c, "outcome", "unreadable")
			unreadable(c)
			return
		}
		response.Error(c, err)
		return
	}

	middleware.AuditDetail(c, "outcome", string(result.Status))
	if !result.Committed() {
		middleware.AuditDetail(c, "errors", len(result.Report))
		if reportFormat != "" {
			h.attachReport(c, reportFormat, header.Filename, result.Report)
			return
		}
		c.JSON(http.StatusBadRequest, UploadErrorResponse{Message: messageParseError, Errors: result.Report})
		return
	}

	c.JSON(http.StatusOK, UploadResponse{Message: messageSuccess, Result: result.Counts})
}

func (h *UploadHandler) attachReport(c *gin.Context, format, filename string, report []ingest.ReportEntry) {
	data := reportDataset(report)
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if base == "" || base == "." {
		base = "upload"
	}

	switch format {
	case "pdf":
		subtitle := fmt.Sprintf("%s - %d errors - %s", filename, len(report), h.now().UTC().Format(time.RFC1123))
		body, err := h.pdf.Render(data, "Upload errors", subtitle, []float64{1, 1, 1.4, 6})
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report"))
			return
		}
		response.Attachment(c, http.StatusBadRequest, base+"-errors.pdf", "application/pdf", body)
	default:
		body, err := h.csv.Render(data)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report"))
			return
		}
		response.Attachment(c, http.StatusBadRequest, base+"-errors.csv", "text/csv", body)
	}
}

func reportDataset(report []ingest.ReportEntry) export.Dataset {
	data := export.Dataset{Headers: []string{"line_num", "col_num", "sheet", "error_message"}}
	for _, entry := range report {
		col := ""
		if entry.ColNum != nil {
			col = strconv.Itoa(*entry.ColNum)
		}
		data.Rows = append(data.Rows, map[string]string{
			"line_num":      strconv.Itoa(entry.LineNum),
			"col_num":       col,
			"sheet":         entry.Sheet,
			"error_message": entry.ErrorMessage,
		})
	}
	return data
}

// uploadKind reads kind from the form or query, falling back to the file
// extension.
func uploadKind(c *gin.Context, filename string) (tabular.Kind, bool) {
	raw := c.PostForm("kind")
	if raw == "" {
		raw = c.Query("kind")
	}
	if raw == "" {
		raw = filepath.Ext(filename)
	}
	return tabular.ParseKind(raw)
}

func unreadable(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusBadRequest, UploadErrorResponse{Message: appErrors.ErrSourceUnreadable.Message})
}
