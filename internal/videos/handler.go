package videos

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vigila/backend/pkg/response"
	"github.com/vigila/backend/pkg/storage"
)

// FormField is the multipart field carrying the uploaded video.
const FormField = "video"

// Handler handles video HTTP endpoints.
type Handler struct {
	svc            *Service
	uploadDir      string
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewHandler creates a videos handler. Uploads are saved under uploadDir before ingestion.
func NewHandler(svc *Service, uploadDir string, maxUploadBytes int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, uploadDir: uploadDir, maxUploadBytes: maxUploadBytes, logger: logger}
}

// Upload handles POST /upload (multipart field "video").
func (h *Handler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	file, err := c.FormFile(FormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.TooLarge(c, fmt.Sprintf("file exceeds %d bytes limit", h.maxUploadBytes))
			return
		}
		response.BadRequest(c, ErrNoFile.Error())
		return
	}

	tempPath := filepath.Join(h.uploadDir, uuid.NewString())
	if err := c.SaveUploadedFile(file, tempPath); err != nil {
		h.logger.Error("save uploaded file failed", zap.Error(err), zap.String("path", tempPath))
		response.Internal(c, "failed to save uploaded file")
		return
	}

	res, err := h.svc.Ingest(c.Request.Context(), &Upload{
		TempPath:    tempPath,
		Filename:    uploadFilename(file),
		Size:        file.Size,
		ContentType: file.Header.Get("Content-Type"),
	})
	if err != nil {
		h.fail(c, err, "error uploading video")
		return
	}
	response.OK(c, gin.H{"message": "Video uploaded successfully", "video": res})
}

// List handles GET /videos.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.fail(c, err, "error listing videos")
		return
	}
	response.OK(c, gin.H{"count": len(list), "videos": list})
}

// Download handles GET /videos/:id/download and streams the stored object.
func (h *Handler) Download(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid video id")
		return
	}
	dl, err := h.svc.Open(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "error downloading video")
		return
	}
	defer dl.Object.Body.Close()

	contentType := dl.Object.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, dl.Object.Size, contentType, dl.Object.Body, map[string]string{
		"Content-Disposition": ContentDisposition(dl.Video.Filename),
	})
}

// Stats handles GET /stats.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err, "error computing statistics")
		return
	}
	response.OK(c, gin.H{"statistics": stats})
}

// fail maps service errors to HTTP responses.
func (h *Handler) fail(c *gin.Context, err error, msg string) {
	var (
		we *storage.WriteError
		re *storage.ReadError
	)
	switch {
	case errors.Is(err, ErrNoFile):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, storage.ErrNotConfigured):
		response.ServiceUnavailable(c, "storage not configured in this deployment")
	case errors.As(err, &we):
		response.BadGateway(c, msg+": "+err.Error())
	case errors.As(err, &re) && re.NotFound:
		response.NotFound(c, "video content not found in storage")
	case errors.As(err, &re):
		response.BadGateway(c, msg+": "+err.Error())
	default:
		h.logger.Error(msg, zap.Error(err), zap.String("path", c.FullPath()))
		response.Internal(c, msg)
	}
}

// uploadFilename returns the filename as the client sent it. FileHeader.Filename
// keeps only the last path element, so the raw Content-Disposition value wins.
func uploadFilename(fh *multipart.FileHeader) string {
	_, params, err := mime.ParseMediaType(fh.Header.Get("Content-Disposition"))
	if err == nil && params["filename"] != "" {
		return params["filename"]
	}
	return fh.Filename
}

// ContentDisposition returns an attachment header naming filename.
func ContentDisposition(filename string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(filename)
	return fmt.Sprintf(`attachment; filename="%s"`, escaped)
}
