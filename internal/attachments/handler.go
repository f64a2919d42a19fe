package attachments

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/tenantctx"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/response"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/storage"
)

// Handler issues pre-signed attachment URLs and accepts direct uploads.
// Object keys carry the tenant prefix, and every key a client presents is
// checked against the caller's tenant before any URL is signed.
type Handler struct {
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates an attachments handler.
func NewHandler(s3 *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{s3: s3, logger: logger}
}

type uploadURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

type downloadURLRequest struct {
	Key string `json:"key" binding:"required"`
}

// keyBelongsToTenant checks the attachments/{tenant}/ prefix.
func keyBelongsToTenant(key, tenantID string) bool {
	return strings.HasPrefix(key, storage.FolderAttachments+"/"+tenantID+"/")
}

// UploadURL handles POST /attachments/upload-url.
func (h *Handler) UploadURL(c *gin.Context) {
	var req uploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "filename and content_type required")
		return
	}
	if !storage.ValidateAttachmentType(req.ContentType) {
		response.BadRequest(c, "unsupported content type")
		return
	}
	tenantID, err := tenantctx.Current(c.Request.Context())
	if err != nil {
		response.Internal(c, "could not issue upload url")
		return
	}

	key := storage.AttachmentKey(tenantID, uuid.New().String(), req.Filename)
	url, err := h.s3.PresignUpload(c.Request.Context(), key, req.ContentType)
	if err != nil {
		h.logger.Error("presign upload failed", zap.Error(err))
		response.Internal(c, "could not issue upload url")
		return
	}
	response.OK(c, gin.H{"key": key, "upload_url": url, "max_size": storage.MaxAttachmentSize})
}

// DownloadURL handles POST /attachments/download-url.
func (h *Handler) DownloadURL(c *gin.Context) {
	var req downloadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "key required")
		return
	}
	tenantID, err := tenantctx.Current(c.Request.Context())
	if err != nil {
		response.Internal(c, "could not issue download url")
		return
	}
	if !keyBelongsToTenant(req.Key, tenantID) {
		response.Forbidden(c, "attachment belongs to another tenant")
		return
	}

	url, err := h.s3.PresignDownload(c.Request.Context(), req.Key)
	if err != nil {
		h.logger.Error("presign download failed", zap.Error(err))
		response.Internal(c, "could not issue download url")
		return
	}
	response.OK(c, gin.H{"key": req.Key, "download_url": url})
}

// Upload handles POST /attachments: a direct multipart upload for clients
// that cannot PUT to a pre-signed URL.
func (h *Handler) Upload(c *gin.Context) {
	tenantID, err := tenantctx.Current(c.Request.Context())
	if err != nil {
		response.Internal(c, "could not upload attachment")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file field required")
		return
	}
	defer file.Close()

	if header.Size > storage.MaxAttachmentSize {
		response.BadRequest(c, "file too large")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !storage.ValidateAttachmentType(contentType) {
		response.BadRequest(c, "unsupported content type")
		return
	}

	key := storage.AttachmentKey(tenantID, uuid.New().String(), header.Filename)
	if _, err := h.s3.Upload(c.Request.Context(), key, contentType, file); err != nil {
		h.logger.Error("attachment upload failed", zap.Error(err))
		response.Internal(c, "could not upload attachment")
		return
	}
	response.Created(c, gin.H{"key": key, "size": header.Size})
}
