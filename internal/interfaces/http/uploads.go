package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/moreiraracing/taller-motos/internal/cloudinary"
	"github.com/moreiraracing/taller-motos/pkg/utils"
)

const (
	servicesUploadDir   = "services"
	defaultRemoteFolder = "taller-motos"
)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif", "image/svg+xml"}

var (
	errNotAnImage = errors.New("only image files are allowed")
	errTooLarge   = errors.New("file too large")
)

// uploadedFile is a multipart file read into memory and checked
type uploadedFile struct {
	Name    string
	Content []byte
}

// readUpload reads the named multipart field. A missing field returns nil
// without error.
func (h *Handlers) readUpload(c *gin.Context, fields ...string) (*uploadedFile, error) {
	var header *multipart.FileHeader
	for _, field := range fields {
		if fh, err := c.FormFile(field); err == nil {
			header = fh
			break
		}
	}
	if header == nil {
		return nil, nil
	}
	if header.Size > h.deps.MaxUploadSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", errTooLarge, header.Size, h.deps.MaxUploadSize)
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, h.deps.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(content)) > h.deps.MaxUploadSize {
		return nil, fmt.Errorf("%w: limit %d bytes", errTooLarge, h.deps.MaxUploadSize)
	}

	return &uploadedFile{
		Name:    header.Filename,
		Content: content,
	}, nil
}

func isAllowedImage(content []byte) bool {
	detected := mimetype.Detect(content)
	for _, allowed := range allowedImageTypes {
		if detected.Is(allowed) {
			return true
		}
	}
	return false
}

// storeLocal writes the file under uploads/services and returns its
// site-relative reference
func (h *Handlers) storeLocal(file *uploadedFile) (string, error) {
	name := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), utils.SanitizeFileName(file.Name))
	if _, err := h.deps.Uploads.SaveFile(path.Join(servicesUploadDir, name), file.Content); err != nil {
		return "", err
	}
	return "/uploads/" + servicesUploadDir + "/" + name, nil
}

// storeServiceImage stores an uploaded service photo, on Cloudinary when it
// is configured and locally otherwise or when the remote upload fails.
func (h *Handlers) storeServiceImage(c *gin.Context, file *uploadedFile) (string, error) {
	if h.deps.Features.CloudinaryEnabled && h.deps.Uploader != nil {
		res, err := h.deps.Uploader.Upload(c.Request.Context(), file.Name, file.Content, path.Join(h.deps.RemoteFolder, "services"))
		if err == nil && res.SecureURL != "" {
			return res.SecureURL, nil
		}
		h.logger.Error("Cloudinary upload failed, keeping image locally", "file", file.Name, "error", err)
	}
	return h.storeLocal(file)
}

// uploadResponse is the result of POST /upload
type uploadResponse struct {
	LocalPath  string                   `json:"localPath,omitempty"`
	Cloudinary *cloudinary.UploadResult `json:"cloudinary,omitempty"`
}

// Upload handles POST /upload: the file goes to Cloudinary when configured,
// otherwise it is stored locally and its path returned.
func (h *Handlers) Upload(c *gin.Context) {
	if !h.deps.Features.UploadEnabled {
		c.JSON(http.StatusServiceUnavailable, Response{
			Success: false,
			Error:   "server is not accepting file uploads",
		})
		return
	}

	file, err := h.readUpload(c, "file", "image")
	if err != nil {
		h.uploadError(c, err)
		return
	}
	if file == nil {
		badRequest(c, errors.New("no file uploaded (use field name `file`)"))
		return
	}
	if !isAllowedImage(file.Content) {
		h.uploadError(c, errNotAnImage)
		return
	}

	if h.deps.Features.CloudinaryEnabled && h.deps.Uploader != nil {
		res, err := h.deps.Uploader.Upload(c.Request.Context(), file.Name, file.Content, path.Join(h.deps.RemoteFolder, "uploads"))
		if err != nil {
			h.logger.Error("Cloudinary upload failed", "file", file.Name, "error", err)
			c.JSON(http.StatusInternalServerError, Response{
				Success: false,
				Error:   "Cloudinary upload failed",
				Detail:  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: uploadResponse{Cloudinary: res}})
		return
	}

	ref, err := h.storeLocal(file)
	if err != nil {
		h.internalError(c, "error handling upload", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: uploadResponse{LocalPath: ref}})
}

func (h *Handlers) uploadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, Response{Success: false, Error: err.Error()})
	case errors.Is(err, errNotAnImage):
		badRequest(c, err)
	default:
		h.internalError(c, "error handling upload", err)
	}
}
