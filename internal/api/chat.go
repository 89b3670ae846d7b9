package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/interpreter"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

var errImageTooLarge = errors.New("image too large")

type chatRequest struct {
	Message string `json:"message" form:"message"`
}

// chat accepts {"message": "..."} as JSON, or a multipart form with a
// message field and an optional image file.
func (s *Server) chat(c *gin.Context) {
	var req chatRequest
	var image *interpreter.Image

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.deps.MaxImageBytes+1<<20)
		if err := c.ShouldBind(&req); err != nil {
			badRequest(c, err)
			return
		}
		fh, err := c.FormFile("image")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			badRequest(c, err)
			return
		default:
			image, err = s.readImage(fh)
			if errors.Is(err, errImageTooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error(), "field": "image"})
				return
			}
			if err != nil {
				respondError(c, err)
				return
			}
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" && image == nil {
		respondError(c, apperrors.Invalid("message", "message is required"))
		return
	}

	resp, err := s.deps.Chat.Turn(c.Request.Context(), currentUser(c), req.Message, image)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// readImage enforces the size cap and sniffs the content type instead of
// trusting the client's header.
func (s *Server) readImage(fh *multipart.FileHeader) (*interpreter.Image, error) {
	if fh.Size > s.deps.MaxImageBytes {
		return nil, fmt.Errorf("%w: at most %d bytes are allowed", errImageTooLarge, s.deps.MaxImageBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.deps.MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > s.deps.MaxImageBytes {
		return nil, fmt.Errorf("%w: at most %d bytes are allowed", errImageTooLarge, s.deps.MaxImageBytes)
	}

	mimeType := http.DetectContentType(data)
	if !allowedImageTypes[mimeType] {
		return nil, apperrors.Invalid("image", "unsupported image type %s", mimeType)
	}
	return &interpreter.Image{Data: data, MIMEType: mimeType}, nil
}
