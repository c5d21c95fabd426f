package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook-api/internal/dto"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
	"github.com/noah-isme/gradebook-api/pkg/response"
)

type transferService interface {
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, r io.Reader) (*dto.ImportResult, error)
	Preview(ctx context.Context, r io.Reader) (*dto.ImportPreview, error)
}

// TransferHandler serves CSV export and import.
type TransferHandler struct {
	transfer transferService
	now      func() time.Time
}

// NewTransferHandler constructs the transfer handler.
func NewTransferHandler(transfer transferService) *TransferHandler {
	return &TransferHandler{transfer: transfer, now: time.Now}
}

// Export godoc
// @Summary Download all grades as CSV
// @Tags Transfer
// @Produce text/csv
// @Success 200 {file} file
// @Router /transfer/csv [get]
func (h *TransferHandler) Export(c *gin.Context) {
	payload, err := h.transfer.Export(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("noten_export_%s.csv", h.now().Format("20060102_150405"))
	response.Attachment(c, filename, "text/csv; charset=utf-8", int64(len(payload)), bytes.NewReader(payload), time.Time{})
}

// Import godoc
// @Summary Import grades from CSV
// @Description Accepts a multipart field "file" or the raw CSV as request body
// @Tags Transfer
// @Accept multipart/form-data
// @Accept text/csv
// @Produce json
// @Param file formData file false "CSV file"
// @Success 200 {object} response.Envelope
// @Router /transfer/csv [post]
func (h *TransferHandler) Import(c *gin.Context) {
	body, closeBody, err := csvBody(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeBody()

	result, err := h.transfer.Import(c.Request.Context(), body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Preview godoc
// @Summary Preview a CSV import without applying it
// @Tags Transfer
// @Accept multipart/form-data
// @Accept text/csv
// @Produce json
// @Param file formData file false "CSV file"
// @Success 200 {object} response.Envelope
// @Router /transfer/csv/preview [post]
func (h *TransferHandler) Preview(c *gin.Context) {
	body, closeBody, err := csvBody(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeBody()

	preview, err := h.transfer.Preview(c.Request.Context(), body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview)
}

// csvBody returns the uploaded "file" part for multipart requests and the
// request body otherwise.
func csvBody(c *gin.Context) (io.Reader, func(), error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
		}
		src, err := fileHeader.Open()
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
		}
		return src, func() { _ = src.Close() }, nil
	}
	if c.Request.Body == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "csv body is required")
	}
	return c.Request.Body, func() {}, nil
}
