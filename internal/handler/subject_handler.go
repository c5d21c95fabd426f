package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook-api/internal/dto"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
	"github.com/noah-isme/gradebook-api/pkg/response"
)

type subjectService interface {
	AddSubject(ctx context.Context, id string, req dto.SubjectRequest) (*dto.SubjectResponse, error)
	DeleteSubject(ctx context.Context, id, key string) error
}

// SubjectHandler manages the subjects of a student.
type SubjectHandler struct {
	subjects subjectService
}

// NewSubjectHandler constructs SubjectHandler.
func NewSubjectHandler(subjects subjectService) *SubjectHandler {
	return &SubjectHandler{subjects: subjects}
}

// Create godoc
// @Summary Add subject to student
// @Tags Subjects
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.SubjectRequest true "Subject payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/{id}/subjects [post]
func (h *SubjectHandler) Create(c *gin.Context) {
	var req dto.SubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	subject, err := h.subjects.AddSubject(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subject)
}

// Delete godoc
// @Summary Remove subject with its grades
// @Tags Subjects
// @Param id path string true "Student ID"
// @Param key path string true "Subject key"
// @Success 204
// @Router /students/{id}/subjects/{key} [delete]
func (h *SubjectHandler) Delete(c *gin.Context) {
	if err := h.subjects.DeleteSubject(c.Request.Context(), c.Param("id"), c.Param("key")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
