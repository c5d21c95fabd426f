package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/service"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
	"github.com/noah-isme/gradebook-api/pkg/response"
)

type gradeService interface {
	AddGrade(ctx context.Context, id, key string, req dto.GradeRequest) (*dto.SubjectResponse, error)
	EditGrade(ctx context.Context, id, key string, index int, req dto.GradeRequest) (*dto.SubjectResponse, error)
	DeleteGrade(ctx context.Context, id, key string, index int) (*dto.SubjectResponse, error)
}

// GradeHandler exposes the grade scale and grade mutations.
type GradeHandler struct {
	grades gradeService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades gradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// Scale godoc
// @Summary List grade tags
// @Tags Grades
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grades/scale [get]
func (h *GradeHandler) Scale(c *gin.Context) {
	response.JSON(c, http.StatusOK, service.GradeScale())
}

// Create godoc
// @Summary Append grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param key path string true "Subject key"
// @Param payload body dto.GradeRequest true "Grade tag"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/subjects/{key}/grades [post]
func (h *GradeHandler) Create(c *gin.Context) {
	var req dto.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	subject, err := h.grades.AddGrade(c.Request.Context(), c.Param("id"), c.Param("key"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subject)
}

// Update godoc
// @Summary Replace grade at index
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param key path string true "Subject key"
// @Param index path int true "Zero-based grade position"
// @Param payload body dto.GradeRequest true "Grade tag"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/subjects/{key}/grades/{index} [put]
func (h *GradeHandler) Update(c *gin.Context) {
	index, err := gradeIndex(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	subject, err := h.grades.EditGrade(c.Request.Context(), c.Param("id"), c.Param("key"), index, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject)
}

// Delete godoc
// @Summary Remove grade at index
// @Tags Grades
// @Produce json
// @Param id path string true "Student ID"
// @Param key path string true "Subject key"
// @Param index path int true "Zero-based grade position"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/subjects/{key}/grades/{index} [delete]
func (h *GradeHandler) Delete(c *gin.Context) {
	index, err := gradeIndex(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	subject, err := h.grades.DeleteGrade(c.Request.Context(), c.Param("id"), c.Param("key"), index)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject)
}
