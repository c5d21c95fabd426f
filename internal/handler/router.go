package handler

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
	"github.com/noah-isme/gradebook-api/pkg/response"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes. Reports is
// optional; without it the report routes answer 503.
type Handlers struct {
	Students   *StudentHandler
	Subjects   *SubjectHandler
	Grades     *GradeHandler
	Statistics *StatisticsHandler
	Transfer   *TransferHandler
	Reports    *ReportHandler
	Metrics    *MetricsHandler
}

// RegisterRoutes mounts health probes and /metrics at the root and every
// gradebook endpoint under prefix.
func RegisterRoutes(r gin.IRouter, prefix string, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	api.GET("/metrics/system", h.Metrics.System)
	api.GET("/grades/scale", h.Grades.Scale)

	students := api.Group("/students")
	students.GET("", h.Students.List)
	students.POST("", h.Students.Create)
	students.GET("/:id", h.Students.Get)
	students.PUT("/:id", h.Students.Update)
	students.DELETE("/:id", h.Students.Delete)

	students.POST("/:id/subjects", h.Subjects.Create)
	students.DELETE("/:id/subjects/:key", h.Subjects.Delete)

	students.POST("/:id/subjects/:key/grades", h.Grades.Create)
	students.PUT("/:id/subjects/:key/grades/:index", h.Grades.Update)
	students.DELETE("/:id/subjects/:key/grades/:index", h.Grades.Delete)

	api.GET("/statistics", h.Statistics.Class)

	transfer := api.Group("/transfer")
	transfer.GET("/csv", h.Transfer.Export)
	transfer.POST("/csv", h.Transfer.Import)
	transfer.POST("/csv/preview", h.Transfer.Preview)

	if h.Reports == nil {
		api.POST("/reports", reportsDisabled)
		api.GET("/reports/:id", reportsDisabled)
		api.GET("/export/:token", reportsDisabled)
		return
	}
	api.POST("/reports", h.Reports.Generate)
	api.GET("/reports/:id", h.Reports.Status)
	api.GET("/export/:token", h.Reports.Download)
}

func reportsDisabled(c *gin.Context) {
	response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "reports are disabled"))
}
