package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/export"
	"rollcall/internal/roster"
)

// Global-roster admin endpoints. The project-scoped twins in projects.go
// reuse the scoped helpers below after resolving ownership.

func (h *Handler) DailySheet(c *gin.Context)  { h.dailySheet(c, roster.Global) }
func (h *Handler) Toggle(c *gin.Context)      { h.toggle(c, roster.Global) }
func (h *Handler) ExportAll(c *gin.Context)   { h.exportAll(c, roster.Global, "attendance_book.csv") }
func (h *Handler) Students(c *gin.Context)    { h.students(c, roster.Global) }
func (h *Handler) EditStudent(c *gin.Context) { h.editStudent(c, roster.Global) }
func (h *Handler) RemoveStudent(c *gin.Context) {
	h.removeStudent(c, roster.Global)
}
func (h *Handler) MergeStudents(c *gin.Context) { h.mergeStudents(c, roster.Global) }

// Stats reports roster totals.
func (h *Handler) Stats(c *gin.Context) {
	total, err := h.roster.Stats(c.Request.Context(), roster.Global)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totalStudents": total})
}

// AddStudent registers a student on the global roster; phone is the required
// identity key there.
func (h *Handler) AddStudent(c *gin.Context) {
	var req struct {
		Name   string `json:"name"`
		Phone  string `json:"phone"`
		School string `json:"school"`
		Year   string `json:"year"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	student, err := h.roster.AddStudent(c.Request.Context(), roster.Global, req.Name, req.Phone, req.School, req.Year)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, student)
}

func (h *Handler) dailySheet(c *gin.Context, scope roster.Scope) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date query parameter required"})
		return
	}
	rows, err := h.roster.DailySheet(c.Request.Context(), scope, date)
	if err != nil {
		respondError(c, err)
		return
	}
	if rows == nil {
		rows = []roster.SheetRow{}
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) toggle(c *gin.Context, scope roster.Scope) {
	var req struct {
		StudentID string `json:"studentId"`
		Date      string `json:"date"`
		IsPresent bool   `json:"isPresent"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.roster.SetAttendance(c.Request.Context(), scope, req.StudentID, req.Date, req.IsPresent); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) exportAll(c *gin.Context, scope roster.Scope, filename string) {
	rows, err := h.roster.ExportAll(c.Request.Context(), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", export.Book(rows))
}

func (h *Handler) students(c *gin.Context, scope roster.Scope) {
	list, err := h.roster.ListStudents(c.Request.Context(), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []roster.StudentListing{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) editStudent(c *gin.Context, scope roster.Scope) {
	var req struct {
		Name   string `json:"name"`
		Phone  string `json:"phone"`
		School string `json:"school"`
		Year   string `json:"year"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	student, err := h.roster.UpdateStudent(c.Request.Context(), scope, c.Param("id"), req.Name, req.Phone, req.School, req.Year)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

func (h *Handler) removeStudent(c *gin.Context, scope roster.Scope) {
	if err := h.roster.DeleteStudent(c.Request.Context(), scope, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) mergeStudents(c *gin.Context, scope roster.Scope) {
	var req struct {
		SourceID string `json:"sourceId"`
		TargetID string `json:"targetId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.roster.Merge(c.Request.Context(), scope, req.SourceID, req.TargetID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
