package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/auth"
	"rollcall/internal/roster"
)

// ListProjects returns the caller's attendance books.
func (h *Handler) ListProjects(c *gin.Context) {
	projects, err := h.roster.ListProjects(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if projects == nil {
		projects = []roster.Project{}
	}
	c.JSON(http.StatusOK, projects)
}

// CreateProject opens a new attendance book.
func (h *Handler) CreateProject(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	project, err := h.roster.CreateProject(c.Request.Context(), auth.UserID(c), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

// RenameProject renames an owned attendance book.
func (h *Handler) RenameProject(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.roster.RenameProject(c.Request.Context(), c.Param("id"), auth.UserID(c), req.Name); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// projectScope authorizes the :projectId route param for the caller and
// writes the error response itself when that fails.
func (h *Handler) projectScope(c *gin.Context) (roster.Scope, bool) {
	scope, err := h.roster.ProjectScope(c.Request.Context(), c.Param("projectId"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return roster.Scope{}, false
	}
	return scope, true
}

func (h *Handler) ProjectDailySheet(c *gin.Context) {
	if scope, ok := h.projectScope(c); ok {
		h.dailySheet(c, scope)
	}
}

func (h *Handler) ProjectToggle(c *gin.Context) {
	if scope, ok := h.projectScope(c); ok {
		h.toggle(c, scope)
	}
}

func (h *Handler) ProjectExportAll(c *gin.Context) {
	if scope, ok := h.projectScope(c); ok {
		h.exportAll(c, scope, "attendance_book_"+scope.ProjectID+".csv")
	}
}

func (h *Handler) ProjectStudents(c *gin.Context) {
	if scope, ok := h.projectScope(c); ok {
		h.students(c, scope)
	}
}

func (h *Handler) ProjectEditStudent(c *gin.Context) {
	if scope, ok := h.projectScope(c); ok {
		h.editStudent(c, scope)
	}
}

func (h *Handler) ProjectRemoveStudent(c *gin.Context) {
	if scope, ok := h.projectScope(c); ok {
		h.removeStudent(c, scope)
	}
}

func (h *Handler) ProjectMergeStudents(c *gin.Context) {
	if scope, ok := h.projectScope(c); ok {
		h.mergeStudents(c, scope)
	}
}
