package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/roster"
)

type checkInBody struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Date  string `json:"date"`
}

// CheckInGlobal is the public check-in against the global roster. Phone is
// required and repeating a date is rejected outright (the strict variant).
func (h *Handler) CheckInGlobal(c *gin.Context) {
	var req checkInBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Phone == "" || req.Date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone and date are required"})
		return
	}
	_, err := h.roster.CheckInStrict(c.Request.Context(), roster.Global, roster.CheckInRequest{
		Name:  req.Name,
		Phone: req.Phone,
		Date:  req.Date,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	checkinsTotal.WithLabelValues("strict").Inc()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ProjectInfo returns the attendance book's name for the public check-in page.
func (h *Handler) ProjectInfo(c *gin.Context) {
	name, err := h.roster.ProjectName(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name})
}

// CheckInProject is the public check-in against one project's roster. Name is
// required; a repeated check-in for the date succeeds idempotently.
func (h *Handler) CheckInProject(c *gin.Context) {
	projectID := c.Param("projectId")
	var req checkInBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	date := c.Query("date")
	if date == "" {
		date = today()
	}

	if _, err := h.roster.ProjectName(c.Request.Context(), projectID); err != nil {
		respondError(c, err)
		return
	}
	res, err := h.roster.CheckIn(c.Request.Context(), roster.In(projectID), roster.CheckInRequest{
		Name:  req.Name,
		Phone: req.Phone,
		Date:  date,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	checkinsTotal.WithLabelValues("upsert").Inc()
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"name":             res.StudentName,
		"alreadyCheckedIn": res.AlreadyCheckedIn,
	})
}
