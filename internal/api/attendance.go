package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"volunteerledger/internal/ledger"
)

type markBulkRequest struct {
	EventID           string `json:"eventId"`
	AttendanceRecords []struct {
		VolunteerID string `json:"volunteerId"`
		IsPresent   bool   `json:"isPresent"`
	} `json:"attendanceRecords"`
}

func (h *handler) markBulk(c *gin.Context) {
	var req markBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	marks := make([]ledger.Mark, len(req.AttendanceRecords))
	for i, r := range req.AttendanceRecords {
		marks[i] = ledger.Mark{VolunteerID: r.VolunteerID, IsPresent: r.IsPresent}
	}

	res, err := h.Ledger.MarkBulkAttendance(c.Request.Context(), principal(c), req.EventID, marks)
	if err != nil {
		h.fail(c, "mark_bulk", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Attendance marked successfully", "result": res})
}

type modifyHoursRequest struct {
	VolunteerID string   `json:"volunteerId" binding:"required"`
	EventID     string   `json:"eventId" binding:"required"`
	NewHours    *float64 `json:"newHours" binding:"required"`
	Reason      string   `json:"reason"`
}

func (h *handler) modifyHours(c *gin.Context) {
	var req modifyHoursRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "volunteerId, eventId and newHours are required")
		return
	}

	m, err := h.Ledger.ModifyHours(c.Request.Context(), principal(c), req.VolunteerID, req.EventID, *req.NewHours, req.Reason)
	if err != nil {
		h.fail(c, "modify_hours", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Hours modified successfully", "modification": m})
}

func (h *handler) history(c *gin.Context) {
	c.JSON(http.StatusOK, h.Query.History(c.Request.Context(), c.Param("volunteerId")))
}

func (h *handler) mentorVolunteers(c *gin.Context) {
	c.JSON(http.StatusOK, h.Query.Roster(c.Request.Context(), principal(c).UserID))
}

func (h *handler) modifications(c *gin.Context) {
	c.JSON(http.StatusOK, h.Query.Modifications(c.Request.Context(), c.Param("volunteerId")))
}

func (h *handler) volunteerStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Query.Summary(c.Request.Context(), c.Param("volunteerId")))
}
