package api

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"volunteerledger/internal/events"
	"volunteerledger/internal/gallery"
	"volunteerledger/internal/users"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	sess, err := h.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      sess.Token.Value,
		"expires_at": sess.Token.ExpiresAt.Unix(),
		"user":       sess.User,
	})
}

type createUserRequest struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	RollNumber string `json:"rollNumber"`
	Wing       string `json:"wingName"`
	MentorID   string `json:"mentorId"`
}

func (h *handler) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	u, err := h.Users.Create(c.Request.Context(), principal(c), users.NewUser{
		Email:      req.Email,
		Name:       req.Name,
		Password:   req.Password,
		Role:       req.Role,
		RollNumber: req.RollNumber,
		Wing:       req.Wing,
		MentorID:   req.MentorID,
	})
	if err != nil {
		h.fail(c, "create_user", err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

type createEventRequest struct {
	Name          string  `json:"eventName" binding:"required"`
	Date          string  `json:"eventDate" binding:"required"`
	DurationHours float64 `json:"durationHours"`
	Location      string  `json:"location"`
}

func (h *handler) createEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "eventName and eventDate are required")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	e, err := h.Events.Create(c.Request.Context(), principal(c), events.NewEvent{
		Name:          req.Name,
		Date:          date,
		DurationHours: req.DurationHours,
		Location:      req.Location,
	})
	if err != nil {
		h.fail(c, "create_event", err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *handler) listEvents(c *gin.Context) {
	list, err := h.Events.List(c.Request.Context())
	if err != nil {
		h.fail(c, "list_events", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handler) activeEvents(c *gin.Context) {
	list, err := h.Events.Active(c.Request.Context())
	if err != nil {
		h.fail(c, "active_events", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handler) getEvent(c *gin.Context) {
	e, err := h.Events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get_event", err)
		return
	}
	c.JSON(http.StatusOK, e)
}

type createGalleryRequest struct {
	EventID string `json:"eventId" binding:"required"`
	Title   string `json:"title" binding:"required"`
}

func (h *handler) createGallery(c *gin.Context) {
	var req createGalleryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "eventId and title are required")
		return
	}
	g, err := h.Gallery.Create(c.Request.Context(), principal(c), req.EventID, req.Title)
	if err != nil {
		h.fail(c, "create_gallery", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Gallery created successfully", "galleryId": g.ID, "gallery": g})
}

// uploadMedia takes up to ten "media" parts and an optional "descriptions"
// field holding a JSON array of strings aligned with the files.
func (h *handler) uploadMedia(c *gin.Context) {
	limit := h.Config.MaxUploadBytes*gallery.MaxFilesPerUpload + 1<<20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "multipart form with media files required")
		return
	}
	headers := form.File["media"]

	var descriptions []string
	if raw := c.PostForm("descriptions"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &descriptions); err != nil {
			badRequest(c, "descriptions must be a JSON array of strings")
			return
		}
	}

	files := make([]gallery.File, 0, len(headers))
	for i, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			badRequest(c, "cannot read "+fh.Filename)
			return
		}
		defer func(f multipart.File) { _ = f.Close() }(f)

		file := gallery.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		}
		if i < len(descriptions) {
			file.Description = descriptions[i]
		}
		files = append(files, file)
	}

	media, err := h.Gallery.Upload(c.Request.Context(), principal(c), c.Param("galleryId"), files)
	if err != nil {
		h.fail(c, "upload_media", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Media uploaded successfully", "media": media})
}

func (h *handler) getGallery(c *gin.Context) {
	d, err := h.Gallery.Get(c.Request.Context(), c.Param("galleryId"))
	if err != nil {
		h.fail(c, "get_gallery", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handler) listGalleries(c *gin.Context) {
	list, err := h.Gallery.ListByEvent(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		h.fail(c, "list_galleries", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type createCampaignRequest struct {
	Name      string `json:"campaignName" binding:"required"`
	StartDate string `json:"startDate" binding:"required"`
	EndDate   string `json:"endDate" binding:"required"`
}

func (h *handler) createCampaign(c *gin.Context) {
	var req createCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "campaignName, startDate and endDate are required")
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	camp, err := h.Donations.Create(c.Request.Context(), principal(c), req.Name, start, end)
	if err != nil {
		h.fail(c, "create_campaign", err)
		return
	}
	c.JSON(http.StatusCreated, camp)
}

func (h *handler) listCampaigns(c *gin.Context) {
	list, err := h.Donations.List(c.Request.Context())
	if err != nil {
		h.fail(c, "list_campaigns", err)
		return
	}
	c.JSON(http.StatusOK, list)
}
