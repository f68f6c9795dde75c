// Package api exposes the ledger and its supporting services over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"volunteerledger/internal/auth"
	"volunteerledger/internal/config"
	"volunteerledger/internal/donations"
	"volunteerledger/internal/events"
	"volunteerledger/internal/gallery"
	"volunteerledger/internal/httpmiddleware"
	"volunteerledger/internal/ledger"
	"volunteerledger/internal/query"
	"volunteerledger/internal/store"
	"volunteerledger/internal/users"
)

// Deps are the services the router dispatches to. Redis may be nil.
type Deps struct {
	Config    config.App
	Log       *zap.Logger
	DB        *store.DB
	Redis     *store.Redis
	Ledger    *ledger.Service
	Query     *query.Service
	Users     *users.Service
	Events    *events.Service
	Gallery   *gallery.Service
	Donations *donations.Service
}

type handler struct {
	Deps
}

// NewRouter builds the gin engine with all routes and middleware.
func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	h := &handler{Deps: d}
	cfg := d.Config

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(d.Log, "/healthz", "/metrics"))
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(httpmiddleware.SecurityHeaders())

	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.health)

	apiGroup := r.Group("/api")
	apiGroup.POST("/auth/login", limiter.Middleware(), h.login)

	authed := apiGroup.Group("", auth.Authenticate(cfg.JWTSigningKey, cfg.JWTIssuer), limiter.Middleware())
	managers := auth.RequireRoles(auth.RoleMentor, auth.RoleGeneralSecretary)

	att := authed.Group("/attendance")
	att.POST("/mark-bulk", auth.RequireRoles(auth.RoleMentor), h.markBulk)
	att.POST("/modify-hours", managers, h.modifyHours)
	att.GET("/history/:volunteerId", h.history)
	att.GET("/mentor-volunteers", auth.RequireRoles(auth.RoleMentor), h.mentorVolunteers)
	att.GET("/modifications/:volunteerId", h.modifications)

	authed.GET("/volunteers/:volunteerId/stats", h.volunteerStats)

	authed.POST("/users", auth.RequireRoles(auth.RoleGeneralSecretary), h.createUser)

	authed.POST("/events", managers, h.createEvent)
	authed.GET("/events", h.listEvents)
	authed.GET("/events/active", h.activeEvents)
	authed.GET("/events/:id", h.getEvent)

	gal := authed.Group("/gallery")
	gal.POST("", managers, h.createGallery)
	gal.POST("/upload/:galleryId", managers, h.uploadMedia)
	gal.GET("/:galleryId", h.getGallery)
	gal.GET("/event/:eventId", h.listGalleries)

	authed.POST("/donations", managers, h.createCampaign)
	authed.GET("/donations", h.listCampaigns)

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// credentials cannot be combined with a literal "*"
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func (h *handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbHealthy := h.DB.Ping(ctx) == nil
	redisStatus := "disabled"
	redisOK := true
	if h.Redis != nil {
		redisOK = h.Redis.Healthy(ctx)
		redisStatus = "ok"
		if !redisOK {
			redisStatus = "down"
		}
	}
	status := http.StatusOK
	overall := "ok"
	if !dbHealthy || !redisOK {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "db": dbHealthy, "redis": redisStatus})
}

// principal returns the caller set by auth.Authenticate. Routes using it
// are always mounted behind that middleware.
func principal(c *gin.Context) auth.Principal {
	p, _ := auth.PrincipalFrom(c)
	return p
}
