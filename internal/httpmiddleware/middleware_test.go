package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"volunteerledger/internal/auth"
)

func init() { gin.SetMode(gin.TestMode) }

func TestTokenBucket_AllowRefill(t *testing.T) {
	l := NewTokenBucket(2, 60)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if !l.allow("a") || !l.allow("a") {
		t.Fatal("expected first two requests to pass")
	}
	if l.allow("a") {
		t.Fatal("expected third request to be limited")
	}
	if !l.allow("b") {
		t.Error("keys must not share a bucket")
	}

	now = now.Add(time.Second)
	if !l.allow("a") {
		t.Error("expected one token after a second at 60/min")
	}
}

func TestTokenBucket_PrunesIdleBuckets(t *testing.T) {
	l := NewTokenBucket(2, 60)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.allow("ip:1.1.1.1")
	now = now.Add(30 * time.Second)
	l.allow("ip:2.2.2.2")
	if len(l.state) != 2 {
		t.Fatalf("buckets = %d, want 2 inside the refill window", len(l.state))
	}

	now = now.Add(45 * time.Second)
	l.allow("ip:3.3.3.3")
	if _, ok := l.state["ip:1.1.1.1"]; ok {
		t.Error("idle bucket should have been pruned")
	}
	if _, ok := l.state["ip:2.2.2.2"]; !ok {
		t.Error("recent bucket was pruned")
	}
	if len(l.state) != 2 {
		t.Errorf("buckets = %d, want 2", len(l.state))
	}
}

func TestTokenBucket_Middleware(t *testing.T) {
	l := NewTokenBucket(1, 1)
	r := gin.New()
	r.Use(l.Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		return w
	}
	if w := do(); w.Code != http.StatusOK {
		t.Fatalf("first status = %d", w.Code)
	}
	w := do()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
}

func TestTokenBucket_DisabledWithZeroRate(t *testing.T) {
	r := gin.New()
	r.Use(NewTokenBucket(0, 0).Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, w.Code)
		}
	}
}

func TestCallerKey(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "10.0.0.9:5555"
	if got := CallerKey(c); got != "ip:10.0.0.9" {
		t.Errorf("anonymous key = %q", got)
	}

	r := gin.New()
	token, err := auth.Issue(auth.Principal{UserID: "u1", Role: auth.RoleMentor}, "iss", "k", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	var key string
	r.GET("/", auth.Authenticate("k", "iss"), func(c *gin.Context) { key = CallerKey(c) })
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token.Value)
	r.ServeHTTP(httptest.NewRecorder(), req)
	if key != "user:u1" {
		t.Errorf("authenticated key = %q", key)
	}
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop(), "/healthz"), SecurityHeaders())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for path, want := range map[string]int{"/healthz": 200, "/boom": 500, "/missing": 404} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != want {
			t.Errorf("%s status = %d, want %d", path, w.Code, want)
		}
	}
}
