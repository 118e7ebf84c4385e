package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vigila/backend/pkg/metrics"
)

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/videos/:id/download", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	return r
}

func get(r http.Handler, method, path, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORS_Wildcard(t *testing.T) {
	r := newRouter(CORS("*"))
	w := get(r, http.MethodGet, "/videos/1/download", "http://example.com")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if got := w.Header().Get("Access-Control-Expose-Headers"); got == "" {
		t.Error("Content-Disposition should be exposed")
	}
}

func TestCORS_AllowList(t *testing.T) {
	r := newRouter(CORS("http://localhost:3000, http://localhost:5173"))

	w := get(r, http.MethodGet, "/videos/1/download", "http://localhost:5173")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q", got)
	}
	w = get(r, http.MethodGet, "/videos/1/download", "http://evil.test")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin got Allow-Origin %q", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	r := newRouter(CORS("*"))
	w := get(r, http.MethodOptions, "/upload", "http://example.com")
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
}

func TestCORS_PreflightUnlistedOrigin(t *testing.T) {
	r := newRouter(CORS("http://localhost:3000"))
	w := get(r, http.MethodOptions, "/upload", "http://evil.test")
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "" {
		t.Errorf("unlisted origin got Allow-Methods %q", got)
	}
	if got := w.Header().Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want Origin", got)
	}
}

func TestOriginPolicy(t *testing.T) {
	cases := []struct {
		list, origin, want string
	}{
		{"", "http://example.com", "*"},
		{" , ", "http://example.com", "*"},
		{"*", "", "*"},
		{"http://a.test, *", "http://b.test", "*"},
		{"http://a.test,http://b.test", "http://b.test", "http://b.test"},
		{"http://a.test", "http://b.test", ""},
		{"http://a.test", "", ""},
	}
	for _, tc := range cases {
		if got := newOriginPolicy(tc.list).match(tc.origin); got != tc.want {
			t.Errorf("newOriginPolicy(%q).match(%q) = %q, want %q", tc.list, tc.origin, got, tc.want)
		}
	}
}

func TestLogger_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := newRouter(Logger(zap.New(core)))

	get(r, http.MethodGet, "/videos/1/download", "")
	get(r, http.MethodGet, "/missing", "")
	get(r, http.MethodGet, "/boom", "")

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	want := []zapcore.Level{zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Errorf("entry %d level = %v, want %v", i, e.Level, want[i])
		}
		if e.ContextMap()["path"] == nil {
			t.Errorf("entry %d missing path field", i)
		}
	}
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	r := newRouter(Metrics())
	before := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("GET", "/videos/:id/download", "200"))
	unmatched := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("GET", "unmatched", "404"))

	get(r, http.MethodGet, "/videos/7/download", "")
	get(r, http.MethodGet, "/videos/8/download", "")
	get(r, http.MethodGet, "/nope", "")

	if got := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("GET", "/videos/:id/download", "200")); got != before+2 {
		t.Errorf("route counter = %v, want %v", got, before+2)
	}
	if got := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("GET", "unmatched", "404")); got != unmatched+1 {
		t.Errorf("unmatched counter = %v, want %v", got, unmatched+1)
	}
}
