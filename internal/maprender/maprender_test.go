package maprender

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/orb"

	logx "veloxbot/pkg/logx"
)

func TestNilRendererIsUnavailable(t *testing.T) {
	t.Parallel()

	var r *Renderer
	if r.Available() {
		t.Fatal("nil renderer reported available")
	}
}

func TestEmptyURLIsUnavailable(t *testing.T) {
	t.Parallel()

	r := New(Config{}, logx.Nop())
	if r.Available() {
		t.Fatal("renderer without endpoint reported available")
	}
	if _, err := r.Render(context.Background(), orb.Point{8.2512, 47.0349}); err == nil {
		t.Fatal("render succeeded without an endpoint")
	}
}

func TestRenderExpandsPlaceholders(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.RequestURI()
		_, _ = w.Write([]byte("imagebytes"))
	}))
	t.Cleanup(srv.Close)

	r := New(Config{
		URL:    srv.URL + "/static?center={lat},{lon}&zoom={zoom}&size={width}x{height}&key={key}",
		APIKey: "k123",
		Zoom:   13,
		Width:  640,
		Height: 480,
	}, logx.Nop())

	img, err := r.Render(context.Background(), orb.Point{8.2512, 47.0349})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if string(img) != "imagebytes" {
		t.Fatalf("image = %q", img)
	}
	want := "/static?center=47.034900,8.251200&zoom=13&size=640x480&key=k123"
	if gotPath != want {
		t.Fatalf("request = %s, want %s", gotPath, want)
	}
}

func TestRenderBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	r := New(Config{URL: srv.URL + "/static?c={lat},{lon}"}, logx.Nop())
	if _, err := r.Render(context.Background(), orb.Point{8.2512, 47.0349}); err == nil {
		t.Fatal("non-200 response accepted")
	}
}

func TestRenderEmptyBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {}))
	t.Cleanup(srv.Close)

	r := New(Config{URL: srv.URL + "/static?c={lat},{lon}"}, logx.Nop())
	if _, err := r.Render(context.Background(), orb.Point{8.2512, 47.0349}); err == nil {
		t.Fatal("empty body accepted as an image")
	}
}
