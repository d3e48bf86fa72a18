package basemap_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"mangrove-viewer/internal/basemap"
)

func TestTileURL(t *testing.T) {
	m := basemap.TileLayer{
		URL:        "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		Subdomains: []string{"a", "b", "c"},
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.TileURL(maptile.New(5, 7, 9))
	if got != "https://a.tile.openstreetmap.org/9/5/7.png" {
		t.Errorf("unexpected url %s", got)
	}
	got = m.TileURL(maptile.New(5, 8, 9))
	if got != "https://b.tile.openstreetmap.org/9/5/8.png" {
		t.Errorf("unexpected url %s", got)
	}
	if m.Ext() != basemap.PNG {
		t.Errorf("expected png, got %s", m.Ext())
	}
}

func TestValidate(t *testing.T) {
	bad := []basemap.TileLayer{
		{URL: "https://tiles.example.com/{z}/{x}.png"},
		{URL: "https://{s}.tiles.example.com/{z}/{x}/{y}.png"},
	}
	for _, m := range bad {
		if err := m.Validate(); err == nil {
			t.Errorf("expected error for %s", m.URL)
		}
	}
}

func TestClampZoom(t *testing.T) {
	m := basemap.TileLayer{MaxZoom: 19}
	if m.ClampZoom(25) != 19 || m.ClampZoom(-2) != 0 || m.ClampZoom(9) != 9 {
		t.Error("unexpected clamp result")
	}
}

func TestPrefetch_Resume(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Write([]byte("tile"))
	}))
	defer srv.Close()

	layer := basemap.TileLayer{URL: srv.URL + "/{z}/{x}/{y}.png", MaxZoom: 19}
	bound := orb.Bound{Min: orb.Point{81.6, 7.2}, Max: orb.Point{81.7, 7.3}}
	opts := basemap.PrefetchOptions{Dir: t.TempDir(), MinZoom: 9, MaxZoom: 10, Workers: 2, BufSize: 4, Output: io.Discard}
	resumeDir := t.TempDir()

	resume, err := basemap.OpenResume(resumeDir, "osm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, err := basemap.NewPrefetch(layer, bound, opts, resume, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Total == 0 {
		t.Fatal("expected tiles to cover the bound")
	}
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Saved() == 0 || p.Saved() > p.Total {
		t.Errorf("expected up to %d saved, got %d", p.Total, p.Saved())
	}
	tile := maptile.At(orb.Point{81.65, 7.25}, 9)
	if _, err := os.Stat(p.TilePath(tile)); err != nil {
		t.Errorf("expected tile file: %v", err)
	}
	if err := resume.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 再次运行时全部跳过
	resume, err = basemap.OpenResume(resumeDir, "osm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resume.Close()
	if resume.Len() == 0 {
		t.Fatal("expected resume records")
	}
	before := atomic.LoadInt64(&hits)
	again, err := basemap.NewPrefetch(layer, bound, opts, resume, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := again.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Skipped() == 0 || again.Saved() != 0 {
		t.Errorf("expected all tiles skipped, got skipped %d saved %d", again.Skipped(), again.Saved())
	}
	if atomic.LoadInt64(&hits) != before {
		t.Error("expected no tile requests on resumed run")
	}
}

func TestPrefetch_Cancelled(t *testing.T) {
	layer := basemap.TileLayer{URL: "http://127.0.0.1:1/{z}/{x}/{y}.png"}
	bound := orb.Bound{Min: orb.Point{80, 6}, Max: orb.Point{82, 9}}
	p, err := basemap.NewPrefetch(layer, bound, basemap.PrefetchOptions{Dir: t.TempDir(), MinZoom: 12, MaxZoom: 12, Output: io.Discard}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Run(ctx); err == nil {
		t.Error("expected cancellation error")
	}
}
