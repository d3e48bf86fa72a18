package geodata_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mangrove-viewer/internal/geodata"
)

const mangroves = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"year":2000},"geometry":{"type":"Polygon","coordinates":[[[80.5,7.2],[81.8,7.2],[81.8,8.0],[80.5,8.0],[80.5,7.2]]]}}
]}`

const grid = `{"noDataValue":-1,"pixelWidth":0.5,"pixelHeight":0.5,"bbox":[80,7,81,8],"values":[1,-1,3,4],"width":2,"height":2}`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.geojson", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(mangroves))
	})
	mux.HandleFunc("/broken.geojson", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"FeatureCollection","features":[`))
	})
	mux.HandleFunc("/huge-grid.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bbox":[80,7,81,8],"values":[],"width":4294967296,"height":4294967296}`))
	})
	mux.HandleFunc("/grid.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(grid))
	})
	mux.HandleFunc("/slow.geojson", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_Available(t *testing.T) {
	srv := newServer(t)
	c := geodata.NewClient(time.Second, 2, nil)

	res := c.Fetch(context.Background(), geodata.Source{Name: "2000", URL: srv.URL + "/ok.geojson"})
	if !res.Available {
		t.Fatalf("expected available result, got %v", res.Reason)
	}
	if len(res.Features.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(res.Features.Features))
	}
	b, ok := res.Bound()
	if !ok {
		t.Fatal("expected bounds")
	}
	if b.Min[0] != 80.5 || b.Min[1] != 7.2 || b.Max[0] != 81.8 || b.Max[1] != 8.0 {
		t.Errorf("unexpected bounds %v", b)
	}
}

func TestFetch_Unavailable(t *testing.T) {
	srv := newServer(t)
	c := geodata.NewClient(100*time.Millisecond, 0, nil)

	cases := map[string]geodata.Source{
		"not found":     {Name: "missing", URL: srv.URL + "/missing.geojson"},
		"malformed":     {Name: "broken", URL: srv.URL + "/broken.geojson"},
		"timeout":       {Name: "slow", URL: srv.URL + "/slow.geojson"},
		"no url":        {Name: "empty"},
		"bad raster":    {Name: "grid", URL: srv.URL + "/ok.geojson", Kind: geodata.RasterGrid},
		"wrong shape":   {Name: "grid-as-geojson", URL: srv.URL + "/grid.json"},
		"size overflow": {Name: "huge-grid", URL: srv.URL + "/huge-grid.json", Kind: geodata.RasterGrid},
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			res := c.Fetch(context.Background(), src)
			if res.Available {
				t.Fatal("expected unavailable result")
			}
			if !errors.Is(res.Reason, geodata.ErrUnavailable) {
				t.Errorf("expected ErrUnavailable, got %v", res.Reason)
			}
		})
	}
}

func TestFetch_Raster(t *testing.T) {
	srv := newServer(t)
	c := geodata.NewClient(time.Second, 0, nil)

	res := c.Fetch(context.Background(), geodata.Source{Name: "grid", URL: srv.URL + "/grid.json", Kind: geodata.RasterGrid})
	if !res.Available {
		t.Fatalf("expected available raster, got %v", res.Reason)
	}
	if res.Raster.Projection != geodata.WGS84 {
		t.Errorf("expected default projection 4326, got %d", res.Raster.Projection)
	}
	if _, ok := res.Raster.At(1, 0); ok {
		t.Error("expected nodata pixel to be missing")
	}
	if v, ok := res.Raster.At(0, 1); !ok || v != 3 {
		t.Errorf("expected value 3, got %v %v", v, ok)
	}
	if got := res.Raster.Coverage(); got != 0.75 {
		t.Errorf("expected coverage 0.75, got %f", got)
	}
	b, _ := res.Bound()
	if b.Min[0] != 80 || b.Max[1] != 8 {
		t.Errorf("unexpected raster bounds %v", b)
	}
}

func TestFetch_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2020-mangroves.geojson")
	if err := os.WriteFile(path, []byte(mangroves), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := geodata.NewClient(time.Second, 0, nil)

	if res := c.Fetch(context.Background(), geodata.Source{Name: "2020", URL: path}); !res.Available {
		t.Errorf("expected local file to load, got %v", res.Reason)
	}
	if res := c.Fetch(context.Background(), geodata.Source{Name: "2020", URL: "file://" + path}); !res.Available {
		t.Errorf("expected file url to load, got %v", res.Reason)
	}
}

func TestFetchAll_Settled(t *testing.T) {
	srv := newServer(t)
	c := geodata.NewClient(200*time.Millisecond, 4, nil)

	sources := []geodata.Source{
		{Name: "slow", URL: srv.URL + "/slow.geojson"},
		{Name: "ok", URL: srv.URL + "/ok.geojson"},
		{Name: "missing", URL: srv.URL + "/missing.geojson"},
	}
	start := time.Now()
	results := c.FetchAll(context.Background(), sources)
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("slow source blocked the cycle for %s", elapsed)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Source.Name != sources[i].Name {
			t.Errorf("result %d: expected %s, got %s", i, sources[i].Name, res.Source.Name)
		}
	}
	if results[0].Available || !results[1].Available || results[2].Available {
		t.Errorf("unexpected availability %v %v %v", results[0].Available, results[1].Available, results[2].Available)
	}
}

func TestFetchAll_Cancelled(t *testing.T) {
	srv := newServer(t)
	c := geodata.NewClient(0, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := c.FetchAll(ctx, []geodata.Source{{Name: "ok", URL: srv.URL + "/ok.geojson"}})
	if results[0].Available {
		t.Error("expected cancelled fetch to be unavailable")
	}
}

func TestParseKind(t *testing.T) {
	if k, err := geodata.ParseKind(""); err != nil || k != geodata.PolygonSet {
		t.Errorf("expected polygon for empty kind, got %v %v", k, err)
	}
	if k, err := geodata.ParseKind("Raster"); err != nil || k != geodata.RasterGrid {
		t.Errorf("expected raster, got %v %v", k, err)
	}
	if _, err := geodata.ParseKind("tiff"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
