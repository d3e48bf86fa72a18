package headless_test

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"

	"mangrove-viewer/internal/basemap"
	"mangrove-viewer/internal/headless"
	"mangrove-viewer/internal/layer"
	"mangrove-viewer/internal/lifecycle"
)

var (
	container = lifecycle.Container{ID: "map", Width: 1024, Height: 600}
	center    = orb.Point{81.6337, 7.2906}
	osm       = basemap.TileLayer{URL: "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png", Subdomains: []string{"a", "b", "c"}, MaxZoom: 19}
)

func TestEngine_SingleInstance(t *testing.T) {
	e := headless.NewEngine(true)

	m, err := e.NewMap(container, center, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.NewMap(container, center, 9); !errors.Is(err, headless.ErrContainerInUse) {
		t.Fatalf("expected ErrContainerInUse, got %v", err)
	}
	if err := m.AddTileLayer(osm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.TileLayers(container.ID) != 1 {
		t.Errorf("expected 1 tile layer, got %d", e.TileLayers(container.ID))
	}

	if err := m.Remove(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.LiveMaps(container.ID) != 0 || e.TileLayers(container.ID) != 0 {
		t.Errorf("expected container released, got %d maps %d tile layers", e.LiveMaps(container.ID), e.TileLayers(container.ID))
	}
	if _, err := e.NewMap(container, center, 9); err != nil {
		t.Errorf("expected container reusable after remove, got %v", err)
	}
	if e.Created(container.ID) != 2 {
		t.Errorf("expected 2 created maps, got %d", e.Created(container.ID))
	}
}

func TestMap_MutationAfterRemove(t *testing.T) {
	e := headless.NewEngine(false)
	lm, _ := e.NewMap(container, center, 9)
	m := lm.(*headless.Map)
	m.Remove()

	if err := m.AddLayer(&layer.Loaded{ID: "2000"}); !errors.Is(err, headless.ErrMapRemoved) {
		t.Errorf("expected ErrMapRemoved, got %v", err)
	}
	m.FitBounds(orb.Bound{Max: orb.Point{1, 1}})
	if m.LateMutations() != 2 {
		t.Errorf("expected 2 late mutations, got %d", m.LateMutations())
	}
	if err := m.Remove(); !errors.Is(err, headless.ErrMapRemoved) {
		t.Errorf("expected ErrMapRemoved on second remove, got %v", err)
	}
}

func TestMap_FitBounds(t *testing.T) {
	e := headless.NewEngine(false)
	lm, _ := e.NewMap(container, center, 9)
	m := lm.(*headless.Map)

	b := orb.Bound{Min: orb.Point{80.0, 7.0}, Max: orb.Point{82.0, 8.5}}
	m.FitBounds(b)

	fitted, fits := m.Fitted()
	if fitted != b || fits != 1 {
		t.Errorf("expected one fit to %v, got %d fits to %v", b, fits, fitted)
	}
	if m.Center() != b.Center() {
		t.Errorf("expected center %v, got %v", b.Center(), m.Center())
	}
	if m.Zoom() < 5 || m.Zoom() > 9 {
		t.Errorf("unexpected zoom %d", m.Zoom())
	}
	view := m.View()
	if !view.Contains(b.Min) || !view.Contains(b.Max) {
		t.Errorf("view %v does not contain %v", view, b)
	}
}

func TestSplitter(t *testing.T) {
	if headless.NewEngine(false).Splitter(nil) != nil {
		t.Error("expected no splitter without plugin")
	}

	e := headless.NewEngine(true)
	lm, _ := e.NewMap(container, center, 9)
	m := lm.(*headless.Map)
	left := &layer.Loaded{ID: "2000"}
	right := &layer.Loaded{ID: "2020"}

	s := e.Splitter(m)
	if _, err := s.Split(left, right); err == nil {
		t.Fatal("expected error for unattached layers")
	}
	m.AddLayer(left)
	m.AddLayer(right)
	d, err := s.Split(left, right)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d.Move(0.25)
	view := m.View()
	lc, ok := m.Clip("2000")
	if !ok {
		t.Fatal("expected left clip")
	}
	rc, ok := m.Clip("2020")
	if !ok {
		t.Fatal("expected right clip")
	}
	if lc.Min != view.Min || rc.Max != view.Max || lc.Max[0] != rc.Min[0] {
		t.Errorf("clips %v / %v do not partition view %v", lc, rc, view)
	}
	want := view.Min[0] + 0.25*(view.Max[0]-view.Min[0])
	if lc.Max[0] != want {
		t.Errorf("expected divider at %f, got %f", want, lc.Max[0])
	}

	// 视野变化后重新裁剪
	m.FitBounds(orb.Bound{Min: orb.Point{80.0, 7.0}, Max: orb.Point{82.0, 8.5}})
	lc, _ = m.Clip("2000")
	if lc.Min != m.View().Min {
		t.Errorf("expected clip to follow view, got %v", lc)
	}

	d.Remove()
	if _, ok := m.Clip("2000"); ok {
		t.Error("expected clip removed")
	}
	if _, ok := m.Divider(); ok {
		t.Error("expected no divider")
	}
}

func TestSplitView(t *testing.T) {
	view := orb.Bound{Min: orb.Point{80, 7}, Max: orb.Point{82, 9}}
	left, right := headless.SplitView(view, 0)
	if left.Max[0] != 80 || right.Min[0] != 80 || right.Max != view.Max {
		t.Errorf("unexpected split at 0: %v %v", left, right)
	}
	left, right = headless.SplitView(view, 1)
	if left.Max != view.Max || right.Min[0] != 82 {
		t.Errorf("unexpected split at 1: %v %v", left, right)
	}
}
