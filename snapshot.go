package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"mangrove-viewer/internal/headless"
	"mangrove-viewer/internal/layer"
	"mangrove-viewer/internal/lifecycle"
)

// Snapshot 会话合成状态的导出
type Snapshot struct {
	Session   string                     `json:"session"`
	Container string                     `json:"container"`
	State     string                     `json:"state"`
	Center    orb.Point                  `json:"center"`
	Zoom      int                        `json:"zoom"`
	Viewport  []float64                  `json:"viewport,omitempty"`
	Basemap   *SnapshotBasemap           `json:"basemap,omitempty"`
	Compare   *SnapshotCompare           `json:"compare,omitempty"`
	Overlays  *geojson.FeatureCollection `json:"overlays"`
}

type SnapshotBasemap struct {
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
}

type SnapshotCompare struct {
	Mode  string  `json:"mode"`
	Ratio float64 `json:"ratio"`
	Left  string  `json:"left"`
	Right string  `json:"right"`
	Note  string  `json:"note,omitempty"`
}

func bboxOf(b orb.Bound) []float64 {
	return []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

// newSnapshot 按挂载顺序导出叠加图层, 每个要素带上所属图层的样式
func newSnapshot(s *lifecycle.Session, m *headless.Map) *Snapshot {
	snap := &Snapshot{
		Session:   s.ID,
		Container: s.Container().ID,
		State:     s.State().String(),
		Center:    m.Center(),
		Zoom:      m.Zoom(),
		Overlays:  geojson.NewFeatureCollection(),
	}
	if vp, ok := s.Viewport(); ok {
		snap.Viewport = bboxOf(vp)
	}
	if tiles := m.TileLayers(); len(tiles) > 0 {
		snap.Basemap = &SnapshotBasemap{URL: tiles[0].URL, Attribution: tiles[0].Attribution}
	}
	if b := s.Binding(); b != nil {
		snap.Compare = &SnapshotCompare{
			Mode:  b.Mode().String(),
			Ratio: b.Ratio(),
			Left:  b.Pair().Left().ID,
			Right: b.Pair().Right().ID,
			Note:  b.Note(),
		}
	}

	for _, l := range m.Layers() {
		clip, clipped := m.Clip(l.ID)
		if l.IsRaster() {
			f := geojson.NewFeature(l.Raster.Bound().ToPolygon())
			styleProperties(f, l)
			f.Properties["raster"] = true
			f.Properties["coverage"] = l.Raster.Coverage()
			if clipped {
				f.Properties["clip"] = bboxOf(clip)
			}
			snap.Overlays.Append(f)
			continue
		}
		for _, src := range l.Features.Features {
			if src == nil || src.Geometry == nil {
				continue
			}
			f := geojson.NewFeature(src.Geometry)
			styleProperties(f, l)
			if clipped {
				f.Properties["clip"] = bboxOf(clip)
			}
			snap.Overlays.Append(f)
		}
	}
	return snap
}

func styleProperties(f *geojson.Feature, l *layer.Loaded) {
	f.Properties["layer"] = l.ID
	f.Properties["role"] = l.Role.String()
	f.Properties["origin"] = string(l.Origin)
	f.Properties["stroke"] = l.Style.StrokeColor
	f.Properties["stroke-width"] = l.Style.Weight
	f.Properties["stroke-opacity"] = l.Style.Opacity
	if l.Style.FillColor != "" {
		f.Properties["fill"] = l.Style.FillColor
	}
	f.Properties["fill-opacity"] = l.Style.FillOpacity
}

func writeSnapshot(path string, snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
