package headless

import (
	"fmt"

	"github.com/paulmach/orb"

	"mangrove-viewer/internal/compare"
	"mangrove-viewer/internal/layer"
)

type splitter struct {
	m *Map
}

// Split 两个图层都必须已挂载在该地图上
func (s *splitter) Split(left, right *layer.Loaded) (compare.Divider, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.removed {
		return nil, ErrMapRemoved
	}
	for _, l := range []*layer.Loaded{left, right} {
		if !s.m.attached(l.ID) {
			return nil, fmt.Errorf("layer %s is not attached to this map", l.ID)
		}
	}
	return &divider{m: s.m, left: left.ID, right: right.ID}, nil
}

type divider struct {
	m           *Map
	left, right string
}

// Move 左图层裁剪到分割线左侧, 右图层裁剪到右侧
func (d *divider) Move(ratio float64) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if d.m.removed {
		d.m.late++
		return
	}
	d.m.divider, d.m.ratio = d, ratio
	d.m.reclip()
}

func (d *divider) Remove() {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if d.m.removed {
		return
	}
	if d.m.divider == d {
		d.m.divider = nil
	}
	delete(d.m.clips, d.left)
	delete(d.m.clips, d.right)
}

// SplitView 按经度把视野分为左右两部分
func SplitView(view orb.Bound, ratio float64) (left, right orb.Bound) {
	x := view.Min[0] + ratio*(view.Max[0]-view.Min[0])
	left = orb.Bound{Min: view.Min, Max: orb.Point{x, view.Max[1]}}
	right = orb.Bound{Min: orb.Point{x, view.Min[1]}, Max: view.Max}
	return left, right
}
