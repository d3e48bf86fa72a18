// Package layer 把已获取或合成的几何包装为带固定样式的可挂载图层
package layer

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"mangrove-viewer/internal/geodata"
)

// Role 图层角色, 决定样式
type Role int

const (
	Boundary Role = iota
	Earlier
	Later
)

func (r Role) String() string {
	switch r {
	case Boundary:
		return "boundary"
	case Earlier:
		return "earlier"
	case Later:
		return "later"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Origin 图层数据来源
type Origin string

const (
	Primary  Origin = "primary"
	Fallback Origin = "fallback"
)

// Style 图层样式
type Style struct {
	StrokeColor string
	FillColor   string
	Opacity     float64
	FillOpacity float64
	Weight      float64
}

// 按角色固定的样式: earlier 为红色系, later 为绿色系
var palette = map[Role]Style{
	Boundary: {StrokeColor: "#4a4a4a", FillColor: "", Opacity: 0.9, FillOpacity: 0, Weight: 2},
	Earlier:  {StrokeColor: "#ff0000", FillColor: "#ff0000", Opacity: 0.7, FillOpacity: 0.5, Weight: 1},
	Later:    {StrokeColor: "#00ff00", FillColor: "#00ff00", Opacity: 0.7, FillOpacity: 0.5, Weight: 1},
}

// StyleFor 角色样式
func StyleFor(r Role) Style {
	return palette[r]
}

// Loaded 可挂载到地图会话的图层
type Loaded struct {
	ID       string
	Session  string
	Role     Role
	Origin   Origin
	Style    Style
	Features *geojson.FeatureCollection
	Raster   *geodata.Raster
	Bounds   orb.Bound
	// HasBounds 为 false 时图层没有几何, 不参与视野计算
	HasBounds bool
}

// IsRaster 是否为栅格图层
func (l *Loaded) IsRaster() bool {
	return l.Raster != nil
}

// ErrEmpty 没有可包装的几何
var ErrEmpty = errors.New("no geometry to compose")

// Compose 把已获取的数据包装为图层
func Compose(session string, role Role, res geodata.Result) (*Loaded, error) {
	if !res.Available {
		return nil, fmt.Errorf("compose %s: %w", res.Source.Name, ErrEmpty)
	}
	l := &Loaded{
		ID:       res.Source.Name,
		Session:  session,
		Role:     role,
		Origin:   Primary,
		Style:    StyleFor(role),
		Features: res.Features,
		Raster:   res.Raster,
	}
	l.Bounds, l.HasBounds = res.Bound()
	return l, nil
}

// ComposeFallback 把合成的占位几何包装为图层
func ComposeFallback(session string, role Role, fc *geojson.FeatureCollection) (*Loaded, error) {
	if fc == nil || len(fc.Features) == 0 {
		return nil, fmt.Errorf("compose fallback %s: %w", role, ErrEmpty)
	}
	l := &Loaded{
		ID:       "fallback-" + role.String(),
		Session:  session,
		Role:     role,
		Origin:   Fallback,
		Style:    StyleFor(role),
		Features: fc,
	}
	l.Bounds, l.HasBounds = geodata.CollectionBound(fc)
	return l, nil
}

// Union 全部图层范围的并集, 没有任何范围时 ok 为 false
func Union(layers []*Loaded) (orb.Bound, bool) {
	var (
		bound orb.Bound
		found bool
	)
	for _, l := range layers {
		if l == nil || !l.HasBounds {
			continue
		}
		if !found {
			bound, found = l.Bounds, true
			continue
		}
		bound = bound.Union(l.Bounds)
	}
	return bound, found
}
