// Package fallback 在时间序列数据不可用时, 由边界面要素生成占位叠加图层.
// 生成结果只用于显示连续性, 不是数据产品.
package fallback

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	// Stride 边界要素的抽样间隔
	Stride = 4
	// LeadingVertices 每个抽样要素保留的首环顶点数
	LeadingVertices = 6
	// Offset "later" 占位面的坐标偏移(度)
	Offset = 0.01
)

// Placeholders 一对占位要素集合
type Placeholders struct {
	Earlier *geojson.FeatureCollection
	Later   *geojson.FeatureCollection
}

// Synthesize 从边界要素生成占位面, 边界中没有可用的面时 ok 为 false
func Synthesize(boundary *geojson.FeatureCollection) (Placeholders, bool) {
	if boundary == nil {
		return Placeholders{}, false
	}
	earlier := geojson.NewFeatureCollection()
	later := geojson.NewFeatureCollection()
	for i := 0; i < len(boundary.Features); i += Stride {
		f := boundary.Features[i]
		if f == nil {
			continue
		}
		shape := leading(firstRing(f.Geometry))
		if shape == nil {
			continue
		}
		earlier.Append(placeholder(orb.Polygon{shape}, i))
		later.Append(placeholder(orb.Polygon{shift(shape, Offset)}, i))
	}
	if len(earlier.Features) == 0 {
		return Placeholders{}, false
	}
	return Placeholders{Earlier: earlier, Later: later}, true
}

func placeholder(p orb.Polygon, index int) *geojson.Feature {
	f := geojson.NewFeature(p)
	f.Properties["origin"] = "fallback"
	f.Properties["boundaryIndex"] = index
	return f
}

func firstRing(g orb.Geometry) orb.Ring {
	switch g := g.(type) {
	case orb.Polygon:
		if len(g) > 0 {
			return g[0]
		}
	case orb.MultiPolygon:
		if len(g) > 0 && len(g[0]) > 0 {
			return g[0][0]
		}
	}
	return nil
}

// leading 取环的前若干个顶点并闭合, 不足三个顶点返回 nil
func leading(r orb.Ring) orb.Ring {
	if len(r) > 1 && r[0] == r[len(r)-1] {
		r = r[:len(r)-1]
	}
	if len(r) > LeadingVertices {
		r = r[:LeadingVertices]
	}
	if len(r) < 3 {
		return nil
	}
	shape := make(orb.Ring, 0, len(r)+1)
	shape = append(shape, r...)
	return append(shape, r[0])
}

func shift(r orb.Ring, d float64) orb.Ring {
	out := make(orb.Ring, len(r))
	for i, p := range r {
		out[i] = orb.Point{p[0] + d, p[1] + d}
	}
	return out
}
