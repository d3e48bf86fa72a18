// Package geodata 负责叠加图层数据源的定义与获取
package geodata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Kind 数据源的几何类型
type Kind int

const (
	// PolygonSet GeoJSON 面要素集合
	PolygonSet Kind = iota
	// RasterGrid 栅格网格描述
	RasterGrid
)

func (k Kind) String() string {
	switch k {
	case PolygonSet:
		return "polygon"
	case RasterGrid:
		return "raster"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind 解析配置中的类型名称, 空值视为 polygon
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "polygon", "geojson":
		return PolygonSet, nil
	case "raster", "grid":
		return RasterGrid, nil
	}
	return PolygonSet, fmt.Errorf("unknown overlay kind %q", s)
}

// Source 远程(或本地)叠加数据源, 定义后不可变
type Source struct {
	Name string
	URL  string
	Kind Kind
}

// Defined 是否配置了地址
func (s Source) Defined() bool {
	return s.URL != ""
}

func (s Source) String() string {
	return fmt.Sprintf("%s(%s)", s.Name, s.URL)
}

// ErrUnavailable 数据源不可用: 网络失败、非2xx响应或数据格式错误
var ErrUnavailable = errors.New("overlay source unavailable")

// Result 单个数据源的获取结果, 不可用时 Reason 记录原因
type Result struct {
	Source    Source
	Available bool
	Features  *geojson.FeatureCollection
	Raster    *Raster
	Reason    error
}

func unavailable(src Source, format string, args ...interface{}) Result {
	return Result{
		Source: src,
		Reason: fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...)),
	}
}

// Bound 数据范围, 没有几何时 ok 为 false
func (r Result) Bound() (orb.Bound, bool) {
	if !r.Available {
		return orb.Bound{}, false
	}
	if r.Raster != nil {
		return r.Raster.Bound(), true
	}
	return CollectionBound(r.Features)
}

// CollectionBound 要素集合的外包范围
func CollectionBound(fc *geojson.FeatureCollection) (orb.Bound, bool) {
	if fc == nil {
		return orb.Bound{}, false
	}
	var (
		bound orb.Bound
		found bool
	)
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		if !found {
			bound = f.Geometry.Bound()
			found = true
			continue
		}
		bound = bound.Union(f.Geometry.Bound())
	}
	return bound, found
}
