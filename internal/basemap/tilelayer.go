// Package basemap 底图瓦片图层与瓦片预取
package basemap

import (
	"errors"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"
)

// TileSize 默认瓦片大小
const TileSize = 256

// ZoomMax 最大级别
const ZoomMax = 20

// 瓦片格式
const (
	PNG  = "png"
	JPG  = "jpg"
	WEBP = "webp"
)

// ErrTemplate 瓦片地址模板缺少 {x}/{y}/{z}
var ErrTemplate = errors.New("tile url template must contain {x}, {y} and {z}")

// TileLayer 底图瓦片图层, 按地址模板获取瓦片
type TileLayer struct {
	Name        string
	URL         string
	Subdomains  []string
	Attribution string
	MaxZoom     int
	Format      string
}

// Validate 检查地址模板
func (m *TileLayer) Validate() error {
	for _, k := range []string{"{x}", "{y}", "{z}"} {
		if !strings.Contains(m.URL, k) {
			return ErrTemplate
		}
	}
	if strings.Contains(m.URL, "{s}") && len(m.Subdomains) == 0 {
		return errors.New("tile url template uses {s} without subdomains")
	}
	return nil
}

// ClampZoom 限制在图层允许的级别内
func (m *TileLayer) ClampZoom(z int) int {
	max := m.MaxZoom
	if max <= 0 || max > ZoomMax {
		max = ZoomMax
	}
	if z < 0 {
		return 0
	}
	if z > max {
		return max
	}
	return z
}

// TileURL 获取瓦片URL, {s} 按 (x+y) 轮换子域
func (m *TileLayer) TileURL(t maptile.Tile) string {
	url := m.URL
	if len(m.Subdomains) > 0 {
		url = strings.Replace(url, "{s}", m.Subdomains[int(t.X+t.Y)%len(m.Subdomains)], -1)
	}
	url = strings.Replace(url, "{x}", strconv.Itoa(int(t.X)), -1)
	url = strings.Replace(url, "{y}", strconv.Itoa(int(t.Y)), -1)
	url = strings.Replace(url, "{z}", strconv.Itoa(int(t.Z)), -1)
	return url
}

// Ext 瓦片文件扩展名, 默认取模板后缀
func (m *TileLayer) Ext() string {
	if m.Format != "" {
		return m.Format
	}
	for _, f := range []string{PNG, JPG, WEBP} {
		if strings.HasSuffix(m.URL, "."+f) {
			return f
		}
	}
	return PNG
}
