package headless

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"mangrove-viewer/internal/basemap"
	"mangrove-viewer/internal/layer"
	"mangrove-viewer/internal/lifecycle"
)

// Map 进程内地图实例
type Map struct {
	engine    *Engine
	container lifecycle.Container

	mu       sync.Mutex
	center   orb.Point
	zoom     int
	tiles    []basemap.TileLayer
	layers   []*layer.Loaded
	clips    map[string]orb.Bound
	fitted   orb.Bound
	fits     int
	divider  *divider
	ratio    float64
	removed  bool
	removals int
	// late 销毁后收到的修改次数, 正常情况下应为 0
	late int
}

func newMap(e *Engine, c lifecycle.Container, center orb.Point, zoom int) *Map {
	if c.Width <= 0 {
		c.Width = basemap.TileSize * 4
	}
	if c.Height <= 0 {
		c.Height = basemap.TileSize * 2
	}
	return &Map{
		engine:    e,
		container: c,
		center:    center,
		zoom:      zoom,
		clips:     make(map[string]orb.Bound),
	}
}

// AddTileLayer 挂载底图
func (m *Map) AddTileLayer(t basemap.TileLayer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removed {
		m.late++
		return ErrMapRemoved
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if err := m.engine.tileAttached(m); err != nil {
		return err
	}
	m.tiles = append(m.tiles, t)
	return nil
}

// AddLayer 挂载叠加图层, 同 ID 不可重复
func (m *Map) AddLayer(l *layer.Loaded) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removed {
		m.late++
		return ErrMapRemoved
	}
	for _, cur := range m.layers {
		if cur.ID == l.ID {
			return fmt.Errorf("layer %s already attached", l.ID)
		}
	}
	m.layers = append(m.layers, l)
	return nil
}

// RemoveLayer 移除叠加图层
func (m *Map) RemoveLayer(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removed {
		m.late++
		return
	}
	for i, cur := range m.layers {
		if cur.ID == id {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			break
		}
	}
	if d := m.divider; d != nil && (d.left == id || d.right == id) {
		delete(m.clips, d.left)
		delete(m.clips, d.right)
		m.divider = nil
	}
}

// FitBounds 把视野适配到范围: 中心取范围中心, 级别取能完整显示范围的最大级别
func (m *Map) FitBounds(b orb.Bound) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removed {
		m.late++
		return
	}
	m.fitted = b
	m.fits++
	m.center = b.Center()
	m.zoom = 0
	for z := m.engine.MaxZoom; z >= 0; z-- {
		tl := maptile.At(orb.Point{b.Min[0], b.Max[1]}, maptile.Zoom(z))
		br := maptile.At(orb.Point{b.Max[0], b.Min[1]}, maptile.Zoom(z))
		cols := int(br.X) - int(tl.X) + 1
		rows := int(br.Y) - int(tl.Y) + 1
		if cols*basemap.TileSize <= m.container.Width && rows*basemap.TileSize <= m.container.Height {
			m.zoom = z
			break
		}
	}
	m.reclip()
}

// reclip 视野变化后按分割位置重新裁剪
func (m *Map) reclip() {
	if m.divider == nil {
		return
	}
	left, right := SplitView(m.view(), m.ratio)
	m.clips[m.divider.left] = left
	m.clips[m.divider.right] = right
}

// Divider 当前分割位置, 没有分割线时 ok 为 false
func (m *Map) Divider() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ratio, m.divider != nil
}

// Remove 销毁地图, 释放容器
func (m *Map) Remove() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removals++
	if m.removed {
		return ErrMapRemoved
	}
	m.removed = true
	m.engine.detach(m, len(m.tiles))
	m.tiles = nil
	m.layers = nil
	m.divider = nil
	m.clips = make(map[string]orb.Bound)
	return nil
}

// View 当前视野, 按瓦片网格取整
func (m *Map) View() orb.Bound {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view()
}

func (m *Map) view() orb.Bound {
	z := maptile.Zoom(m.zoom)
	c := maptile.At(m.center, z)
	halfCols := uint32(m.container.Width / basemap.TileSize / 2)
	halfRows := uint32(m.container.Height / basemap.TileSize / 2)
	last := uint32(1)<<uint32(z) - 1

	minX, maxX := sub(c.X, halfCols), add(c.X, halfCols, last)
	minY, maxY := sub(c.Y, halfRows), add(c.Y, halfRows, last)
	return maptile.New(minX, minY, z).Bound().Union(maptile.New(maxX, maxY, z).Bound())
}

func sub(v, d uint32) uint32 {
	if d > v {
		return 0
	}
	return v - d
}

func add(v, d, max uint32) uint32 {
	if v+d > max {
		return max
	}
	return v + d
}

// Center 视野中心
func (m *Map) Center() orb.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.center
}

// Zoom 当前级别
func (m *Map) Zoom() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.zoom
}

// Fitted 最近一次适配的范围与适配次数
func (m *Map) Fitted() (orb.Bound, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fitted, m.fits
}

// TileLayers 已挂载的底图
func (m *Map) TileLayers() []basemap.TileLayer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]basemap.TileLayer, len(m.tiles))
	copy(out, m.tiles)
	return out
}

// Layers 已挂载的叠加图层, 按挂载顺序
func (m *Map) Layers() []*layer.Loaded {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*layer.Loaded, len(m.layers))
	copy(out, m.layers)
	return out
}

// Clip 图层的裁剪范围, 未裁剪时 ok 为 false
func (m *Map) Clip(id string) (orb.Bound, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.clips[id]
	return b, ok
}

// Removed 是否已销毁
func (m *Map) Removed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removed
}

// Removals Remove 被调用的次数
func (m *Map) Removals() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removals
}

// LateMutations 销毁后收到的修改次数
func (m *Map) LateMutations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.late
}

func (m *Map) attached(id string) bool {
	for _, l := range m.layers {
		if l.ID == id {
			return true
		}
	}
	return false
}
