// Package headless 进程内地图引擎. 记录图层、视野与裁剪状态,
// 并和浏览器地图库一样拒绝在同一容器上创建第二个实例.
package headless

import (
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb"

	"mangrove-viewer/internal/compare"
	"mangrove-viewer/internal/lifecycle"
)

var (
	// ErrContainerInUse 容器上已有地图实例
	ErrContainerInUse = errors.New("map container is already initialized")
	// ErrMapRemoved 地图已销毁
	ErrMapRemoved = errors.New("map has been removed")
)

// element 容器的宿主侧状态, 跨地图实例保留
type element struct {
	live       *Map
	tileLayers int
	created    int
}

// Engine 进程内地图引擎
type Engine struct {
	// SplitPlugin 是否提供左右分割能力
	SplitPlugin bool
	// MaxZoom 视野适配允许的最大级别
	MaxZoom int

	mu       sync.Mutex
	elements map[string]*element
	failNext error
	failTile error
}

// NewEngine 创建引擎
func NewEngine(splitPlugin bool) *Engine {
	return &Engine{
		SplitPlugin: splitPlugin,
		MaxZoom:     19,
		elements:    make(map[string]*element),
	}
}

// FailNextCreate 下一次 NewMap 返回 err
func (e *Engine) FailNextCreate(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failNext = err
}

// FailTileLayers 之后的底图挂载都返回 err, nil 恢复
func (e *Engine) FailTileLayers(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failTile = err
}

// NewMap 在容器上创建地图实例
func (e *Engine) NewMap(c lifecycle.Container, center orb.Point, zoom int) (lifecycle.Map, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.failNext; err != nil {
		e.failNext = nil
		return nil, err
	}
	if c.ID == "" {
		return nil, fmt.Errorf("map container not found")
	}
	el, ok := e.elements[c.ID]
	if !ok {
		el = &element{}
		e.elements[c.ID] = el
	}
	if el.live != nil {
		return nil, fmt.Errorf("%s: %w", c.ID, ErrContainerInUse)
	}
	m := newMap(e, c, center, zoom)
	el.live = m
	el.created++
	return m, nil
}

// Splitter 插件可用时返回地图的分割能力
func (e *Engine) Splitter(m lifecycle.Map) compare.Splitter {
	hm, ok := m.(*Map)
	if !e.SplitPlugin || !ok {
		return nil
	}
	return &splitter{m: hm}
}

// Live 容器上的存活实例
func (e *Engine) Live(containerID string) *Map {
	e.mu.Lock()
	defer e.mu.Unlock()
	if el, ok := e.elements[containerID]; ok {
		return el.live
	}
	return nil
}

// LiveMaps 容器上的存活实例数 (0 或 1)
func (e *Engine) LiveMaps(containerID string) int {
	if e.Live(containerID) != nil {
		return 1
	}
	return 0
}

// TileLayers 容器上当前挂载的底图数
func (e *Engine) TileLayers(containerID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if el, ok := e.elements[containerID]; ok {
		return el.tileLayers
	}
	return 0
}

// Created 容器上累计创建的实例数
func (e *Engine) Created(containerID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if el, ok := e.elements[containerID]; ok {
		return el.created
	}
	return 0
}

func (e *Engine) tileAttached(m *Map) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failTile != nil {
		return e.failTile
	}
	e.elements[m.container.ID].tileLayers++
	return nil
}

func (e *Engine) detach(m *Map, tiles int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	el := e.elements[m.container.ID]
	el.tileLayers -= tiles
	if el.live == m {
		el.live = nil
	}
}
