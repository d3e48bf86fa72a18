// Package lifecycle 管理地图会话: 创建、单实例约束、视野适配与销毁
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"mangrove-viewer/internal/basemap"
	"mangrove-viewer/internal/compare"
	"mangrove-viewer/internal/geodata"
	"mangrove-viewer/internal/layer"
	"mangrove-viewer/internal/metrics"
)

var (
	// ErrInitialization 地图无法创建, 唯一需要宿主展示的错误
	ErrInitialization = errors.New("map initialization failed")
	// ErrContainerMissing 宿主容器不存在
	ErrContainerMissing = errors.New("map container missing")
	// ErrSessionConflict 容器上已有存活会话
	ErrSessionConflict = errors.New("container already bound to a live session")
)

// Container 宿主提供的容器
type Container struct {
	ID     string
	Width  int
	Height int
}

// Map 底层地图实例, 只能由 Manager 创建和销毁
type Map interface {
	AddTileLayer(t basemap.TileLayer) error
	AddLayer(l *layer.Loaded) error
	RemoveLayer(id string)
	FitBounds(b orb.Bound)
	Remove() error
}

// Engine 地图引擎
type Engine interface {
	NewMap(c Container, center orb.Point, zoom int) (Map, error)
	// Splitter 返回分割合成能力, 插件不可用时返回 nil
	Splitter(m Map) compare.Splitter
}

// Fetcher 叠加数据获取, 全部结束后返回
type Fetcher interface {
	FetchAll(ctx context.Context, sources []geodata.Source) []geodata.Result
}

// Overlays 一次加载周期的数据源
type Overlays struct {
	Boundary geodata.Source
	Earlier  geodata.Source
	Later    geodata.Source
}

// Options 会话参数
type Options struct {
	Center      orb.Point
	Zoom        int
	Basemap     basemap.TileLayer
	Overlays    Overlays
	SettleDelay time.Duration
}

// Manager 会话管理器, 每个容器同一时刻最多绑定一个会话
type Manager struct {
	engine  Engine
	fetcher Fetcher
	opts    Options
	log     logrus.FieldLogger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager 创建会话管理器
func NewManager(engine Engine, fetcher Fetcher, opts Options, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		engine:   engine,
		fetcher:  fetcher,
		opts:     opts,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Mount 在容器上创建会话. 容器上已有会话时先将其销毁.
// 底图挂载后即进入 Ready, 叠加图层在后台加载.
func (mgr *Manager) Mount(ctx context.Context, c Container) (*Session, error) {
	if c.ID == "" {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, ErrContainerMissing)
	}
	log := mgr.log.WithField("container", c.ID)

	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if prev, ok := mgr.sessions[c.ID]; ok {
		log.WithField("session", prev.ID).Warnf("%v, tearing it down", ErrSessionConflict)
		metrics.SessionConflictsTotal.Inc()
		mgr.release(prev)
		delete(mgr.sessions, c.ID)
	}

	s := newSession(ctx, c, log)
	m, err := mgr.engine.NewMap(c, mgr.opts.Center, mgr.opts.Zoom)
	if err != nil {
		s.cancel()
		s.setState(Unmounted)
		log.Errorf("create map error: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrInitialization, err)
	}

	s.mu.Lock()
	s.m = m
	if err := m.AddTileLayer(mgr.opts.Basemap); err != nil {
		s.log.Warnf("base tile layer unavailable, continuing without basemap: %v", err)
	} else {
		s.baseAttached = true
	}
	s.splitter = mgr.engine.Splitter(m)
	s.state = Ready
	s.mu.Unlock()

	mgr.sessions[c.ID] = s
	metrics.SessionsLive.Inc()
	s.log.Infof("session ready at %v zoom %d", mgr.opts.Center, mgr.opts.Zoom)

	go mgr.load(s)
	return s, nil
}

// Unmount 销毁会话, 重复调用无副作用
func (mgr *Manager) Unmount(s *Session) {
	if s == nil {
		return
	}
	mgr.release(s)

	mgr.mu.Lock()
	if cur, ok := mgr.sessions[s.container.ID]; ok && cur == s {
		delete(mgr.sessions, s.container.ID)
	}
	mgr.mu.Unlock()
}

func (mgr *Manager) release(s *Session) {
	if s.teardown() {
		metrics.SessionsLive.Dec()
		s.log.Infof("session torn down")
	}
}

// Session 返回容器上的存活会话
func (mgr *Manager) Session(containerID string) (*Session, bool) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	s, ok := mgr.sessions[containerID]
	return s, ok
}

// Close 销毁全部会话
func (mgr *Manager) Close() {
	mgr.mu.Lock()
	sessions := make([]*Session, 0, len(mgr.sessions))
	for _, s := range mgr.sessions {
		sessions = append(sessions, s)
	}
	mgr.mu.Unlock()
	for _, s := range sessions {
		mgr.Unmount(s)
	}
}
