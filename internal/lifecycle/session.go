package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"

	"mangrove-viewer/internal/compare"
	"mangrove-viewer/internal/layer"
)

// State 会话状态
type State int

const (
	Unmounted State = iota
	Initializing
	Ready
	TearingDown
)

func (s State) String() string {
	switch s {
	case Unmounted:
		return "unmounted"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case TearingDown:
		return "tearing-down"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Session 绑定到一个容器的地图实例
type Session struct {
	ID        string
	container Container
	log       logrus.FieldLogger

	// ctx 在销毁前取消, 所有异步回调都检查它
	ctx     context.Context
	cancel  context.CancelFunc
	settled chan struct{}

	mu           sync.Mutex
	state        State
	m            Map
	splitter     compare.Splitter
	baseAttached bool
	layers       []*layer.Loaded
	binding      *compare.Binding
	viewport     orb.Bound
	fitted       bool
}

func newSession(parent context.Context, c Container, log logrus.FieldLogger) *Session {
	id, err := shortid.Generate()
	if err != nil {
		id = c.ID
	}
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ID:        id,
		container: c,
		log:       log.WithField("session", id),
		ctx:       ctx,
		cancel:    cancel,
		settled:   make(chan struct{}),
		state:     Initializing,
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Container 会话所在容器
func (s *Session) Container() Container { return s.container }

// State 当前状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BaseAttached 底图是否挂载成功
func (s *Session) BaseAttached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseAttached
}

// Layers 已挂载的叠加图层
func (s *Session) Layers() []*layer.Loaded {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*layer.Loaded, len(s.layers))
	copy(out, s.layers)
	return out
}

// Binding 对比控件绑定, 图层不足两个时为 nil
func (s *Session) Binding() *compare.Binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binding
}

// Viewport 加载周期结束后适配的视野
func (s *Session) Viewport() (orb.Bound, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport, s.fitted
}

// Settled 加载周期结束(完成、取消或丢弃)后关闭
func (s *Session) Settled() <-chan struct{} {
	return s.settled
}

// Wait 等待加载周期结束
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// teardown 取消异步任务并释放地图, 只有第一次调用生效
func (s *Session) teardown() bool {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Unmounted || s.state == TearingDown {
		return false
	}
	s.state = TearingDown
	if s.binding != nil {
		s.binding.Release()
		s.binding = nil
	}
	if s.m != nil {
		for i := len(s.layers) - 1; i >= 0; i-- {
			s.m.RemoveLayer(s.layers[i].ID)
		}
		if err := s.m.Remove(); err != nil {
			s.log.Warnf("remove map error: %v", err)
		}
	}
	s.layers = nil
	s.state = Unmounted
	return true
}
