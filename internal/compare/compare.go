// Package compare 把两个图层绑定到可拖动的分割控件上
package compare

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"mangrove-viewer/internal/layer"
	"mangrove-viewer/internal/metrics"
)

var (
	// ErrControlUnavailable 分割控件无法挂载
	ErrControlUnavailable = errors.New("comparison control unavailable")
	// ErrPairMismatch 图层对不属于同一会话
	ErrPairMismatch = errors.New("comparison layers belong to different sessions")
)

// FallbackNote 分割控件不可用时显示的说明
const FallbackNote = "Side-by-side comparison is unavailable: both years are shown overlaid."

// Pair 左右图层对, 绑定后不可变
type Pair struct {
	left, right *layer.Loaded
}

// NewPair 创建图层对
func NewPair(left, right *layer.Loaded) (Pair, error) {
	if left == nil || right == nil {
		return Pair{}, fmt.Errorf("new pair: %w", layer.ErrEmpty)
	}
	if left.Session != right.Session {
		return Pair{}, fmt.Errorf("new pair %s/%s: %w", left.ID, right.ID, ErrPairMismatch)
	}
	return Pair{left: left, right: right}, nil
}

func (p Pair) Left() *layer.Loaded  { return p.left }
func (p Pair) Right() *layer.Loaded { return p.right }

// Divider 已挂载的分割线
type Divider interface {
	// Move 把分割线移动到视野宽度的 ratio 位置并重新裁剪两侧图层
	Move(ratio float64)
	Remove()
}

// Splitter 分割合成能力, 由地图引擎提供; 为 nil 表示插件不可用
type Splitter interface {
	Split(left, right *layer.Loaded) (Divider, error)
}

// Mode 绑定模式
type Mode int

const (
	// Split 左右裁剪
	Split Mode = iota
	// Overlay 降级: 两个图层完整叠加显示
	Overlay
)

func (m Mode) String() string {
	if m == Split {
		return "split"
	}
	return "overlay"
}

// Binding 图层对与分割控件的绑定
type Binding struct {
	pair    Pair
	mode    Mode
	note    string
	divider Divider

	mu    sync.Mutex
	ratio float64
}

// Bind 把图层对绑定到分割控件, 控件不可用时降级为叠加显示
func Bind(pair Pair, s Splitter, log logrus.FieldLogger) *Binding {
	if log == nil {
		log = logrus.StandardLogger()
	}
	b := &Binding{pair: pair, ratio: 0.5}
	var err error
	if s == nil {
		err = ErrControlUnavailable
	} else if b.divider, err = s.Split(pair.left, pair.right); err == nil && b.divider == nil {
		err = ErrControlUnavailable
	}
	if err != nil {
		if !errors.Is(err, ErrControlUnavailable) {
			err = fmt.Errorf("%w: %v", ErrControlUnavailable, err)
		}
		log.Warnf("bind %s/%s: %v, falling back to overlay", pair.left.ID, pair.right.ID, err)
		metrics.CompareDegradedTotal.Inc()
		b.mode = Overlay
		b.note = FallbackNote
		b.divider = nil
		return b
	}
	b.mode = Split
	b.divider.Move(b.ratio)
	return b
}

func (b *Binding) Pair() Pair   { return b.pair }
func (b *Binding) Mode() Mode   { return b.mode }
func (b *Binding) Note() string { return b.note }

// Ratio 当前分割位置
func (b *Binding) Ratio() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ratio
}

// Drag 移动分割线, 位置限制在 [0, 1]; 叠加模式下只记录位置. NaN 被忽略
func (b *Binding) Drag(ratio float64) {
	if math.IsNaN(ratio) {
		return
	}
	if ratio < 0 {
		ratio = 0
	} else if ratio > 1 {
		ratio = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ratio = ratio
	if b.divider != nil {
		b.divider.Move(ratio)
	}
}

// Follow 逐个应用指针移动事件, 直到通道关闭或 ctx 结束
func (b *Binding) Follow(ctx context.Context, moves <-chan float64) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-moves:
			if !ok {
				return
			}
			b.Drag(r)
		}
	}
}

// Release 移除分割线
func (b *Binding) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.divider != nil {
		b.divider.Remove()
		b.divider = nil
	}
}
