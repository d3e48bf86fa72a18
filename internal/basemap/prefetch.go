package basemap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"
	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
	pb "gopkg.in/cheggaaa/pb.v1"
)

// ErrAborted 任务被 Abort 结束
var ErrAborted = errors.New("prefetch aborted")

// PrefetchOptions 预取参数
type PrefetchOptions struct {
	Dir       string
	MinZoom   int
	MaxZoom   int
	Workers   int
	TimeDelay time.Duration
	BufSize   int
	// Output 进度条输出, 为 nil 时输出到终端
	Output io.Writer
}

// Prefetch 把视野范围内的底图瓦片下载到本地目录
type Prefetch struct {
	ID     string
	Layer  TileLayer
	Bound  orb.Bound
	Total  int64
	Resume *Resume
	HTTP   *http.Client

	opts    PrefetchOptions
	log     logrus.FieldLogger
	saved   int64
	skipped int64
	tileWG  sync.WaitGroup
	workers chan struct{}
	abort   chan struct{}
	once    sync.Once
}

// NewPrefetch 创建预取任务
func NewPrefetch(layer TileLayer, bound orb.Bound, opts PrefetchOptions, resume *Resume, log logrus.FieldLogger) (*Prefetch, error) {
	if err := layer.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	opts.MinZoom = layer.ClampZoom(opts.MinZoom)
	opts.MaxZoom = layer.ClampZoom(opts.MaxZoom)
	if opts.MaxZoom < opts.MinZoom {
		return nil, fmt.Errorf("invalid zoom range %d-%d", opts.MinZoom, opts.MaxZoom)
	}
	id, _ := shortid.Generate()
	p := &Prefetch{
		ID:      id,
		Layer:   layer,
		Bound:   bound,
		Resume:  resume,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		opts:    opts,
		log:     log.WithField("task", id),
		workers: make(chan struct{}, opts.Workers),
		abort:   make(chan struct{}),
	}
	for z := opts.MinZoom; z <= opts.MaxZoom; z++ {
		n := tilecover.CollectionCount(p.collection(), maptile.Zoom(z))
		p.log.Debugf("zoom: %d, tiles: %d", z, n)
		p.Total += n
	}
	return p, nil
}

func (p *Prefetch) collection() orb.Collection {
	return orb.Collection{p.Bound.ToPolygon()}
}

// Saved 已下载的瓦片数
func (p *Prefetch) Saved() int64 { return atomic.LoadInt64(&p.saved) }

// Skipped 断点记录中已存在而跳过的瓦片数
func (p *Prefetch) Skipped() int64 { return atomic.LoadInt64(&p.skipped) }

// Abort 结束任务
func (p *Prefetch) Abort() {
	p.once.Do(func() { close(p.abort) })
}

// Run 逐级下载, 返回时所有已启动的下载都已结束
func (p *Prefetch) Run(ctx context.Context) error {
	start := time.Now()
	if err := os.MkdirAll(p.opts.Dir, os.ModePerm); err != nil {
		return fmt.Errorf("create tile directory: %w", err)
	}
	for z := p.opts.MinZoom; z <= p.opts.MaxZoom; z++ {
		if !p.runZoom(ctx, z) {
			p.log.Infof("Prefetch %s got canceled.", p.ID)
			if err := ctx.Err(); err != nil {
				return err
			}
			return ErrAborted
		}
	}
	p.log.Infof("prefetch %s finished, %d saved, %d skipped, %.3fs", p.ID, p.Saved(), p.Skipped(), time.Since(start).Seconds())
	return nil
}

func (p *Prefetch) runZoom(ctx context.Context, z int) bool {
	count := tilecover.CollectionCount(p.collection(), maptile.Zoom(z))
	bar := pb.New64(count).Prefix(fmt.Sprintf("Zoom %d : ", z))
	if p.opts.Output != nil {
		bar.Output = p.opts.Output
	}
	bar.SetRefreshRate(time.Second)
	bar.Start()

	tilelist := make(chan maptile.Tile, p.opts.BufSize)
	go tilecover.CollectionChannel(p.collection(), maptile.Zoom(z), tilelist)

	completed := true
loop:
	for tile := range tilelist {
		if ctx.Err() != nil {
			completed = false
			break
		}
		if p.Resume != nil && p.Resume.IsDone(tile) {
			atomic.AddInt64(&p.skipped, 1)
			bar.Increment()
			continue
		}
		select {
		case p.workers <- struct{}{}:
			bar.Increment()
			if p.opts.TimeDelay > 0 {
				time.Sleep(p.opts.TimeDelay)
			}
			p.tileWG.Add(1)
			go p.fetchTile(ctx, tile)
		case <-ctx.Done():
			completed = false
			break loop
		case <-p.abort:
			completed = false
			break loop
		}
	}
	if !completed {
		// 排空剩余瓦片, 让生成协程退出
		go func() {
			for range tilelist {
			}
		}()
	}
	p.tileWG.Wait()
	bar.FinishPrint(fmt.Sprintf("Prefetch %s Zoom %d finished ~", p.ID, z))
	return completed
}

func (p *Prefetch) fetchTile(ctx context.Context, mt maptile.Tile) {
	defer func() {
		p.tileWG.Done()
		<-p.workers
	}()
	url := p.Layer.TileURL(mt)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		p.log.Debugf("fetch %s error, details: %s ~", url, err)
		return
	}
	resp, err := p.HTTP.Do(req)
	if err != nil {
		p.log.Debugf("fetch %s error, details: %s ~", url, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		p.log.Debugf("fetch %s tile error, status code: %d ~", url, resp.StatusCode)
		return
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.log.Debugf("read %v tile error ~ %s", mt, err)
		return
	}
	if len(body) == 0 {
		p.log.Debugf("nil tile %v ~", mt)
		return
	}
	if err := p.save(mt, body); err != nil {
		p.log.Errorf("create %v tile file error ~ %s", mt, err)
		return
	}
	atomic.AddInt64(&p.saved, 1)
	if p.Resume != nil {
		p.Resume.MarkDone(mt)
	}
}

// save 按 z/x/y.ext 保存瓦片
func (p *Prefetch) save(t maptile.Tile, data []byte) error {
	dir := filepath.Join(p.opts.Dir, fmt.Sprintf(`%d`, t.Z), fmt.Sprintf(`%d`, t.X))
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, fmt.Sprintf(`%d.%s`, t.Y, p.Layer.Ext())), data, 0o644)
}

// TilePath 瓦片在本地目录中的路径
func (p *Prefetch) TilePath(t maptile.Tile) string {
	return filepath.Join(p.opts.Dir, fmt.Sprintf(`%d`, t.Z), fmt.Sprintf(`%d`, t.X), fmt.Sprintf(`%d.%s`, t.Y, p.Layer.Ext()))
}
