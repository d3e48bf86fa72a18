package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/paulmach/orb"

	"mangrove-viewer/internal/basemap"
	"mangrove-viewer/internal/config"
	"mangrove-viewer/internal/geodata"
	"mangrove-viewer/internal/headless"
	"mangrove-viewer/internal/lifecycle"
)

// buildOptions 由配置生成会话参数
func buildOptions(c *config.Conf) (lifecycle.Options, error) {
	earlierKind, err := geodata.ParseKind(c.Overlays.EarlierKind)
	if err != nil {
		return lifecycle.Options{}, err
	}
	laterKind, err := geodata.ParseKind(c.Overlays.LaterKind)
	if err != nil {
		return lifecycle.Options{}, err
	}
	return lifecycle.Options{
		Center: orb.Point{c.Map.CenterLon, c.Map.CenterLat},
		Zoom:   c.Map.Zoom,
		Basemap: basemap.TileLayer{
			Name:        "basemap",
			URL:         c.Basemap.URL,
			Subdomains:  c.Basemap.Subdomains,
			Attribution: c.Basemap.Attribution,
			MaxZoom:     c.Basemap.MaxZoom,
		},
		Overlays: lifecycle.Overlays{
			Boundary: geodata.Source{Name: "boundary", URL: c.Overlays.Boundary, Kind: geodata.PolygonSet},
			Earlier:  geodata.Source{Name: "earlier", URL: c.Overlays.Earlier, Kind: earlierKind},
			Later:    geodata.Source{Name: "later", URL: c.Overlays.Later, Kind: laterKind},
		},
		SettleDelay: c.SettleDelay(),
	}, nil
}

// Run 挂载会话, 等待加载周期结束后导出快照, 返回进程退出码
func Run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts, err := buildOptions(conf)
	if err != nil {
		log.Errorf("配置错误: %v", err)
		return 1
	}
	engine := headless.NewEngine(true)
	if conf.Basemap.MaxZoom > 0 {
		engine.MaxZoom = conf.Basemap.MaxZoom
	}
	fetcher := geodata.NewClient(conf.FetchTimeout(), conf.Fetch.Concurrency, log)
	mgr := lifecycle.NewManager(engine, fetcher, opts, log)
	SafeExitInst.Register(mgr.Close)
	defer SafeExitInst.Run()

	container := lifecycle.Container{ID: conf.Map.Container, Width: conf.Map.Width, Height: conf.Map.Height}
	s, err := mgr.Mount(ctx, container)
	if err != nil {
		// 唯一需要展示给用户的错误
		fmt.Printf("地图加载失败: %v\n", err)
		log.Errorf("mount %s error: %v", container.ID, err)
		return 1
	}
	if err := s.Wait(ctx); err != nil {
		log.Errorf("load cycle error: %v", err)
		return 1
	}

	if b := s.Binding(); b != nil {
		b.Drag(dividerRatio)
		if note := b.Note(); note != "" {
			log.Warnln(note)
		}
	}

	m := engine.Live(container.ID)
	if m == nil {
		log.Errorf("session %s lost its map", s.ID)
		return 1
	}
	path := snapshotPath
	if path == "" {
		path = conf.Output.Snapshot
	}
	if err := writeSnapshot(path, newSnapshot(s, m)); err != nil {
		log.Errorf("write snapshot error: %v", err)
		return 1
	}
	log.Infof("snapshot written to %s", path)

	if conf.Prefetch.Enabled {
		if err := prefetch(ctx, opts.Basemap, m.View()); err != nil {
			log.Warnf("prefetch error: %v", err)
		}
	}
	return 0
}

// prefetch 下载当前视野内的底图瓦片
func prefetch(ctx context.Context, layer basemap.TileLayer, view orb.Bound) error {
	resume, err := basemap.OpenResume(conf.Prefetch.ResumeDir, layer.Name)
	if err != nil {
		return err
	}
	defer resume.Close()

	p, err := basemap.NewPrefetch(layer, view, basemap.PrefetchOptions{
		Dir:       filepath.Join(conf.Output.Directory, "tiles"),
		MinZoom:   conf.Prefetch.MinZoom,
		MaxZoom:   conf.Prefetch.MaxZoom,
		Workers:   conf.Prefetch.Workers,
		TimeDelay: conf.PrefetchDelay(),
		BufSize:   conf.Prefetch.BufSize,
	}, resume, log)
	if err != nil {
		return err
	}
	SafeExitInst.Register(p.Abort)
	log.Infof("prefetch %s: %d tiles, zoom %d-%d", p.ID, p.Total, conf.Prefetch.MinZoom, conf.Prefetch.MaxZoom)
	return p.Run(ctx)
}
