package lifecycle

import (
	"time"

	"mangrove-viewer/internal/compare"
	"mangrove-viewer/internal/fallback"
	"mangrove-viewer/internal/geodata"
	"mangrove-viewer/internal/layer"
	"mangrove-viewer/internal/metrics"
)

type request struct {
	role layer.Role
	src  geodata.Source
}

func (o Overlays) requests() []request {
	var reqs []request
	for _, r := range []request{
		{layer.Boundary, o.Boundary},
		{layer.Earlier, o.Earlier},
		{layer.Later, o.Later},
	} {
		if r.src.Defined() {
			reqs = append(reqs, r)
		}
	}
	return reqs
}

// load 一次加载周期: 获取 -> 合成/占位 -> 挂载 -> 绑定对比控件 -> 适配视野
func (mgr *Manager) load(s *Session) {
	defer close(s.settled)

	if d := mgr.opts.SettleDelay; d > 0 {
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-s.ctx.Done():
			t.Stop()
			mgr.discard(s)
			return
		}
	}

	reqs := mgr.opts.Overlays.requests()
	sources := make([]geodata.Source, len(reqs))
	for i, r := range reqs {
		sources[i] = r.src
	}
	var results []geodata.Result
	if len(sources) > 0 {
		results = mgr.fetcher.FetchAll(s.ctx, sources)
	}
	if s.ctx.Err() != nil {
		mgr.discard(s)
		return
	}

	byRole := make(map[layer.Role]geodata.Result, len(reqs))
	for i, r := range reqs {
		if i < len(results) {
			byRole[r.role] = results[i]
		}
	}
	layers := mgr.compose(s, byRole)
	s.apply(layers)
}

func (mgr *Manager) discard(s *Session) {
	metrics.LateResultsDiscardedTotal.Inc()
	s.log.Debugf("load cycle cancelled, results discarded")
}

// compose 把获取结果包装为图层, 时间序列缺失时由边界生成占位图层
func (mgr *Manager) compose(s *Session, byRole map[layer.Role]geodata.Result) []*layer.Loaded {
	var (
		layers  []*layer.Loaded
		missing []layer.Role
	)
	for _, role := range []layer.Role{layer.Boundary, layer.Earlier, layer.Later} {
		res, ok := byRole[role]
		if !ok || !res.Available {
			if role != layer.Boundary {
				missing = append(missing, role)
			}
			continue
		}
		l, err := layer.Compose(s.ID, role, res)
		if err != nil {
			s.log.Warnf("compose %s: %v", role, err)
			continue
		}
		layers = append(layers, l)
	}
	if len(missing) == 0 {
		return layers
	}

	boundary, ok := byRole[layer.Boundary]
	if !ok || !boundary.Available || boundary.Features == nil {
		s.log.Infof("%d time-series overlays unavailable and no boundary to derive placeholders from", len(missing))
		return layers
	}
	ph, ok := fallback.Synthesize(boundary.Features)
	if !ok {
		s.log.Infof("boundary has no polygons to derive placeholders from")
		return layers
	}
	metrics.FallbackSynthesizedTotal.Inc()
	for _, role := range missing {
		fc := ph.Earlier
		if role == layer.Later {
			fc = ph.Later
		}
		l, err := layer.ComposeFallback(s.ID, role, fc)
		if err != nil {
			s.log.Warnf("compose fallback %s: %v", role, err)
			continue
		}
		s.log.Infof("using fallback geometry for %s overlay (%d placeholders)", role, len(fc.Features))
		layers = append(layers, l)
	}
	return layers
}

// apply 在会话仍存活时挂载图层并适配视野, 已销毁的会话不做任何修改
func (s *Session) apply(layers []*layer.Loaded) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Ready || s.ctx.Err() != nil {
		metrics.LateResultsDiscardedTotal.Inc()
		s.log.Debugf("session %s, %d layers discarded", s.state, len(layers))
		return
	}

	var earlier, later *layer.Loaded
	for _, l := range layers {
		if err := s.m.AddLayer(l); err != nil {
			s.log.Warnf("add layer %s error: %v", l.ID, err)
			continue
		}
		s.layers = append(s.layers, l)
		switch l.Role {
		case layer.Earlier:
			earlier = l
		case layer.Later:
			later = l
		}
	}

	if earlier != nil && later != nil {
		pair, err := compare.NewPair(earlier, later)
		if err != nil {
			s.log.Warnf("comparison not bound: %v", err)
		} else {
			s.binding = compare.Bind(pair, s.splitter, s.log)
		}
	} else {
		s.log.Infof("comparison not bound, fewer than two time-series layers")
	}

	if b, ok := layer.Union(s.layers); ok {
		s.m.FitBounds(b)
		s.viewport, s.fitted = b, true
	}
}
