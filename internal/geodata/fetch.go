package geodata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"mangrove-viewer/internal/metrics"
)

// maxPayload 单个数据源的最大字节数
const maxPayload = 64 << 20

// Client 数据获取器, 任何失败都转换为不可用结果, 不向调用方返回错误
type Client struct {
	HTTP        *http.Client
	Timeout     time.Duration
	Concurrency int
	Log         logrus.FieldLogger
}

// NewClient 创建数据获取器
func NewClient(timeout time.Duration, concurrency int, log logrus.FieldLogger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		HTTP:        &http.Client{},
		Timeout:     timeout,
		Concurrency: concurrency,
		Log:         log,
	}
}

// FetchAll 并发获取全部数据源, 全部结束(成功或不可用)后返回, 结果与请求顺序一致
func (c *Client) FetchAll(ctx context.Context, sources []Source) []Result {
	results := make([]Result, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	if c.Concurrency > 0 {
		g.SetLimit(c.Concurrency)
	}
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			results[i] = c.Fetch(gctx, src)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Fetch 获取单个数据源
func (c *Client) Fetch(ctx context.Context, src Source) Result {
	start := time.Now()
	res := c.fetch(ctx, src)
	outcome := "available"
	if !res.Available {
		outcome = "unavailable"
		c.logger().WithField("source", src.Name).Infof("overlay %s unavailable: %v", src.URL, res.Reason)
	} else {
		c.logger().WithField("source", src.Name).Debugf("overlay %s loaded, %dms", src.URL, time.Since(start).Milliseconds())
	}
	metrics.OverlayFetchTotal.WithLabelValues(src.Name, outcome).Inc()
	return res
}

func (c *Client) fetch(ctx context.Context, src Source) Result {
	if !src.Defined() {
		return unavailable(src, "no url configured")
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	data, err := c.read(ctx, src.URL)
	if err != nil {
		return unavailable(src, "%v", err)
	}
	return decode(src, data)
}

func (c *Client) read(ctx context.Context, url string) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		// 本地文件, 和远程一样受取消控制
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return os.ReadFile(strings.TrimPrefix(url, "file://"))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status code: %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPayload))
}

func decode(src Source, data []byte) Result {
	if len(data) == 0 {
		return unavailable(src, "empty payload")
	}
	switch src.Kind {
	case RasterGrid:
		r, err := UnmarshalRaster(data)
		if err != nil {
			return unavailable(src, "malformed raster: %v", err)
		}
		return Result{Source: src, Available: true, Raster: r}
	default:
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return unavailable(src, "malformed geojson: %v", err)
		}
		if fc.Type != "FeatureCollection" {
			return unavailable(src, "malformed geojson: type %q", fc.Type)
		}
		return Result{Source: src, Available: true, Features: fc}
	}
}

func (c *Client) logger() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}
