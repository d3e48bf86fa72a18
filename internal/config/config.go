package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Conf 应用配置
type Conf struct {
	App struct {
		Version string `toml:"version"`
		Title   string `toml:"title"`
	} `toml:"app"`
	Output struct {
		Directory      string `toml:"directory"`
		LogDir         string `toml:"logDir"`
		OutputTerminal bool   `toml:"outputTerminal"`
		Snapshot       string `toml:"snapshot"`
	} `toml:"output"`
	Map struct {
		Container   string  `toml:"container"`
		Width       int     `toml:"width"`
		Height      int     `toml:"height"`
		CenterLon   float64 `toml:"centerLon"`
		CenterLat   float64 `toml:"centerLat"`
		Zoom        int     `toml:"zoom"`
		SettleDelay int     `toml:"settleDelay"`
	} `toml:"map"`
	Basemap struct {
		URL         string   `toml:"url"`
		Subdomains  []string `toml:"subdomains"`
		Attribution string   `toml:"attribution"`
		MaxZoom     int      `toml:"maxZoom"`
	} `toml:"basemap"`
	Overlays struct {
		Boundary    string `toml:"boundary"`
		Earlier     string `toml:"earlier"`
		Later       string `toml:"later"`
		EarlierKind string `toml:"earlierKind"`
		LaterKind   string `toml:"laterKind"`
	} `toml:"overlays"`
	Fetch struct {
		Timeout     int `toml:"timeout"`
		Concurrency int `toml:"concurrency"`
	} `toml:"fetch"`
	Prefetch struct {
		Enabled   bool   `toml:"enabled"`
		MinZoom   int    `toml:"minZoom"`
		MaxZoom   int    `toml:"maxZoom"`
		Workers   int    `toml:"workers"`
		Timedelay int    `toml:"timedelay"`
		BufSize   int    `toml:"bufSize"`
		ResumeDir string `toml:"resumeDir"`
	} `toml:"prefetch"`
	Metrics struct {
		Addr string `toml:"addr"`
	} `toml:"metrics"`
}

// SettleDelay 图层添加前的等待时间
func (c *Conf) SettleDelay() time.Duration {
	return time.Duration(c.Map.SettleDelay) * time.Millisecond
}

// FetchTimeout 单个数据源的请求超时
func (c *Conf) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.Timeout) * time.Millisecond
}

// PrefetchDelay 预取请求间隔
func (c *Conf) PrefetchDelay() time.Duration {
	return time.Duration(c.Prefetch.Timedelay) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.version", "v 0.1.0")
	v.SetDefault("app.title", "Mangrove Viewer")
	v.SetDefault("output.directory", "output")
	v.SetDefault("output.outputTerminal", true)
	v.SetDefault("output.snapshot", "output/snapshot.json")
	v.SetDefault("map.container", "mangrove-map")
	v.SetDefault("map.width", 1024)
	v.SetDefault("map.height", 600)
	v.SetDefault("map.centerLon", 81.6337)
	v.SetDefault("map.centerLat", 7.2906)
	v.SetDefault("map.zoom", 9)
	v.SetDefault("map.settleDelay", 0)
	v.SetDefault("basemap.url", "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png")
	v.SetDefault("basemap.subdomains", []string{"a", "b", "c"})
	v.SetDefault("basemap.attribution", "© OpenStreetMap")
	v.SetDefault("basemap.maxZoom", 19)
	v.SetDefault("overlays.earlier", "data/2000-mangroves.geojson")
	v.SetDefault("overlays.later", "data/2020-mangroves.geojson")
	v.SetDefault("overlays.earlierKind", "polygon")
	v.SetDefault("overlays.laterKind", "polygon")
	v.SetDefault("fetch.timeout", 15000)
	v.SetDefault("fetch.concurrency", 4)
	v.SetDefault("prefetch.minZoom", 9)
	v.SetDefault("prefetch.maxZoom", 12)
	v.SetDefault("prefetch.workers", 4)
	v.SetDefault("prefetch.timedelay", 0)
	v.SetDefault("prefetch.bufSize", 64)
	v.SetDefault("prefetch.resumeDir", "output/resume")
}

// Load 读取配置文件, 文件不存在时返回错误
func Load(cfgFile string) (*Conf, error) {
	if cfgFile == "" {
		cfgFile = "conf.toml"
	}
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file(%s) not exist", cfgFile)
	}
	v := viper.New()
	v.SetConfigType("toml")
	v.SetConfigFile(cfgFile)
	v.AutomaticEnv()
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file(%s) error: %w", v.ConfigFileUsed(), err)
	}
	return decode(v)
}

// Default 返回仅包含默认值的配置
func Default() *Conf {
	v := viper.New()
	setDefaults(v)
	conf, err := decode(v)
	if err != nil {
		panic("默认配置解析失败")
	}
	return conf
}

func decode(v *viper.Viper) (*Conf, error) {
	var conf Conf
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("配置文件解析失败: %w", err)
	}
	return &conf, nil
}
