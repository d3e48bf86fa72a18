package main

import (
	"fmt"
	"os"

	"mangrove-viewer/internal/config"
)

var conf *config.Conf

// InitConf 初始化配置
func InitConf(cfgFile string) {
	c, err := config.Load(cfgFile)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	conf = c
}

func main() {
	// 初始化控制台
	InitFlag()
	// 开始安全退出任务
	InitSafeExit()
	// 初始化配置
	InitConf(configPath)
	// 初始化日志
	InitLog()
	// 初始化指标
	InitMetrics()
	// 挂载地图并导出
	os.Exit(Run())
}
