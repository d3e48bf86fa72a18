package main

import (
	"flag"
	"fmt"
	"os"
)

var (
	hf           bool
	configPath   string
	logLevel     string
	snapshotPath string
	dividerRatio float64
)

func InitFlag() {
	flag.BoolVar(&hf, "h", false, "this help")
	flag.StringVar(&configPath, "c", "./conf/conf.toml", "set config `file`")
	flag.StringVar(&logLevel, "l", "info", "set log level (default: info)")
	flag.StringVar(&snapshotPath, "o", "", "write snapshot to `file` (default: output.snapshot)")
	flag.Float64Var(&dividerRatio, "d", 0.5, "comparison divider position, 0 (left edge) to 1 (right edge)")
	flag.Usage = usage
	flag.Parse()

	if hf {
		flag.Usage()
		os.Exit(0)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `mangrove-viewer version: mangrove-viewer/v0.1.0
Usage: mangrove-viewer [-h] [-c filename] [-l logLevel] [-o snapshot] [-d ratio]
`)
	flag.PrintDefaults()
}
