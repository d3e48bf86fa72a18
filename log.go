package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/shiena/ansicolor"
)

var log *logrus.Logger

// InitLog 初始化日志, 日志文件无法打开时退出
func InitLog() {
	l, err := newLogger(conf.Output.LogDir, conf.Output.OutputTerminal, logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "日志初始化失败: %v\n", err)
		os.Exit(1)
	}
	log = l
}

// newLogger 日志同时写入按天滚动的文件和终端, 两者都关闭时丢弃
func newLogger(logDir string, terminal bool, levelName string) (*logrus.Logger, error) {
	out, err := logOutput(logDir, terminal)
	if err != nil {
		return nil, err
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		level = logrus.InfoLevel
	}
	return &logrus.Logger{
		Out: ansicolor.NewAnsiColorWriter(out),
		Formatter: &nested.Formatter{
			HideKeys:        true,
			ShowFullLevel:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		},
		Hooks:    make(logrus.LevelHooks),
		Level:    level,
		ExitFunc: os.Exit,
	}, nil
}

func logOutput(logDir string, terminal bool) (io.Writer, error) {
	var writers []io.Writer
	if logDir != "" {
		if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
			return nil, err
		}
		name := filepath.Join(logDir, time.Now().Format("2006-01-02")+".log")
		f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", name, err)
		}
		writers = append(writers, f)
	}
	if terminal {
		writers = append(writers, os.Stdout)
	}
	switch len(writers) {
	case 0:
		return io.Discard, nil
	case 1:
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}
