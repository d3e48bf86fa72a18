package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var SafeExitInst *SafeExit

func InitSafeExit() {
	SafeExitInst = new(SafeExit)
	go SafeExitInst.ListenSignal()
}

// SafeExit 收到退出信号时按注册的逆序执行清理函数
type SafeExit struct {
	funcs []func()
	mu    sync.Mutex
	once  sync.Once
}

func (s *SafeExit) Register(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.funcs = append(s.funcs, f)
}

// Run 执行全部清理函数, 只执行一次
func (s *SafeExit) Run() {
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		for i := len(s.funcs) - 1; i >= 0; i-- {
			s.funcs[i]()
		}
	})
}

func (s *SafeExit) ListenSignal() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	sig := <-sigs
	fmt.Fprintf(os.Stderr, "收到系统信号 %s, 正在销毁地图会话, 请稍后\n", sig)
	s.Run()
	os.Exit(0)
}
