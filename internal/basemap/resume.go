package basemap

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/paulmach/orb/maptile"
)

// Resume 断点记录, 每行一个已完成的瓦片
type Resume struct {
	file     *os.File
	saveChan chan maptile.Tile
	done     chan struct{}

	mu         sync.RWMutex
	successMap map[string]struct{}
	isClose    bool
}

// OpenResume 打开(或创建) dir/name.log 并读取已有记录
func OpenResume(dir, name string) (*Resume, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.log", name))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open resume file %s: %w", path, err)
	}
	r := &Resume{
		file:       file,
		saveChan:   make(chan maptile.Tile, 64),
		done:       make(chan struct{}),
		successMap: readResume(file),
	}
	go r.start()
	return r, nil
}

func readResume(file io.Reader) map[string]struct{} {
	res := make(map[string]struct{})
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			res[line] = struct{}{}
		}
	}
	return res
}

func resumeKey(t maptile.Tile) string {
	return fmt.Sprintf("%d-%d-%d", t.X, t.Y, t.Z)
}

// Len 已记录的瓦片数
func (r *Resume) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.successMap)
}

// IsDone 瓦片是否已完成
func (r *Resume) IsDone(t maptile.Tile) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.successMap[resumeKey(t)]
	return ok
}

// MarkDone 记录完成的瓦片
func (r *Resume) MarkDone(t maptile.Tile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isClose {
		return
	}
	r.successMap[resumeKey(t)] = struct{}{}
	r.saveChan <- t
}

func (r *Resume) start() {
	defer close(r.done)
	for t := range r.saveChan {
		r.file.WriteString(resumeKey(t) + "\n")
	}
}

// Close 写完剩余记录并关闭文件
func (r *Resume) Close() error {
	r.mu.Lock()
	if r.isClose {
		r.mu.Unlock()
		return nil
	}
	r.isClose = true
	close(r.saveChan)
	r.mu.Unlock()
	<-r.done
	return r.file.Close()
}
