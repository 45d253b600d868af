package heart

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDelay = 200 * time.Millisecond

// Loader 加载一个新的Predictor
type Loader func() (*Predictor, error)

// Watcher 监听模型文件变化, 新模型校验通过后才替换
type Watcher struct {
	path     string
	store    *Store
	load     Loader
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	OnReload func(err error)
}

// NewWatcher 监听模型文件所在目录, 以兼容先写临时文件再rename的替换方式
func NewWatcher(path string, store *Store, load Loader, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		path:    abs,
		store:   store,
		load:    load,
		logger:  logger,
		watcher: fsw,
	}, nil
}

// Run 阻塞直到ctx结束
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	timer := time.NewTimer(reloadDelay)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || name != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				// 一次保存通常触发多个事件, 合并后再加载
				timer.Reset(reloadDelay)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("model watcher error", zap.Error(err))

		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	predictor, err := w.load()
	if err != nil {
		w.logger.Error("model reload failed, keeping current model", zap.String("path", w.path), zap.Error(err))
	} else {
		w.store.Swap(predictor)
		w.logger.Info("model reloaded", zap.String("path", w.path), zap.String("type", predictor.ModelType()))
	}
	if w.OnReload != nil {
		w.OnReload(err)
	}
}
