package credentials

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "wfnotifier/pkg/logx"
)

// Watch reloads the cached token whenever the credential file is rewritten
// by another process (e.g. a second `init`). It returns when ctx is done, or
// with an error when the watcher breaks so the caller can restart it.
func (s *Store) Watch(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	file := filepath.Base(s.path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	s.log.Debug("credentials watcher started", logx.String("dir", dir), logx.String("file", file))

	// Debounce partial writes.
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()
	reload := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(200*time.Millisecond, func() {
			if ctx.Err() != nil {
				return
			}
			if _, err := s.Load(); err != nil {
				s.log.Warn("credentials reload failed", logx.String("path", s.path), logx.Err(err))
				return
			}
			s.log.Info("credentials reloaded", logx.String("path", s.path))
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("credentials watcher closed")
			}
			if strings.EqualFold(filepath.Base(ev.Name), file) && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				reload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("credentials watcher closed")
			}
			if err != nil {
				s.log.Warn("credentials watch error", logx.Err(err))
			}
		}
	}
}
