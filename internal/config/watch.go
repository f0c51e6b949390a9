package config

import (
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the screens config file for changes and re-parses it on
// write, the same live-reload convention the teacher applies to its own
// config file (fsnotify rather than a poll loop).
type Watcher struct {
	fsw *fsnotify.Watcher
}

// WatchTopology watches path and invokes onChange with the freshly parsed
// Topology every time the file is written. Parse errors are logged and the
// previous topology is left in effect. The caller is responsible for
// applying onChange's result (Server.ReloadConfig); WatchTopology only
// parses.
func WatchTopology(path string, onChange func(*Topology)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{fsw: fsw}
	go w.run(path, onChange)
	return w, nil
}

func (w *Watcher) run(path string, onChange func(*Topology)) {
	// debounce: editors often emit several WRITE/CHMOD events for one save
	var pending *time.Timer
	reload := func() {
		f, err := os.Open(path)
		if err != nil {
			log.Warn("reload screens config: open", "error", err)
			return
		}
		defer f.Close()
		topo, err := ParseTopology(f)
		if err != nil {
			log.Warn("reload screens config: parse", "error", err)
			return
		}
		onChange(topo)
	}

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(250*time.Millisecond, reload)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn("screens config watch error", "error", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}
	return w.fsw.Close()
}
