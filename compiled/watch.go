package compiled

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/coregx/cfgmask/ebnf"
)

// WatchedGrammar recompiles an EBNF grammar file whenever it changes on
// disk, so a long-running server can edit a grammar in place without
// restarting. This is an optional, off-the-hot-path convenience: nothing
// in compiled or matcher depends on it, and a caller that only ever
// compiles a grammar once at startup has no reason to construct one.
type WatchedGrammar struct {
	path     string
	root     string
	compiler *GrammarCompiler

	mu      sync.RWMutex
	current *CompiledGrammar
	lastErr error

	watcher *fsnotify.Watcher
	done    chan struct{}
	closed  atomic.Bool

	onReload func(*CompiledGrammar, error)
}

// WatchEBNFFile compiles path once and starts watching it for further
// changes via fsnotify. onReload, if non-nil, is invoked (on the
// watcher's internal goroutine) after every recompilation attempt,
// whether it succeeded or failed; callers wanting to log reload errors
// should do so there, since Current silently keeps serving the last
// good compile on failure.
func WatchEBNFFile(path, root string, compiler *GrammarCompiler, onReload func(*CompiledGrammar, error)) (*WatchedGrammar, error) {
	w := &WatchedGrammar{
		path:     path,
		root:     root,
		compiler: compiler,
		done:     make(chan struct{}),
		onReload: onReload,
	}
	if err := w.reload(); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("compiled: create fsnotify watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("compiled: watch %s: %w", path, err)
	}
	w.watcher = fw

	go w.run()
	return w, nil
}

func (w *WatchedGrammar) run() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			err := w.reload()
			if w.onReload != nil {
				w.onReload(w.Current(), err)
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *WatchedGrammar) reload() error {
	src, err := os.ReadFile(w.path)
	if err != nil {
		w.mu.Lock()
		w.lastErr = err
		w.mu.Unlock()
		return err
	}
	g, err := ebnf.ParseFile(string(src), w.root)
	if err != nil {
		w.mu.Lock()
		w.lastErr = err
		w.mu.Unlock()
		return fmt.Errorf("compiled: parse %s: %w", w.path, err)
	}
	cg, err := w.compiler.Compile(g)
	if err != nil {
		w.mu.Lock()
		w.lastErr = err
		w.mu.Unlock()
		return err
	}
	w.mu.Lock()
	w.current = cg
	w.lastErr = nil
	w.mu.Unlock()
	return nil
}

// Current returns the most recently successfully compiled grammar. On a
// reload failure the previous good compile keeps serving; check LastErr
// to detect that a reload has been failing.
func (w *WatchedGrammar) Current() *CompiledGrammar {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// LastErr returns the error from the most recent reload attempt, or nil
// if the most recent attempt succeeded.
func (w *WatchedGrammar) LastErr() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastErr
}

// Close stops watching the file. The last successfully compiled grammar
// remains available via Current.
func (w *WatchedGrammar) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(w.done)
	return w.watcher.Close()
}
