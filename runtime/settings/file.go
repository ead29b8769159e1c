package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// FileStore keeps settings in a config file. The format follows the file
// extension (yaml, json or toml) and groups become nested tables. Keys are
// case-insensitive.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	values map[string]any
	dirty  bool
}

// NewFileStore opens the settings file at path. A missing file starts
// empty and is created by the first Sync.
func NewFileStore(path string) (*FileStore, error) {
	f := &FileStore{path: filepath.Clean(path), values: make(map[string]any)}
	if err := f.reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Path returns the settings file.
func (f *FileStore) Path() string {
	return f.path
}

func newViper() *viper.Viper {
	return viper.NewWithOptions(viper.KeyDelimiter(Separator))
}

func normalize(key string) string {
	return strings.ToLower(key)
}

// reload replaces the in-memory values with the file's content.
func (f *FileStore) reload() error {
	v := newViper()
	v.SetConfigFile(f.path)
	values := make(map[string]any)
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("read settings %s: %w", f.path, err)
			}
		}
	} else {
		for _, key := range v.AllKeys() {
			values[key] = v.Get(key)
		}
	}

	f.mu.Lock()
	f.values = values
	f.dirty = false
	f.mu.Unlock()
	return nil
}

func (f *FileStore) Get(_ context.Context, key string) (any, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[normalize(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return v, nil
}

// Set stores value. A nil value deletes the key.
func (f *FileStore) Set(ctx context.Context, key string, value any) error {
	if value == nil {
		return f.Delete(ctx, key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[normalize(key)] = value
	f.dirty = true
	return nil
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key = normalize(key)
	if _, ok := f.values[key]; ok {
		delete(f.values, key)
		f.dirty = true
	}
	return nil
}

func (f *FileStore) Keys(_ context.Context, prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	prefix = normalize(prefix)
	var keys []string
	for k := range f.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Sync writes pending changes, or rereads the file when there are none.
func (f *FileStore) Sync(context.Context) error {
	f.mu.Lock()
	if !f.dirty {
		f.mu.Unlock()
		return f.reload()
	}
	defer f.mu.Unlock()

	v := newViper()
	for k, val := range f.values {
		v.Set(k, val)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	if err := v.WriteConfigAs(f.path); err != nil {
		return fmt.Errorf("write settings %s: %w", f.path, err)
	}
	f.dirty = false
	return nil
}

// Watch rereads the file and calls onChange whenever it is written. It
// returns once the watch is set up; watching stops with ctx.
func (f *FileStore) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory so editors replacing the file are seen.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch directory %s: %w", filepath.Dir(f.path), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != f.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := f.reload(); err != nil {
					continue
				}
				onChange()
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (f *FileStore) Close() error {
	return f.Sync(context.Background())
}
