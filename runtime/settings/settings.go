// Package settings is a grouped key/value sink for persisting object
// properties. Settings walks a group stack over a Store backend and keeps
// registered Listeners in sync with it: a listener is loaded from the store
// when it is added and its changed properties are saved as they happen.
package settings

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/objectmodel/runtime/loop"
)

// ErrKeyNotFound is returned by stores for missing keys.
var ErrKeyNotFound = errors.New("settings key not found")

// Separator joins groups and keys.
const Separator = "/"

// Store is a flat key/value backend. Keys are full Separator joined paths.
type Store interface {
	// Get returns the value of key or ErrKeyNotFound.
	Get(ctx context.Context, key string) (any, error)
	// Set stores value under key.
	Set(ctx context.Context, key string, value any) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys returns the keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Sync flushes pending writes and picks up external changes.
	Sync(ctx context.Context) error
	// Close releases the backend.
	Close() error
}

// Watcher is implemented by stores that can report external changes.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// Settings reads and writes a Store under a stack of groups.
type Settings struct {
	store     Store
	loop      *loop.Loop
	logger    *zap.Logger
	timeout   time.Duration
	groups    []string
	listeners []*installed
}

// Option configures Settings.
type Option func(*Settings)

// WithLogger sets the settings logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLoop sets the loop reloads triggered by store watchers run on.
func WithLoop(l *loop.Loop) Option {
	return func(s *Settings) {
		if l != nil {
			s.loop = l
		}
	}
}

// WithTimeout bounds store calls made on behalf of listeners.
func WithTimeout(d time.Duration) Option {
	return func(s *Settings) {
		s.timeout = d
	}
}

// WithCategory opens a top level group.
func WithCategory(category string) Option {
	return func(s *Settings) {
		if category != "" {
			s.groups = append(s.groups, category)
		}
	}
}

// New creates Settings over store.
func New(store Store, opts ...Option) *Settings {
	s := &Settings{
		store:   store,
		logger:  zap.NewNop(),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loop == nil {
		s.loop = loop.Default()
	}
	return s
}

// Store returns the backend.
func (s *Settings) Store() Store {
	return s.store
}

// BeginGroup appends prefix to the current group.
func (s *Settings) BeginGroup(prefix string) {
	prefix = strings.Trim(prefix, Separator)
	if prefix == "" {
		return
	}
	s.groups = append(s.groups, prefix)
}

// EndGroup leaves the innermost group. It is a no-op at the top level.
func (s *Settings) EndGroup() {
	if len(s.groups) > 0 {
		s.groups = s.groups[:len(s.groups)-1]
	}
}

// Group returns the current group path.
func (s *Settings) Group() string {
	return strings.Join(s.groups, Separator)
}

// Key returns the full store key of key in the current group.
func (s *Settings) Key(key string) string {
	return join(s.Group(), key)
}

func join(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.Trim(p, Separator); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, Separator)
}

// Lookup returns the value of key in the current group.
func (s *Settings) Lookup(ctx context.Context, key string) (any, error) {
	return s.store.Get(ctx, s.Key(key))
}

// Value returns the value of key in the current group, or def when it is
// missing or the store fails.
func (s *Settings) Value(ctx context.Context, key string, def any) any {
	v, err := s.Lookup(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			s.logger.Error("Failed to read setting", zap.String("key", s.Key(key)), zap.Error(err))
		}
		return def
	}
	return v
}

// Contains reports whether key is set in the current group.
func (s *Settings) Contains(ctx context.Context, key string) bool {
	_, err := s.Lookup(ctx, key)
	return err == nil
}

// SetValue stores value under key in the current group.
func (s *Settings) SetValue(ctx context.Context, key string, value any) error {
	return s.store.Set(ctx, s.Key(key), value)
}

// Remove deletes key from the current group.
func (s *Settings) Remove(ctx context.Context, key string) error {
	return s.store.Delete(ctx, s.Key(key))
}

// Keys returns the keys below the current group, relative to it.
func (s *Settings) Keys(ctx context.Context) ([]string, error) {
	group := s.Group()
	prefix := group
	if prefix != "" {
		prefix += Separator
	}
	keys, err := s.store.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, prefix))
	}
	slices.Sort(out)
	return out, nil
}

// Sync flushes the store.
func (s *Settings) Sync(ctx context.Context) error {
	return s.store.Sync(ctx)
}

// Watch reloads every listener on the loop whenever the store reports an
// external change. Stores that cannot watch return nil without effect.
func (s *Settings) Watch(ctx context.Context) error {
	w, ok := s.store.(Watcher)
	if !ok {
		return nil
	}
	return w.Watch(ctx, func() {
		s.loop.Post("settings.reload", func() error {
			s.Load()
			return nil
		})
	})
}

// Close detaches every listener and closes the store.
func (s *Settings) Close() error {
	s.ClearListeners()
	return s.store.Close()
}

func (s *Settings) context() (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.timeout)
}
