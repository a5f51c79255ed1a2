package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/GoCodeAlone/cecontainer"
	"github.com/GoCodeAlone/cecontainer/persistence"
	"github.com/GoCodeAlone/cecontainer/props"
)

// UUIDFactory creates identifiers for tasks and workers.
type UUIDFactory interface {
	New() string
}

type timeOrderedUUIDs struct{}

// New returns a UUIDv7, falling back to a random UUID.
func (timeOrderedUUIDs) New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ServerFileSystem holds the validated server directories. They exist once
// the component is built.
type ServerFileSystem struct {
	Home   string
	Data   string
	Temp   string
	Shared string
}

func newServerFileSystem(p *props.Props) (*ServerFileSystem, error) {
	home, err := p.NonNull(props.PathHome)
	if err != nil {
		return nil, err
	}
	home, err = filepath.Abs(home)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPath, props.PathHome, err)
	}
	fs := &ServerFileSystem{
		Home: home,
		Data: resolvePath(home, p.ValueOrDefault(props.PathData, "data")),
		Temp: resolvePath(home, p.ValueOrDefault(props.PathTemp, "temp")),
	}
	fs.Shared = resolvePath(fs.Temp, p.ValueOrDefault(props.ProcessSharedDir, "shared"))

	if info, err := os.Stat(fs.Home); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: home %s is not a directory", ErrInvalidPath, fs.Home)
	}
	for _, dir := range []string{fs.Data, fs.Temp, fs.Shared} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPath, err)
		}
	}
	return fs, nil
}

func resolvePath(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

// TempFolder is the compute engine scratch directory. It is emptied on
// dispose.
type TempFolder struct {
	Dir string
}

func newTempFolder(fs *ServerFileSystem) (*TempFolder, error) {
	dir := filepath.Join(fs.Temp, "ce")
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clean temp folder: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create temp folder: %w", err)
	}
	return &TempFolder{Dir: dir}, nil
}

// NewDir creates a unique directory under the temp folder.
func (t *TempFolder) NewDir(prefix string) (string, error) {
	return os.MkdirTemp(t.Dir, prefix)
}

// Close removes the folder and its content.
func (t *TempFolder) Close() error {
	return os.RemoveAll(t.Dir)
}

func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func (c *Container) newDatabase(p *props.Props) (*persistence.Database, error) {
	if c.db != nil {
		dialect := persistence.DialectPostgres
		if raw, ok := p.Value(props.DBURL); ok {
			d, err := persistence.DialectFromURL(raw)
			if err != nil {
				return nil, err
			}
			dialect = d
		}
		return persistence.NewDatabase(c.db, dialect), nil
	}
	url, err := p.NonNull(props.DBURL)
	if err != nil {
		return nil, err
	}
	return persistence.Open(url, p.ValueOrDefault(props.DBUser, ""), p.ValueOrDefault(props.DBPassword, ""))
}

// StopFlagName is the file whose creation in the shared directory requests a
// graceful shutdown.
const StopFlagName = "stop"

// StopFlagWatcher watches the shared directory for the stop flag.
type StopFlagWatcher struct {
	dir       string
	logger    cecontainer.Logger
	requested chan struct{}
	once      *sync.Once

	watcher *fsnotify.Watcher
	done    chan struct{}
}

func newStopFlagWatcher(fs *ServerFileSystem, logger cecontainer.Logger, requested chan struct{}, once *sync.Once) (*StopFlagWatcher, error) {
	flag := filepath.Join(fs.Shared, StopFlagName)
	if err := os.Remove(flag); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale stop flag: %w", err)
	}
	return &StopFlagWatcher{dir: fs.Shared, logger: logger, requested: requested, once: once}, nil
}

// Start watches the shared directory for the stop flag.
func (w *StopFlagWatcher) Start(context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create stop flag watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.watcher = watcher
	w.done = make(chan struct{})
	go w.loop()
	return nil
}

func (w *StopFlagWatcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == StopFlagName && (event.Has(fsnotify.Create) || event.Has(fsnotify.Write)) {
				w.logger.Info("Stop flag detected", "path", event.Name)
				w.once.Do(func() { close(w.requested) })
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Stop flag watcher error", "error", err)
		}
	}
}

// Stop closes the watcher and waits for its loop to exit.
func (w *StopFlagWatcher) Stop(context.Context) error {
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	<-w.done
	w.watcher = nil
	return err
}

func (c *Container) platformModule(p *props.Props) cecontainer.Module {
	return cecontainer.NewModule("platform", cecontainer.LevelPlatform,
		cecontainer.Instance(KeyProps, p),
		cecontainer.Instance(KeyLogger, c.logger),
		cecontainer.Instance(KeyClock, c.clock),
		cecontainer.Instance(KeyUUIDFactory, UUIDFactory(timeOrderedUUIDs{})),
		cecontainer.Provide(KeyServerFileSystem, func(r cecontainer.Resolver) (any, error) {
			p, err := cecontainer.Get[*props.Props](r, KeyProps)
			if err != nil {
				return nil, err
			}
			return newServerFileSystem(p)
		}, KeyProps),
		cecontainer.Provide(KeyTempFolder, func(r cecontainer.Resolver) (any, error) {
			fs, err := cecontainer.Get[*ServerFileSystem](r, KeyServerFileSystem)
			if err != nil {
				return nil, err
			}
			return newTempFolder(fs)
		}, KeyServerFileSystem),
		cecontainer.Provide(KeyMetricsRegistry, func(cecontainer.Resolver) (any, error) {
			return newMetricsRegistry(), nil
		}),
		cecontainer.Provide(KeyDatabase, func(r cecontainer.Resolver) (any, error) {
			p, err := cecontainer.Get[*props.Props](r, KeyProps)
			if err != nil {
				return nil, err
			}
			return c.newDatabase(p)
		}, KeyProps),
		cecontainer.Provide(KeyPropertiesDao, func(r cecontainer.Resolver) (any, error) {
			db, err := cecontainer.Get[*persistence.Database](r, KeyDatabase)
			if err != nil {
				return nil, err
			}
			return persistence.NewPropertiesDao(db), nil
		}, KeyDatabase),
		cecontainer.Provide(KeyStopFlagWatcher, func(r cecontainer.Resolver) (any, error) {
			fs, err := cecontainer.Get[*ServerFileSystem](r, KeyServerFileSystem)
			if err != nil {
				return nil, err
			}
			logger, err := cecontainer.Get[cecontainer.Logger](r, KeyLogger)
			if err != nil {
				return nil, err
			}
			return newStopFlagWatcher(fs, cecontainer.WithFields(logger, "component", KeyStopFlagWatcher.String()), c.stopRequested, &c.stopOnce)
		}, KeyServerFileSystem, KeyLogger),
	)
}
