package app_config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Decoder turns the raw file content into a config value.
type Decoder[T any] func(data []byte) (T, error)

// JSONDecoder decodes the file as JSON into a T.
func JSONDecoder[T any](data []byte) (T, error) {
	var config T
	err := json.Unmarshal(data, &config)
	return config, err
}

// ConfigWatcher re-reads a file whenever it is written and hands the decoded
// value to every subscriber.  Content which fails to decode is logged and
// dropped, subscribers only ever see valid configs.
type ConfigWatcher[T any] struct {
	logger     *zap.Logger
	configPath string
	decode     Decoder[T]

	lock     sync.Mutex
	watchers map[uuid.UUID]chan<- T
	watch    *fsnotify.Watcher
	done     chan struct{}
}

func NewConfigWatcher[T any](path string, decode Decoder[T], logger *zap.Logger) (*ConfigWatcher[T], error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", path)
	}
	if _, err := os.Stat(absPath); err != nil {
		return nil, errors.Wrap(err, "cannot watch config")
	}

	watch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}

	c := &ConfigWatcher[T]{
		logger:     logger.Named("config-watcher"),
		configPath: absPath,
		decode:     decode,
		watchers:   map[uuid.UUID]chan<- T{},
		watch:      watch,
		done:       make(chan struct{}),
	}

	// editors tend to replace the file, so the directory is watched instead
	if err := watch.Add(filepath.Dir(absPath)); err != nil {
		_ = watch.Close()
		return nil, errors.Wrapf(err, "failed to watch %s", absPath)
	}

	go c.run()
	return c, nil
}

func (c *ConfigWatcher[T]) run() {
	defer close(c.done)

	for {
		select {
		case event, ok := <-c.watch.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != c.configPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			config, err := c.readConfig()
			if err != nil {
				c.logger.Warn("ignoring invalid config change", zap.String("path", c.configPath), zap.Error(err))
				continue
			}
			c.broadcastConfig(config)
		case err, ok := <-c.watch.Errors:
			if !ok {
				return
			}
			c.logger.Error("file watcher failed", zap.Error(err))
		}
	}
}

func (c *ConfigWatcher[T]) readConfig() (T, error) {
	var config T

	data, err := os.ReadFile(c.configPath)
	if err != nil {
		return config, err
	}
	if len(data) == 0 {
		// truncated as the first half of a write
		return config, errors.New("file is empty")
	}

	return c.decode(data)
}

func (c *ConfigWatcher[T]) broadcastConfig(config T) {
	c.lock.Lock()
	chans := make([]chan<- T, 0, len(c.watchers))
	for _, ch := range c.watchers {
		chans = append(chans, ch)
	}
	c.lock.Unlock()

	for _, ch := range chans {
		ch <- config
	}
}

func (c *ConfigWatcher[T]) Subscribe(ch chan<- T) func() {
	id := uuid.New()

	c.lock.Lock()
	c.watchers[id] = ch
	c.lock.Unlock()

	return func() {
		c.lock.Lock()
		delete(c.watchers, id)
		c.lock.Unlock()
	}
}

// Close stops watching and waits for the watch loop to exit.
func (c *ConfigWatcher[T]) Close() error {
	err := c.watch.Close()
	<-c.done
	return err
}
