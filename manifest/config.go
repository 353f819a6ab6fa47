// Copyright 2025 TimeWtr
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package manifest

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/TimeWtr/pluginhost/utils/atomicx"
	"github.com/TimeWtr/pluginhost/utils/log"
)

// ParseFormat selects which decoder HostConfig uses, chosen by the
// config file's extension.
type ParseFormat string

const (
	FormatTOML ParseFormat = "toml"
	FormatYAML ParseFormat = "yaml"
	FormatJSON ParseFormat = "json"
)

func formatFromExt(path string) (ParseFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("manifest: unrecognized config extension %q", path)
	}
}

// HostConfig is the host's own tunables, distinct from plugins.ini (which
// is strictly the ordered plugin list).
type HostConfig struct {
	TickIntervalMS int    `toml:"tick_interval_ms" yaml:"tick_interval_ms" json:"tick_interval_ms"`
	PluginDir      string `toml:"plugin_dir"       yaml:"plugin_dir"       json:"plugin_dir"`
	LogLevel       string `toml:"log_level"        yaml:"log_level"        json:"log_level"`
	ConsolePrompt  string `toml:"console_prompt"   yaml:"console_prompt"   json:"console_prompt"`
}

const (
	providerStopped = iota
	providerRunning
)

// ConfigProvider watches a host config file and pushes HostConfig values
// on change, debounced the same way the teacher's file-backed config
// provider debounces fs events. A reload only ever affects tick interval
// and log level for an already-running host — plugin topology changes
// require a restart.
type ConfigProvider struct {
	format   ParseFormat
	filepath string
	dir      string

	watcher *fsnotify.Watcher
	ch      chan HostConfig
	closeCh chan struct{}
	state   *atomicx.Int32
	l       log.Logger

	lock             sync.Mutex
	debounceLock     sync.Mutex
	debounceTimer    *time.Timer
	debounceDuration time.Duration
	wg               sync.WaitGroup
}

func NewConfigProvider(filePath string, l log.Logger) (*ConfigProvider, error) {
	format, err := formatFromExt(filePath)
	if err != nil {
		return nil, err
	}

	return &ConfigProvider{
		format:           format,
		filepath:         filePath,
		dir:              path.Dir(filePath),
		l:                l,
		state:            atomicx.NewInt32(providerStopped),
		debounceDuration: 500 * time.Millisecond,
		closeCh:          make(chan struct{}),
	}, nil
}

// Watch starts the file watch and returns a channel that receives the
// initial config immediately, then a new value after each debounced
// reload. The config file is optional: if it does not exist yet, Watch
// delivers defaultHostConfig and watches the containing directory for
// its eventual creation instead of failing to start.
func (c *ConfigProvider) Watch() (<-chan HostConfig, error) {
	if !c.state.CompareAndSwap(providerStopped, providerRunning) {
		return nil, fmt.Errorf("manifest: config provider already running")
	}

	initial, err := c.reload()
	if err != nil {
		return nil, err
	}

	c.ch = make(chan HostConfig, 8)
	c.ch <- initial

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("manifest: new watcher: %w", err)
	}
	c.watcher = watcher

	if err := c.watcher.Add(c.dir); err != nil {
		c.l.Warn("host config directory not watchable, reloads disabled",
			log.StringField("dir", c.dir), log.ErrorField(err))
	} else {
		c.l.Info("watching host config file", log.StringField("path", c.filepath))
	}

	c.wg.Add(1)
	go c.watchLoop()

	return c.ch, nil
}

func (c *ConfigProvider) watchLoop() {
	defer func() {
		c.wg.Done()
		if c.watcher != nil {
			if err := c.watcher.Close(); err != nil {
				c.l.Error("failed to close config watcher", log.ErrorField(err))
			}
		}
		if r := recover(); r != nil {
			c.l.Error("config provider watch loop panicked", log.Field{Key: "cause", Val: r})
		}
	}()

	for {
		select {
		case e, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != filepath.Clean(c.filepath) {
				continue
			}
			if e.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				c.scheduleReload()
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.l.Error("config watcher error", log.ErrorField(err))
		case <-c.closeCh:
			return
		}
	}
}

func (c *ConfigProvider) scheduleReload() {
	c.debounceLock.Lock()
	defer c.debounceLock.Unlock()

	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.debounceTimer = time.AfterFunc(c.debounceDuration, func() {
		cfg, err := c.reload()
		if err != nil {
			c.l.Error("failed to reload host config", log.ErrorField(err))
			return
		}
		select {
		case c.ch <- cfg:
		default:
			c.l.Warn("host config channel full, dropping reload")
		}
	})
}

// defaultHostConfig mirrors the fallback defaults driver.Loop already
// applies on a zero-value TickIntervalMS/Prompt, so a host started
// without a config file behaves identically to spec.md §6's baseline
// (no required arguments/files).
func defaultHostConfig() HostConfig {
	return HostConfig{
		TickIntervalMS: 16,
		PluginDir:      "plugins",
		LogLevel:       "info",
		ConsolePrompt:  "> ",
	}
}

func (c *ConfigProvider) reload() (HostConfig, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	bs, err := os.ReadFile(c.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultHostConfig(), nil
		}
		return HostConfig{}, fmt.Errorf("manifest: read %s: %w", c.filepath, err)
	}

	var cfg HostConfig
	switch c.format {
	case FormatTOML:
		err = toml.Unmarshal(bs, &cfg)
	case FormatYAML:
		err = yaml.Unmarshal(bs, &cfg)
	case FormatJSON:
		err = parseJSONConfig(bs, &cfg)
	}
	if err != nil {
		return HostConfig{}, fmt.Errorf("manifest: parse %s: %w", c.filepath, err)
	}

	return cfg, nil
}

// Close stops the watch loop and releases the watcher.
func (c *ConfigProvider) Close() {
	if !c.state.CompareAndSwap(providerRunning, providerStopped) {
		return
	}
	close(c.closeCh)
	c.wg.Wait()
	c.debounceLock.Lock()
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.debounceLock.Unlock()
	close(c.ch)
}
