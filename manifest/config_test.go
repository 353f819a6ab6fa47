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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TimeWtr/pluginhost/utils/log"
)

func testLogger() log.Logger {
	return log.NewZapAdapter(zap.NewNop())
}

func TestConfigProvider_TOMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pluginhost.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
tick_interval_ms = 16
plugin_dir = "plugins"
log_level = "info"
console_prompt = "> "
`), 0o644))

	p, err := NewConfigProvider(path, testLogger())
	require.NoError(t, err)
	ch, err := p.Watch()
	require.NoError(t, err)
	defer p.Close()

	cfg := <-ch
	assert.Equal(t, 16, cfg.TickIntervalMS)
	assert.Equal(t, "plugins", cfg.PluginDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "> ", cfg.ConsolePrompt)
}

func TestConfigProvider_YAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pluginhost.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tick_interval_ms: 32\nplugin_dir: plugins\nlog_level: debug\nconsole_prompt: \"$ \"\n"), 0o644))

	p, err := NewConfigProvider(path, testLogger())
	require.NoError(t, err)
	ch, err := p.Watch()
	require.NoError(t, err)
	defer p.Close()

	cfg := <-ch
	assert.Equal(t, 32, cfg.TickIntervalMS)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestConfigProvider_JSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pluginhost.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tick_interval_ms":8,"plugin_dir":"plugins","log_level":"warn","console_prompt":"> "}`), 0o644))

	p, err := NewConfigProvider(path, testLogger())
	require.NoError(t, err)
	ch, err := p.Watch()
	require.NoError(t, err)
	defer p.Close()

	cfg := <-ch
	assert.Equal(t, 8, cfg.TickIntervalMS)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestConfigProvider_MissingFileYieldsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pluginhost.toml")

	p, err := NewConfigProvider(path, testLogger())
	require.NoError(t, err)
	ch, err := p.Watch()
	require.NoError(t, err)
	defer p.Close()

	cfg := <-ch
	assert.Equal(t, defaultHostConfig(), cfg)
}

func TestConfigProvider_MissingDirStillStartsUndeliverable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pluginhost.toml")

	p, err := NewConfigProvider(path, testLogger())
	require.NoError(t, err)
	ch, err := p.Watch()
	require.NoError(t, err)
	defer p.Close()

	cfg := <-ch
	assert.Equal(t, defaultHostConfig(), cfg)
}

func TestConfigProvider_RejectsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pluginhost.ini")
	require.NoError(t, os.WriteFile(path, []byte("tick_interval_ms=16"), 0o644))

	_, err := NewConfigProvider(path, testLogger())
	assert.Error(t, err)
}

func TestConfigProvider_ReloadOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pluginhost.toml")
	require.NoError(t, os.WriteFile(path, []byte(`tick_interval_ms = 16
log_level = "info"
`), 0o644))

	p, err := NewConfigProvider(path, testLogger())
	require.NoError(t, err)
	p.debounceDuration = 20 * time.Millisecond
	ch, err := p.Watch()
	require.NoError(t, err)
	defer p.Close()

	<-ch // initial value

	require.NoError(t, os.WriteFile(path, []byte(`tick_interval_ms = 64
log_level = "debug"
`), 0o644))

	select {
	case cfg := <-ch:
		assert.Equal(t, 64, cfg.TickIntervalMS)
		assert.Equal(t, "debug", cfg.LogLevel)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced reload")
	}
}
