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

// Command pluginhostd is the plugin host process entry point: it reads
// plugins.ini and pluginhost.toml/.yaml/.json, starts every manifest
// plugin, and runs the driver loop until ESC is read at the console or
// the process receives SIGINT/SIGTERM.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/TimeWtr/pluginhost/driver"
	"github.com/TimeWtr/pluginhost/kernel"
	"github.com/TimeWtr/pluginhost/manifest"
	"github.com/TimeWtr/pluginhost/platform"
	"github.com/TimeWtr/pluginhost/utils/log"
)

func main() {
	pluginsIni := flag.String("plugins", "plugins.ini", "path to the ordered plugin manifest")
	configPath := flag.String("config", "pluginhost.toml", "path to the host config file (.toml/.yaml/.json)")
	flag.Parse()

	cli := logrus.New()
	cli.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	cliLog := log.NewLogrusAdapter(cli)

	cliLog.Info("starting plugin host")

	names, err := manifest.PluginNames(*pluginsIni)
	if err != nil {
		cliLog.Error("failed to read plugin manifest", log.ErrorField(err))
		os.Exit(1)
	}
	if len(names) == 0 {
		cliLog.Warn("no plugins found in manifest", log.StringField("path", *pluginsIni))
	}

	provider, err := manifest.NewConfigProvider(*configPath, cliLog)
	if err != nil {
		cliLog.Error("failed to open host config", log.ErrorField(err))
		os.Exit(1)
	}
	cfgCh, err := provider.Watch()
	if err != nil {
		cliLog.Error("failed to watch host config", log.ErrorField(err))
		os.Exit(1)
	}
	defer provider.Close()

	cfg := <-cfgCh

	atomicLevel := zap.NewAtomicLevel()
	setZapLevel(&atomicLevel, cfg.LogLevel)
	kernelLog := log.NewZapAdapter(newZapLogger(atomicLevel))

	rt := kernel.New(platform.NewPosixDynLib(), cfg.PluginDir, kernelLog)
	rt.Mgr.Startup(names, rt.HostVTable())

	term, err := platform.EnterRawMode()
	if err != nil {
		cliLog.Error("failed to enter raw console mode", log.ErrorField(err))
		os.Exit(1)
	}
	defer func() {
		if err := term.Restore(); err != nil {
			cliLog.Error("failed to restore console mode", log.ErrorField(err))
		}
	}()

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cliLog.Info("received shutdown signal")
		close(stop)
	}()

	loop := &driver.Loop{
		Runtime: rt,
		Console: driver.Console{KBHit: platform.KBHit, GetCh: platform.GetCh, Out: os.Stdout},
		Sleep:   platform.SleepMS,
		Prompt:  cfg.ConsolePrompt,
	}
	loop.SetTickIntervalMS(uint32(cfg.TickIntervalMS))

	// A reload only ever touches tick interval and log level for an
	// already-running host; plugin topology changes require a restart.
	go func() {
		for updated := range cfgCh {
			loop.SetTickIntervalMS(uint32(updated.TickIntervalMS))
			setZapLevel(&atomicLevel, updated.LogLevel)
		}
	}()

	loop.Run(stop)

	cliLog.Info("plugin host stopped")
}

func newZapLogger(level zap.AtomicLevel) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = level

	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func setZapLevel(level *zap.AtomicLevel, name string) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		lvl = zapcore.InfoLevel
	}
	level.SetLevel(lvl)
}
