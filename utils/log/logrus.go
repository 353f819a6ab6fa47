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

package log

import "github.com/sirupsen/logrus"

// LogrusAdapter binds Logger to a *logrus.Logger. Used by the CLI entry
// point, which favors logrus's text formatter for terminal-facing output
// over the kernel's zap-structured logs.
type LogrusAdapter struct {
	l *logrus.Logger
}

func NewLogrusAdapter(l *logrus.Logger) Logger {
	return &LogrusAdapter{l: l}
}

func (a *LogrusAdapter) Debug(msg string, fields ...Field) {
	a.entry(fields).Debug(msg)
}

func (a *LogrusAdapter) Info(msg string, fields ...Field) {
	a.entry(fields).Info(msg)
}

func (a *LogrusAdapter) Warn(msg string, fields ...Field) {
	a.entry(fields).Warn(msg)
}

func (a *LogrusAdapter) Error(msg string, fields ...Field) {
	a.entry(fields).Error(msg)
}

func (a *LogrusAdapter) entry(fields []Field) *logrus.Entry {
	data := make(logrus.Fields, len(fields))
	for _, f := range fields {
		data[f.Key] = f.Val
	}
	return a.l.WithFields(data)
}
