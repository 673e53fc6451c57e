/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

// Package log provides the structured logger used throughout the origin
// server: a go-kit logfmt logger, optionally writing through a rotating
// file, gated by a configured minimum level.
package log

import (
	"os"
	"sync"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Comcast/sos-origin/internal/config"
)

// Logger wraps a go-kit logger with the minimum level it was configured at.
type Logger struct {
	base kitlog.Logger
}

var (
	mtx     sync.RWMutex
	current = New(&config.LoggingConfig{LogLevel: "info"})
)

// New builds a Logger from a LoggingConfig: logfmt output to LogFile (via a
// lumberjack rolling writer) when set, else stderr, filtered to LogLevel and
// prefixed with a timestamp and caller the way the teacher's ambient logger
// is expected to be (go-kit/kit + lumberjack.v2 are paired dependencies in
// its go.mod).
func New(cfg *config.LoggingConfig) *Logger {
	var w = os.Stderr
	var base kitlog.Logger
	if cfg != nil && cfg.LogFile != "" {
		base = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}))
	} else {
		base = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))
	}
	base = kitlog.With(base, "ts", kitlog.DefaultTimestampUTC, "caller", kitlog.Caller(5))

	lvl := "info"
	if cfg != nil && cfg.LogLevel != "" {
		lvl = cfg.LogLevel
	}
	base = level.NewFilter(base, levelOption(lvl))

	return &Logger{base: base}
}

func levelOption(name string) level.Option {
	switch name {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

// SetDefault installs l as the logger returned by package-level helpers.
func SetDefault(l *Logger) {
	mtx.Lock()
	current = l
	mtx.Unlock()
}

func def() *Logger {
	mtx.RLock()
	defer mtx.RUnlock()
	return current
}

// Pairs is a convenience alias for structured key/value fields passed to a
// log call, matching the teacher's `log.Pairs{...}` call sites.
type Pairs map[string]interface{}

func flatten(msg string, p Pairs) []interface{} {
	kv := make([]interface{}, 0, 2+2*len(p))
	kv = append(kv, "msg", msg)
	for k, v := range p {
		kv = append(kv, k, v)
	}
	return kv
}

// Debug logs at debug level.
func Debug(msg string, p Pairs) { level.Debug(def().base).Log(flatten(msg, p)...) }

// Info logs at info level.
func Info(msg string, p Pairs) { level.Info(def().base).Log(flatten(msg, p)...) }

// Warn logs at warn level.
func Warn(msg string, p Pairs) { level.Warn(def().base).Log(flatten(msg, p)...) }

// Error logs at error level.
func Error(msg string, p Pairs) { level.Error(def().base).Log(flatten(msg, p)...) }

var warnOnceSeen sync.Map

// WarnOnce logs at warn level the first time it is called with a given key,
// and is silent on subsequent calls with the same key, for warnings that
// would otherwise repeat once per request (e.g. a misconfigured origin).
func WarnOnce(key, msg string, p Pairs) {
	if _, loaded := warnOnceSeen.LoadOrStore(key, struct{}{}); loaded {
		return
	}
	Warn(msg, p)
}
