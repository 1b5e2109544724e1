/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package shm

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"
)

type logger struct {
	name      string
	out       atomic.Pointer[logOutput]
	callDepth int
}

type logOutput struct{ w io.Writer }

func newLogger(name string, out io.Writer, callDepth int) *logger {
	l := &logger{name: name, callDepth: callDepth}
	l.out.Store(&logOutput{out})
	return l
}

var (
	internalLogger = newLogger("", os.Stdout, 3)
	level          atomic.Int32
	debugMode      = false

	magenta = string([]byte{27, 91, 57, 53, 109}) // Trace
	green   = string([]byte{27, 91, 57, 50, 109}) // Debug
	blue    = string([]byte{27, 91, 57, 52, 109}) // Info
	yellow  = string([]byte{27, 91, 57, 51, 109}) // Warn
	red     = string([]byte{27, 91, 57, 49, 109}) // Error
	reset   = string([]byte{27, 91, 48, 109})

	colors = []string{
		magenta,
		green,
		blue,
		yellow,
		red,
	}

	levelName = []string{
		"Trace",
		"Debug",
		"Info",
		"Warn",
		"Error",
	}
)

const (
	levelTrace = iota
	levelDebug
	levelInfo
	levelWarn
	levelError
	levelNoPrint
)

func init() {
	level.Store(levelWarn)
	if v := os.Getenv("SHMEM_LOG_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= levelTrace && n <= levelNoPrint {
			level.Store(int32(n))
		}
	}

	if os.Getenv("SHMEM_DEBUG_MODE") != "" {
		debugMode = true
	}
}

// SetLogLevel used to change the internal logger's level and the default level is Warning.
// The process env `SHMEM_LOG_LEVEL` also could set log level
func SetLogLevel(l int) {
	if l >= levelTrace && l <= levelNoPrint {
		level.Store(int32(l))
	}
}

// SetLogOutput redirects the internal logger. A nil writer restores stdout.
func SetLogOutput(out io.Writer) {
	if out == nil {
		out = os.Stdout
	}
	internalLogger.out.Store(&logOutput{out})
}

func (l *logger) logf(lv int, format string, a ...interface{}) {
	if int(level.Load()) > lv {
		return
	}
	if _, err := fmt.Fprintf(l.out.Load().w, l.prefix(lv)+format+reset+"\n", a...); err != nil {
		fmt.Fprintf(os.Stderr, "logger write failed: %v\n", err)
	}
}

func (l *logger) errorf(format string, a ...interface{}) {
	l.logf(levelError, format, a...)
}

func (l *logger) warnf(format string, a ...interface{}) {
	l.logf(levelWarn, format, a...)
}

func (l *logger) infof(format string, a ...interface{}) {
	l.logf(levelInfo, format, a...)
}

func (l *logger) debugf(format string, a ...interface{}) {
	l.logf(levelDebug, format, a...)
}

func (l *logger) tracef(format string, a ...interface{}) {
	l.logf(levelTrace, format, a...)
}

func (l *logger) prefix(level int) string {
	var buffer [64]byte
	buf := bytes.NewBuffer(buffer[:0])
	_, _ = buf.WriteString(colors[level])
	_, _ = buf.WriteString(levelName[level])
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(time.Now().Format("2006-01-02 15:04:05.999999"))
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(l.location())
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(l.name)
	_ = buf.WriteByte(' ')
	return buf.String()
}

func (l *logger) location() string {
	// logf adds one frame between the caller and prefix.
	_, file, line, ok := runtime.Caller(l.callDepth + 1)
	if !ok {
		file = "???"
		line = 0
	}
	file = filepath.Base(file)
	return file + ":" + strconv.Itoa(line)
}

// DebugRegionDetail describes a region's handle and header state.
func DebugRegionDetail(r *Region) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if r == nil {
		_, _ = buf.WriteString("region: nil")
		return buf.String()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		fmt.Fprintf(buf, "region:%s closed", r.name)
		return buf.String()
	}
	role := "client"
	if r.host {
		role = "host"
	}
	fmt.Fprintf(buf, "region:%s role:%s pid:%d fd:%d version:%d ready:%t",
		r.name, role, r.pid, r.mapped.Fd, r.hdr.version, r.hdr.isReady())
	fmt.Fprintf(buf, " payload:%d mapping:%d header:%d host_pid:%d",
		r.hdr.payloadSize, r.hdr.mappingSize, r.hdr.headerSize, r.hdr.hostPid)
	return buf.String()
}
