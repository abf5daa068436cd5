// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package log

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
)

// InitLogger sets up Apex with a handler suited to where we are running and a
// log level from the SMOPS_LOG env variable. Under Lambda, entries are written
// as JSON to stderr so CloudWatch can index the fields; otherwise the terse
// text handler is used.
func InitLogger(defaultLevel ...string) {
	level := strings.ToUpper(os.Getenv("SMOPS_LOG"))
	if level == "" {
		level = "ERROR"
		if len(defaultLevel) == 1 {
			level = strings.ToUpper(defaultLevel[0])
		}
	}

	if InLambda() {
		log.SetHandler(json.New(os.Stderr))
	} else {
		log.SetHandler(NewCustomHandler(os.Stdout))
	}

	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.ErrorLevel
	}
	log.SetLevel(lvl)
}

// InLambda reports whether the process is running inside the Lambda runtime.
func InLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

// CustomHandler formats log messages and writes to w.
type CustomHandler struct {
	mu sync.Mutex
	w  io.Writer
}

// NewCustomHandler returns a CustomHandler writing to w.
func NewCustomHandler(w io.Writer) *CustomHandler {
	return &CustomHandler{w: w}
}

// HandleLog implements the log.Handler interface
func (h *CustomHandler) HandleLog(e *log.Entry) error {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	level := strings.ToUpper(e.Level.String())

	var b strings.Builder
	b.WriteString(e.Message)

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields[name])
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintf(h.w, "%s %.1s %s\n", timestamp, level, b.String())
	return err
}
