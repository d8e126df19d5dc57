package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/nvandessel/cogmap/internal/store"
)

// Audit scopes. Tools that read map files under the project root log
// locally; tools that touch the shared run history log globally.
const (
	scopeLocal  = "local"
	scopeGlobal = "global"
)

// AuditEntry records one tool call. It never holds map contents or paths.
type AuditEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Tool       string            `json:"tool"`
	Scope      string            `json:"scope"`
	DurationMs int64             `json:"duration_ms"`
	Status     string            `json:"status"` // "success" or "error"
	Error      string            `json:"error,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}

type auditFile struct {
	mu   sync.Mutex
	file *os.File
}

// AuditLogger appends entries to JSONL files, one under the project root
// and one under the home directory. A nil AuditLogger discards entries.
type AuditLogger struct {
	local  *auditFile
	global *auditFile
}

// openAuditFile opens <dir>/.cogmap/audit.jsonl for appending, or returns
// nil with a warning on stderr.
func openAuditFile(dir string) *auditFile {
	path := filepath.Join(store.LocalCogmapPath(dir), "audit.jsonl")

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot create audit log directory %s: %v\n", filepath.Dir(path), err)
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot open audit log %s: %v\n", path, err)
		return nil
	}
	return &auditFile{file: f}
}

func (af *auditFile) write(entry AuditEntry) {
	if af == nil || af.file == nil {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	af.mu.Lock()
	defer af.mu.Unlock()
	_, _ = af.file.Write(append(data, '\n'))
}

func (af *auditFile) close() error {
	if af == nil || af.file == nil {
		return nil
	}
	af.mu.Lock()
	defer af.mu.Unlock()
	return af.file.Close()
}

// NewAuditLogger opens the local log under localDir and the global log
// under globalDir. Either may fail without aborting; if both fail the
// result is nil.
func NewAuditLogger(localDir, globalDir string) *AuditLogger {
	local := openAuditFile(localDir)
	global := openAuditFile(globalDir)
	if local == nil && global == nil {
		return nil
	}
	return &AuditLogger{local: local, global: global}
}

// Log routes entry by its Scope. Anything other than "global" goes to the
// local log.
func (a *AuditLogger) Log(entry AuditEntry) {
	if a == nil {
		return
	}
	if entry.Scope == scopeGlobal {
		a.global.write(entry)
		return
	}
	a.local.write(entry)
}

// Close closes both files and returns the first error.
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	var firstErr error
	if err := a.local.close(); err != nil {
		firstErr = err
	}
	if err := a.global.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Parameters whose values are logged as-is.
var safeValueParams = map[string]bool{
	"action":     true,
	"epochs":     true,
	"format":     true,
	"limit":      true,
	"max_delta":  true,
	"max_epochs": true,
	"record":     true,
	"trace":      true,
}

// Parameters logged as "(set)" only: paths, names and overrides.
var presenceOnlyParams = map[string]bool{
	"file": true,
	"map":  true,
	"id":   true,
	"set":  true,
	"fix":  true,
}

// sanitizeToolParams keeps safe values, reduces identifying values to
// "(set)" and drops everything else. Zero values count as unset.
// "_param_count" is always present.
func sanitizeToolParams(params map[string]any) map[string]string {
	if params == nil {
		return nil
	}

	result := make(map[string]string)
	count := 0
	for key, val := range params {
		if isZeroParam(val) {
			continue
		}
		count++
		switch {
		case safeValueParams[key]:
			result[key] = formatParam(val)
		case presenceOnlyParams[key]:
			result[key] = "(set)"
		}
	}
	result["_param_count"] = strconv.Itoa(count)
	return result
}

func formatParam(v any) string {
	switch x := v.(type) {
	case *float64:
		return strconv.FormatFloat(*x, 'g', -1, 64)
	case *int:
		return strconv.Itoa(*x)
	}
	return fmt.Sprintf("%v", v)
}

func isZeroParam(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case int:
		return x == 0
	case bool:
		return !x
	case *float64:
		return x == nil
	case *int:
		return x == nil
	case map[string]float64:
		return len(x) == 0
	}
	return false
}

// auditTool writes one entry for a finished tool call.
func (s *Server) auditTool(toolName string, start time.Time, err error, params map[string]string, scope string) {
	status := "success"
	errMsg := ""
	if err != nil {
		status = "error"
		errMsg = err.Error()
	}
	if scope == "" {
		scope = scopeLocal
	}

	s.auditLogger.Log(AuditEntry{
		Timestamp:  start,
		Tool:       toolName,
		Scope:      scope,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     status,
		Error:      errMsg,
		Params:     params,
	})
}
