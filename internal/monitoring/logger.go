// Package monitoring holds the process-wide diagnostic logger. Components
// log one line per event as "[Component] message key=value ...".
package monitoring

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// KV formats alternating keys and values as "k1=v1 k2=v2". Durations are
// rounded to milliseconds; a trailing key without a value is printed as
// "key=?".
func KV(pairs ...interface{}) string {
	var b strings.Builder
	for i := 0; i < len(pairs); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%v=", pairs[i])
		if i+1 >= len(pairs) {
			b.WriteByte('?')
			break
		}
		switch v := pairs[i+1].(type) {
		case time.Duration:
			b.WriteString(v.Round(time.Millisecond).String())
		case float64:
			fmt.Fprintf(&b, "%.6g", v)
		default:
			fmt.Fprintf(&b, "%v", v)
		}
	}
	return b.String()
}

// Recorder collects formatted log lines. Install it with SetLogger(r.Logf).
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

// Logf records one formatted line.
func (r *Recorder) Logf(format string, v ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf(format, v...))
}

// Lines returns a copy of the recorded lines.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Matching returns the recorded lines that start with prefix.
func (r *Recorder) Matching(prefix string) []string {
	var out []string
	for _, l := range r.Lines() {
		if strings.HasPrefix(l, prefix) {
			out = append(out, l)
		}
	}
	return out
}
