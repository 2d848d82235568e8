// Package protocol is a line oriented text protocol that drives a nnviz.Driver. It is
// modelled on GTP: one command per line with an optional numeric id, answered by
// "= [id] result" or "? [id] error" followed by a blank line.
package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gorgonia/nnviz"
	"github.com/gorgonia/nnviz/report"
	"github.com/pkg/errors"
)

// Ignored is the result of a well formed command that the driver rejected, such as an edit during a run.
const Ignored = "ignored"

// Engine parses commands and applies them to a driver. All access to the driver goes through one goroutine.
type Engine struct {
	d *nnviz.Driver

	known map[string]Command

	ch   chan string
	ret  chan string
	quit bool

	Thresholds    report.Thresholds
	name, version string
}

// New creates an Engine. If known is nil, StandardLib is used.
func New(d *nnviz.Driver, name, version string, known map[string]Command) *Engine {
	if known == nil {
		known = StandardLib()
	}
	return &Engine{
		d:          d,
		known:      known,
		Thresholds: report.DefaultThresholds(),
		name:       name,
		version:    version,
	}
}

// Start starts the command loop. Commands go into input and one response per command comes out
// of output. Empty lines get no response. Output is closed after "quit" or when input is closed.
func (e *Engine) Start() (input, output chan string) {
	e.ch = make(chan string)
	e.ret = make(chan string)
	go e.start()
	return e.ch, e.ret
}

func (e *Engine) Driver() *nnviz.Driver { return e.d }

func (e *Engine) start() {
	defer close(e.ret)
	for cmd := range e.ch {
		resp, ok := e.Exec(cmd)
		if !ok {
			continue
		}
		e.ret <- resp
		if e.quit {
			return
		}
	}
}

// Exec runs a single command and returns the response. ok is false for a line that has no command.
func (e *Engine) Exec(cmd string) (resp string, ok bool) {
	id, x, args, err := e.parse(cmd)
	if x == nil && err == nil {
		return "", false
	}
	if err != nil {
		return handleErr(id, err), true
	}
	id, result, err := x.Do(id, args, e)
	return handleResult(id, result, err), true
}

func (e *Engine) parse(cmd string) (id int, x Command, args []string, err error) {
	cmd = preprocess(cmd)
	tokens := strings.Fields(cmd)
	if len(tokens) == 0 {
		return -1, nil, nil, nil
	}
	if id, err = strconv.Atoi(tokens[0]); err == nil {
		// we've consumed ID
		tokens = tokens[1:]
	} else {
		// set err to nil because ID is optional
		err = nil
		id = -1
	}

	if len(tokens) == 0 {
		return id, nil, nil, nil
	}

	var ok bool
	if x, ok = e.known[tokens[0]]; !ok {
		return id, nil, nil, errors.Errorf("Unknown command %q", tokens[0])
	}
	if len(tokens) > 1 {
		args = tokens[1:]
	}
	return
}

// preprocess lowercases the line and drops comments.
func preprocess(a string) string {
	if i := strings.IndexByte(a, '#'); i >= 0 {
		a = a[:i]
	}
	return strings.ToLower(strings.TrimSpace(a))
}

func handleErr(id int, err error) string {
	if id != -1 {
		return fmt.Sprintf("? %d %v\n\n", id, err)
	}
	return fmt.Sprintf("? %v\n\n", err)
}

func handleResult(id int, result string, err error) string {
	if err != nil {
		return handleErr(id, err)
	}

	if id != -1 {
		return fmt.Sprintf("= %d %v\n\n", id, result)
	}
	return fmt.Sprintf("= %v\n\n", result)
}
