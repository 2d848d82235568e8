// +build debug

package nnviz

import (
	"bytes"
	"fmt"
)

// stepLog records every consumed transition. It only exists in debug builds.
type stepLog struct {
	*bytes.Buffer
}

func makeStepLog() stepLog { return stepLog{Buffer: new(bytes.Buffer)} }

func (l stepLog) log(msg string, args ...interface{}) {
	fmt.Fprintf(l.Buffer, msg, args...)
	l.WriteByte('\n')
}

func (l stepLog) Reset() { l.Buffer.Reset() }

func (l stepLog) Log() string { return l.String() }
