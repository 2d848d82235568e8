// +build !debug

package nnviz

type stepLog struct{}

func makeStepLog() stepLog { return stepLog{} }

func (l stepLog) log(msg string, args ...interface{}) {}

func (l stepLog) Reset() {}

func (l stepLog) Log() string { return "" }
