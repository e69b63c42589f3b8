//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// The global hotkey needs the OS main thread on macOS and Windows.
func main() {
	initCrashLog()
	mainthread.Init(run)
}
