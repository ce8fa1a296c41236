//go:build windows

package server

import "syscall"

// sighup is not delivered on Windows, but the constant is still there.
const sighup = syscall.SIGHUP
