package app

import (
	"context"
	"errors"
	"os"
	"syscall"
)

// StopReason is logged when the app shuts down.
type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSIGINT     StopReason = "sigint"
	StopSIGTERM    StopReason = "sigterm"
	StopFatalError StopReason = "fatal_error"
	StopAppStop    StopReason = "app_stop"
)

// StopReasonFromSignal maps a received signal to a reason.
func StopReasonFromSignal(sig os.Signal) StopReason {
	switch sig {
	case os.Interrupt:
		return StopSIGINT
	case syscall.SIGTERM:
		return StopSIGTERM
	case nil:
		return StopUnknown
	default:
		return StopReason(sig.String())
	}
}

// StopReasonFromErr reports a fatal error as StopFatalError.
func StopReasonFromErr(err error) StopReason {
	if err == nil || errors.Is(err, context.Canceled) {
		return StopAppStop
	}
	return StopFatalError
}
