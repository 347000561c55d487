// Package klog is a minimal boot/device logger. It wraps the standard
// log package with a component tag, the common pattern of prefixing
// every Printf call with the owning device's name (e.g. "pic: ...",
// "pit: ...") instead of pulling in a structured-logging dependency.
package klog

import (
	"log"
	"os"
)

// Logger prefixes every message with a component tag and only emits
// Debugf output when verbose is enabled, the same debug-gate-on-
// log.Printf pattern a hypervisor's verbose trace logging uses.
type Logger struct {
	component string
	verbose   bool
	out       *log.Logger
}

// New returns a Logger tagged with component. verbose controls whether
// Debugf is emitted.
func New(component string, verbose bool) *Logger {
	return &Logger{
		component: component,
		verbose:   verbose,
		out:       log.New(os.Stderr, "", log.LstdFlags),
	}
}

// Infof logs unconditionally.
func (l *Logger) Infof(format string, args ...any) {
	l.out.Printf(l.component+": "+format, args...)
}

// Warnf logs unconditionally, flagged as a warning.
func (l *Logger) Warnf(format string, args ...any) {
	l.out.Printf(l.component+": warning: "+format, args...)
}

// Debugf logs only when the logger was constructed with verbose=true.
func (l *Logger) Debugf(format string, args ...any) {
	if !l.verbose {
		return
	}
	l.out.Printf(l.component+": "+format, args...)
}

// WithComponent returns a Logger for a sub-component, preserving the
// verbosity setting (e.g. klog.New("pic", dbg).WithComponent("master")).
func (l *Logger) WithComponent(sub string) *Logger {
	return &Logger{component: l.component + "." + sub, verbose: l.verbose, out: l.out}
}
