// Package clog is the leveled logger every component logs through. Beyond
// plain level-prefixed lines, it understands mcl's own error taxonomy
// (mcl/mclerr) and tags a line with the failing Kind whenever the logged
// error carries one, so "config" vs "io_transport" vs "format" failures
// group in the log the same way they do in code.
package clog

import (
	"log"

	"mcl/mclerr"
)

func Infof(format string, args ...interface{}) {
	log.Printf("[INFO] "+format, args...)
}

func Warnf(format string, args ...interface{}) {
	log.Printf("[WARN] "+format, args...)
}

func Errorf(format string, args ...interface{}) {
	log.Printf("[ERROR] "+format, args...)
}

func Debugf(format string, args ...interface{}) {
	log.Printf("[DEBUG] "+format, args...)
}

func Fatalf(format string, args ...interface{}) {
	log.Fatalf("[FATAL] "+format, args...)
}

// WarnErr logs err at WARN level under context, prefixed with its
// mclerr.Kind when err is (or wraps) an *mclerr.Error.
func WarnErr(context string, err error) {
	if kind, ok := mclerr.Of(err); ok {
		log.Printf("[WARN] [%s] %s: %v", kind, context, err)
		return
	}
	log.Printf("[WARN] %s: %v", context, err)
}
