// Copyright 2021 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log is the ambient logging facade shared by every package in
// this module. It wraps the standard library's *log.Logger rather than a
// structured-logging framework: nothing downstream needs more than
// leveled, line-oriented output.
package log

import (
	stdlog "log"
	"os"
)

// Logger is the interface every package in this module logs through.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	Fatalf(format string, v ...interface{})
}

type logger struct {
	*stdlog.Logger
}

const logPrefix = "ftmemsim "

var log Logger = &logger{Logger: nil}
var logDebugMessages = false

// SetLogger installs l as the destination for all package logging.
// A nil *log.Logger (the default) discards everything.
func SetLogger(l *stdlog.Logger) {
	log = &logger{Logger: l}
}

// SetDebug toggles whether Debugf messages are emitted.
func SetDebug(debug bool) {
	logDebugMessages = debug
}

// Debugf logs a debug-level message, if debug logging is enabled.
func Debugf(format string, v ...interface{}) { log.Debugf(format, v...) }

// Infof logs an info-level message.
func Infof(format string, v ...interface{}) { log.Infof(format, v...) }

// Warnf logs a warning-level message.
func Warnf(format string, v ...interface{}) { log.Warnf(format, v...) }

// Errorf logs an error-level message.
func Errorf(format string, v ...interface{}) { log.Errorf(format, v...) }

// Fatalf logs an error-level message and terminates the process.
func Fatalf(format string, v ...interface{}) { log.Fatalf(format, v...) }

func (l *logger) Debugf(format string, v ...interface{}) {
	if l.Logger != nil && logDebugMessages {
		l.Logger.Printf("DEBUG: "+logPrefix+format, v...)
	}
}

func (l *logger) Infof(format string, v ...interface{}) {
	if l.Logger != nil {
		l.Logger.Printf("INFO: "+logPrefix+format, v...)
	}
}

func (l *logger) Warnf(format string, v ...interface{}) {
	if l.Logger != nil {
		l.Logger.Printf("WARN: "+logPrefix+format, v...)
	}
}

func (l *logger) Errorf(format string, v ...interface{}) {
	if l.Logger != nil {
		l.Logger.Printf("ERROR: "+logPrefix+format, v...)
	}
}

func (l *logger) Fatalf(format string, v ...interface{}) {
	if l.Logger != nil {
		l.Logger.Printf("FATAL: "+logPrefix+format, v...)
	}
	os.Exit(1)
}
