// MIT License
//
// Copyright 2018 Canonical Ledgers, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to
// deal in the Software without restriction, including without limitation the
// rights to use, copy, modify, merge, publish, distribute, sublicense, and/or
// sell copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING
// FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS
// IN THE SOFTWARE.

package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Debug enables debug level logging for every Log created after it is set.
var Debug bool

// Log is a logrus.Entry scoped to a package name.
type Log struct {
	*logrus.Entry
}

func New(pkg string) Log {
	log := logrus.New()
	log.Formatter = &logrus.TextFormatter{ForceColors: true,
		DisableTimestamp:       true,
		DisableLevelTruncation: true}
	if Debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return Log{Entry: log.WithField("pkg", pkg)}
}

// Discard returns a Log that writes nothing. Useful in tests.
func Discard() Log {
	log := logrus.New()
	log.Out = io.Discard
	return Log{Entry: log.WithField("pkg", "discard")}
}

// IsZero reports whether l was never initialized.
func (l Log) IsZero() bool {
	return l.Entry == nil
}
