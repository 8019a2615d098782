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

package chain

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the format nodes use for timestamps. It carries no zone and
// is always UTC.
const TimeLayout = "2006-01-02T15:04:05"

// Time is a second resolution UTC timestamp that marshals to and from
// TimeLayout.
type Time struct {
	time.Time
}

// NewTime returns t in UTC truncated to whole seconds.
func NewTime(t time.Time) Time {
	return Time{Time: t.UTC().Truncate(time.Second)}
}

// ParseTime parses s in TimeLayout. A trailing "Z" is tolerated.
func ParseTime(s string) (Time, error) {
	t, err := time.ParseInLocation(TimeLayout, strings.TrimSuffix(s, "Z"),
		time.UTC)
	if err != nil {
		return Time{}, err
	}
	return Time{Time: t}, nil
}

func (t Time) String() string {
	return t.UTC().Format(TimeLayout)
}

// UnmarshalJSON unmarshals a JSON string in TimeLayout.
func (t *Time) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("%T: expected JSON string", t)
	}
	pt, err := ParseTime(string(data[1 : len(data)-1]))
	if err != nil {
		return fmt.Errorf("%T: %w", t, err)
	}
	*t = pt
	return nil
}

// MarshalJSON marshals t as a JSON string in TimeLayout.
func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}
