package log

import (
	"fmt"
	"strings"
)

// Format is a logging format. It implements the pflag.Value interface.
type Format uint

const (
	// FmtLogfmt is the "logfmt" logging format.
	FmtLogfmt Format = iota
	// FmtJSON is the JSON logging format.
	FmtJSON
)

var formatNames = []string{"logfmt", "JSON"}

// String returns the string representation of a Format.
func (f *Format) String() string {
	if int(*f) >= len(formatNames) {
		panic("logging: unsupported format")
	}
	return formatNames[*f]
}

// Set sets the Format to the value specified by the provided string.
func (f *Format) Set(s string) error {
	for i, name := range formatNames {
		if strings.EqualFold(s, name) {
			*f = Format(i)
			return nil
		}
	}
	return fmt.Errorf("logging: invalid log format: '%s'", s)
}

// Type returns the list of supported Formats.
func (f *Format) Type() string {
	return "[" + strings.Join(formatNames, ",") + "]"
}
