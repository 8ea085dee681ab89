package sensor

import (
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/muurk/wstelemetry/internal/logging"
	"go.uber.org/zap"
)

// File reads a single number from a file on every Sample and publishes it
// multiplied by Scale. Linux sysfs thermal zones, for example, report
// millidegrees and use a scale of 0.001.
//
// A read or parse failure publishes NaN, which the publisher never reports.
type File struct {
	Notifier
	meta  Metadata
	path  string
	scale float64
}

// NewFile creates a file-backed sensor. A zero scale means 1.
func NewFile(meta Metadata, path string, scale float64) *File {
	if scale == 0 {
		scale = 1
	}
	return &File{meta: meta, path: path, scale: scale}
}

// Metadata returns the sensor description
func (f *File) Metadata() Metadata { return f.meta }

// Path returns the file being read.
func (f *File) Path() string { return f.path }

// Sample reads the file and publishes the scaled value.
func (f *File) Sample() {
	v, err := f.read()
	if err != nil {
		logging.Warn("Failed to read sensor file",
			zap.String("sensor", f.meta.ID),
			zap.String("path", f.path),
			zap.Error(err),
		)
		f.Publish(math.NaN())
		return
	}
	f.Publish(v)
}

func (f *File) read() (float64, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, err
	}
	return v * f.scale, nil
}
