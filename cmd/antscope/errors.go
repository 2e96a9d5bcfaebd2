package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/srg/antscope/internal/registry"
	"github.com/srg/antscope/internal/transport/replay"
	"github.com/srg/antscope/pkg/config"
)

// Command-level errors
var (
	ErrInvalidFormat = errors.New("invalid output format")

	// ErrUnknownClass is returned by decode for a class that is neither a
	// number nor a known family name.
	ErrUnknownClass = errors.New("unknown device class")

	ErrUnknownKind = errors.New("unknown decoder kind")
)

// FormatUserError turns wrapped errors into one line suitable for a terminal.
func FormatUserError(err error) string {
	var pathErr *fs.PathError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, registry.ErrTransportDesync):
		return "radio stream out of sync, registry shut down"
	case errors.Is(err, replay.ErrEmptyCapture):
		return "capture contains no usable messages"
	case errors.Is(err, config.ErrInvalidConfig):
		return err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	case errors.As(err, &pathErr):
		if errors.Is(pathErr.Err, fs.ErrNotExist) {
			return fmt.Sprintf("file not found: %s", pathErr.Path)
		}
		return fmt.Sprintf("%s: %v", pathErr.Path, pathErr.Err)
	}
	return err.Error()
}
