package cmd

import (
	"strings"

	"github.com/fatih/color"

	"github.com/khanhnv2901/jsaudit/internal/domain/library"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
	colorNotice  = color.New(color.FgMagenta, color.Bold).SprintFunc()
)

func formatStatusWithColor(status string) string {
	switch library.Status(strings.ToLower(status)) {
	case library.StatusOK:
		return colorSuccess(status)
	case library.StatusStale:
		return colorWarn(status)
	case library.StatusModified, library.StatusStaleAndModified:
		return colorNotice(status)
	case library.StatusError:
		return colorError(status)
	default:
		return status
	}
}
