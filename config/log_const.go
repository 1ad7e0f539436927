package config

import "github.com/fatih/color"

// Color is a terminal foreground color.
type Color = color.Attribute

// Color constants for component log prefixes.
const (
	ColorBlue    = color.FgBlue
	ColorGreen   = color.FgGreen
	ColorCyan    = color.FgCyan
	ColorMagenta = color.FgMagenta
	ColorPurple  = color.FgHiMagenta
	ColorYellow  = color.FgYellow
)

// Log levels accepted by LOG_LEVEL.
const (
	LogLevelDebug   = "debug"
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)
