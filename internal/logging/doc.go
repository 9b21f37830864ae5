// Package logging provides leveled logging for the screenshot search
// service. The level is controlled by the DEBUG and LOG_LEVEL
// environment variables; setting LOG_FILE additionally routes output
// through a size-rotated log file.
package logging
