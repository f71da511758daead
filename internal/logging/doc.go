// Package logging provides a simple leveled logging interface for the
// course library.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true. Long-running components (scanner, watcher,
// delivery engine) log through a [Logger] obtained from [For] so that their
// lines carry a component tag.
package logging
