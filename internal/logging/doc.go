// Package logging configures structured JSON logging with a size-rotated
// log file, and reads those files back for `zeno logs`.
//
// Servers log to the file and stderr. In stdio mode (the MCP server)
// nothing may be written to stdout or stderr, so logs go to the file only.
package logging
