// cmd/sndbench/main.go
package main

import (
	sndbench "github.com/sndlab/sndbench/internal/commands"
)

// Build-time variables, injected via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// main starts the sndbench CLI by delegating to the cobra root command.
func main() {
	sndbench.SetVersionInfo(version, commit, date)
	sndbench.Execute()
}
