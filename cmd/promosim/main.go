/*
main.go - Application entry point

PURPOSE:
  promosim simulates promotion cycles over personnel rosters, either once
  from the command line or behind the HTTP API.

COMMANDS:
  run     Simulate a track from CSV rosters and print the outcome
  serve   Start the HTTP API backed by SQLite
  config  Print the effective configuration as YAML

ENVIRONMENT:
  Every persistent and server flag can be set as PROMOSIM_<FLAG>, for
  example PROMOSIM_PORT, PROMOSIM_DB, PROMOSIM_CONFIG, PROMOSIM_LOG_JSON and
  PROMOSIM_LOG_LEVEL. Flags win over the environment.

SEE ALSO:
  - commands/: command implementations
  - api/server.go: Router configuration
*/
package main

import (
	"os"

	"github.com/warp/career-engine/cmd/promosim/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
