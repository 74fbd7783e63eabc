/*
main.go - Application entry point

PURPOSE:
  Starts the shift engine CLI. All real wiring lives in the cli package;
  this file only hands control to the command tree.

COMMANDS:
  serve          Run the HTTP API with the background job scheduler
  jobs run       Run the daily job chain for one date
  jobs backfill  Run the chain for a date range (catch-up after downtime)
  seed           Reset the database and load demo data

EXAMPLES:
  # Run with file database
  ./shiftd serve --db="./data/shift.db"

  # Run with in-memory database and no background jobs
  ./shiftd serve --db=":memory:" --no-scheduler

  # Re-run yesterday's chain after fixing data
  ./shiftd jobs run --date=2026-08-23 --force

ENVIRONMENT:
  SHIFT_ADDR                  listen address (default :8080)
  SHIFT_DB                    SQLite database path (default shift.db)
  SHIFT_DEFAULT_TASK_PENALTY  penalty for skipped unpriced mandatory tasks
  SHIFT_SCHEDULER_TZ          time zone defining "today" for scheduled jobs

SEE ALSO:
  - cli/root.go: Command tree and shared flags
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import "github.com/warp/shift-engine/cli"

func main() {
	cli.Execute()
}
