/*
Package main is the flowcore command line entry point.

# Subcommands

  - validate — statically check a YAML/JSON flow definition
  - run      — execute a flow with dry-run executors, printing live progress
  - version  — show build information injected via ldflags

The run subcommand can persist a failed run's checkpoint to Redis
(--redis) and resume it later (--resume <runId>), re-executing only the
failed node and everything downstream of it.
*/
package main
