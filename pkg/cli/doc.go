// Package cli implements the statemock command line.
//
// Commands:
//
//	statemock serve     run the mock and admin listeners
//	statemock validate  check config documents without serving them
//	statemock eval      evaluate a transition condition against a request
//	statemock schema    print the config document JSON Schema
//	statemock version   print build information
//
// Flags default to the STATEMOCK_* environment variables (see EnvConfig),
// so an explicit flag always wins over the environment.
package cli
