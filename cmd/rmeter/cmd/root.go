// Package cmd implements the rmeter CLI harness, following the
// cobra wiring of github.com/georgi-georgiev/testmesh's cli/cmd/root.go.
// It exercises the engine end-to-end as ambient developer tooling; it is
// not a plan editor or CRUD/persistence service.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:     "rmeter",
	Short:   "rmeter - scriptable HTTP load-test engine",
	Long:    `rmeter runs declarative load-test plans: thread-groups of virtual users replaying templated HTTP requests, scored against assertions and extractors, aggregated into live progress and a terminal summary.`,
	Version: "0.1.0",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
