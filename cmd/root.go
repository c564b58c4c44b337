// Package cmd implements the janitor CLI: a root command plus an analyze
// subcommand that runs the Reference Resolution & Shielding Pipeline over a
// project directory and prints a terse colored summary.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/go-janitor/janitor/pkg/version"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:     "janitor",
	Short:   "Find orphan files and dead symbols across Python, JavaScript, and TypeScript",
	Long: "janitor walks a project, builds its cross-file dependency graph, and\n" +
		"reports files nothing imports and symbols nothing references, while\n" +
		"shielding framework-invoked code the static extractor can't see calling.",
	Version: version.Version,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.SilenceErrors = true
}

// Execute runs the root command and exits with code 1 on error, or code 2
// when --fail-on-findings is set and the analysis found anything.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if _, ok := err.(*findingsError); ok {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// findingsError signals a clean analysis run that found orphans/dead
// symbols with --fail-on-findings set, distinct from a pipeline failure.
type findingsError struct{ message string }

func (e *findingsError) Error() string { return e.message }
