package main

import (
	"fmt"
	"os"

	"github.com/deemkeen/glyptodon/util"
	"github.com/spf13/cobra"
)

// rootCmd runs the server when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   util.Name,
	Short: "Federating blog and wiki server",
	Long: `Glyptodon serves a directory of markdown pages as an ActivityPub actor.
Fediverse accounts can follow it, newly published pages are delivered
to every follower, and an ssh console exposes the federation state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the glyptodon version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(util.GetNameAndVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
