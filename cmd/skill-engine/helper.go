package main

import (
	"os"

	"github.com/jingkaihe/skill-engine/pkg/featureset"
	"github.com/spf13/cobra"
)

// helperCmd is the target of the default script registry. It reads JSON on
// stdin and writes the program's JSON result on stdout.
var helperCmd = &cobra.Command{
	Use:         "helper <script-id>",
	Short:       "Run a built-in helper program on stdin/stdout",
	Hidden:      true,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{skipSetupAnnotation: "true"},
	Run: func(_ *cobra.Command, args []string) {
		os.Exit(featureset.RunHelper(args[0], os.Stdin, os.Stdout, os.Stderr))
	},
}

func init() {
	rootCmd.AddCommand(helperCmd)
}
