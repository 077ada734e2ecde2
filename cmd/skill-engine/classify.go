package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jingkaihe/skill-engine/pkg/intent"
	"github.com/jingkaihe/skill-engine/pkg/presenter"
	"github.com/spf13/cobra"
)

// ClassifyOutput is the JSON document printed by classify --json.
type ClassifyOutput struct {
	Message string `json:"message"`
	intent.Decision
}

var classifyCmd = withTracing(&cobra.Command{
	Use:   "classify <text...>",
	Short: "Print the routing decision for a user message",
	Long: `Classify a user message as workflow or general. Heuristics decide clear cases;
ambiguous messages go to the configured model when an API key is available and
otherwise fall back to general.

Examples:
  skill-engine classify "help me plan the MVP for a habit app"
  skill-engine classify --json what is a roadmap`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		asJSON, _ := cmd.Flags().GetBool("json")

		res, err := newResources(ctx, appConfig)
		if err != nil {
			presenter.Error(err, "Failed to initialise classifier")
			os.Exit(1)
		}

		if err := runClassify(ctx, res.Classifier, presenter.New(), strings.Join(args, " "), asJSON); err != nil {
			presenter.Error(err, "Failed to print decision")
			os.Exit(1)
		}
	},
})

func init() {
	classifyCmd.Flags().Bool("json", false, "Print the decision as JSON")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(ctx context.Context, classifier *intent.Classifier, p presenter.Presenter, message string, asJSON bool) error {
	decision := classifier.Classify(ctx, message)
	if asJSON {
		return p.JSON(ClassifyOutput{Message: message, Decision: decision})
	}

	line := fmt.Sprintf("%s (tier: %s", decision.Intent, decision.Tier)
	if decision.Tier == intent.TierModel {
		line += fmt.Sprintf(", confidence: %.2f", decision.Confidence)
	}
	p.Info(line + ")")
	return nil
}
