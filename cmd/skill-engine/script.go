package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/jingkaihe/skill-engine/pkg/presenter"
	"github.com/jingkaihe/skill-engine/pkg/scripts"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// ScriptRunConfig holds configuration for the script run command
type ScriptRunConfig struct {
	InputFile string
}

func NewScriptRunConfig() *ScriptRunConfig {
	return &ScriptRunConfig{InputFile: "-"}
}

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Run allowlisted helper scripts",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var scriptRunCmd = withTracing(&cobra.Command{
	Use:   "run <script-id>",
	Short: "Run a helper script through the script policy",
	Long: `Run a helper script exactly as the agent would: the script must be registered
and present in agent_allowed_scripts. The JSON object input is read from stdin
(or --input) and the script's JSON result is printed.

Examples:
  echo '{"candidates":[{"featureId":"auth","priorityHint":"core"}]}' | skill-engine script run score-features
  skill-engine script run validate-feature-set --input feature-set.json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getScriptRunConfigFromFlags(cmd)

		in, err := openScriptInput(config)
		if err != nil {
			presenter.Error(err, "Failed to open input")
			os.Exit(1)
		}
		defer in.Close()

		res, err := newResources(ctx, appConfig)
		if err != nil {
			presenter.Error(err, "Failed to initialise script policy")
			os.Exit(1)
		}

		if err := runScript(ctx, res.Policy, presenter.New(), args[0], in); err != nil {
			presenter.Error(err, "Script run failed")
			os.Exit(1)
		}
	},
})

func init() {
	defaults := NewScriptRunConfig()
	scriptRunCmd.Flags().StringP("input", "i", defaults.InputFile, "File holding the JSON input object, - for stdin")

	scriptCmd.AddCommand(scriptRunCmd)
	rootCmd.AddCommand(scriptCmd)
}

func getScriptRunConfigFromFlags(cmd *cobra.Command) *ScriptRunConfig {
	config := NewScriptRunConfig()
	if input, err := cmd.Flags().GetString("input"); err == nil && input != "" {
		config.InputFile = input
	}
	return config
}

func openScriptInput(config *ScriptRunConfig) (io.ReadCloser, error) {
	if config.InputFile == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(config.InputFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", config.InputFile)
	}
	return f, nil
}

// decodeScriptInput parses a JSON object. Empty input is treated as {}.
func decodeScriptInput(raw []byte) (map[string]any, error) {
	input := map[string]any{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return input, nil
	}
	if trimmed[0] != '{' {
		return nil, errors.New("script input must be a JSON object")
	}
	if err := json.Unmarshal(trimmed, &input); err != nil {
		return nil, errors.Wrap(err, "invalid JSON input")
	}
	return input, nil
}

func runScript(ctx context.Context, policy *scripts.Policy, p presenter.Presenter, id string, in io.Reader) error {
	raw, err := io.ReadAll(in)
	if err != nil {
		return errors.Wrap(err, "failed to read script input")
	}
	input, err := decodeScriptInput(raw)
	if err != nil {
		return err
	}

	result, err := policy.Run(ctx, id, input)
	if err != nil {
		return err
	}
	return p.JSON(result)
}
