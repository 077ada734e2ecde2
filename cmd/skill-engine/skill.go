package main

import (
	"context"
	"os"
	"strings"

	"github.com/jingkaihe/skill-engine/pkg/presenter"
	"github.com/jingkaihe/skill-engine/pkg/skills"
	"github.com/spf13/cobra"
)

// SkillOutputConfig holds the output flags shared by the skill subcommands.
type SkillOutputConfig struct {
	JSON bool
}

func NewSkillOutputConfig() *SkillOutputConfig {
	return &SkillOutputConfig{JSON: false}
}

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Browse the skill catalog",
	Long:  `List skills and print their instructions and reference documents.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var skillListCmd = withTracing(&cobra.Command{
	Use:   "list",
	Short: "List all skills in the catalog",
	Long:  `List every skill under the skills root with its name, slug and description.`,
	Run: func(cmd *cobra.Command, _ []string) {
		runSkillCommand(cmd, func(ctx context.Context, svc *skills.Service, out *SkillOutputConfig) error {
			return listSkills(ctx, svc, presenter.New(), out)
		})
	},
})

var skillShowCmd = withTracing(&cobra.Command{
	Use:   "show <name>",
	Short: "Print a skill's instructions",
	Long: `Print the SKILL.md body of a skill with its frontmatter stripped. The name
matches either the skill's display name or its slug.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSkillCommand(cmd, func(ctx context.Context, svc *skills.Service, out *SkillOutputConfig) error {
			return showSkill(ctx, svc, presenter.New(), args[0], out)
		})
	},
})

var skillReferencesCmd = withTracing(&cobra.Command{
	Use:   "references <name>",
	Short: "List a skill's reference documents",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSkillCommand(cmd, func(ctx context.Context, svc *skills.Service, out *SkillOutputConfig) error {
			return showReferences(ctx, svc, presenter.New(), args[0], out)
		})
	},
})

func init() {
	defaults := NewSkillOutputConfig()
	for _, cmd := range []*cobra.Command{skillListCmd, skillShowCmd, skillReferencesCmd} {
		cmd.Flags().Bool("json", defaults.JSON, "Print the result as JSON")
		skillCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(skillCmd)
}

func getSkillOutputConfigFromFlags(cmd *cobra.Command) *SkillOutputConfig {
	config := NewSkillOutputConfig()
	if asJSON, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = asJSON
	}
	return config
}

func runSkillCommand(cmd *cobra.Command, fn func(context.Context, *skills.Service, *SkillOutputConfig) error) {
	ctx := cmd.Context()

	res, err := newResources(ctx, appConfig)
	if err != nil {
		presenter.Error(err, "Failed to open skill catalog")
		os.Exit(1)
	}

	if err := fn(ctx, res.Skills, getSkillOutputConfigFromFlags(cmd)); err != nil {
		presenter.Error(err, "Skill command failed")
		os.Exit(1)
	}
}

func listSkills(ctx context.Context, svc *skills.Service, p presenter.Presenter, out *SkillOutputConfig) error {
	catalog, err := svc.DiscoverSkillMetadata(ctx)
	if err != nil {
		return err
	}
	if out.JSON {
		return p.JSON(catalog)
	}

	if len(catalog) == 0 {
		p.Info("No skills found")
		return nil
	}

	rows := make([][]string, 0, len(catalog))
	for _, meta := range catalog {
		rows = append(rows, []string{meta.Name, meta.Slug, meta.Description})
	}
	p.Table([]string{"NAME", "SLUG", "DESCRIPTION"}, rows)
	return nil
}

func showSkill(ctx context.Context, svc *skills.Service, p presenter.Presenter, name string, out *SkillOutputConfig) error {
	skill, err := svc.LoadSkill(ctx, name)
	if err != nil {
		return err
	}
	if out.JSON {
		return p.JSON(skill)
	}

	p.Section(skill.Name)
	p.Info(skill.Description)
	p.Info("")
	p.Info(strings.TrimSpace(skill.Content))
	return nil
}

func showReferences(ctx context.Context, svc *skills.Service, p presenter.Presenter, name string, out *SkillOutputConfig) error {
	refs, err := svc.LoadReferences(ctx, name)
	if err != nil {
		return err
	}
	if out.JSON {
		return p.JSON(refs)
	}

	if len(refs) == 0 {
		p.Info("No reference documents")
		return nil
	}

	rows := make([][]string, 0, len(refs))
	for _, ref := range refs {
		rows = append(rows, []string{
			ref.RelativePath,
			ref.Metadata.FeatureID,
			string(ref.Metadata.PriorityHint),
			ref.Metadata.Title,
		})
	}
	p.Table([]string{"PATH", "FEATURE", "PRIORITY", "TITLE"}, rows)
	return nil
}
