package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jingkaihe/skill-engine/pkg/config"
	"github.com/jingkaihe/skill-engine/pkg/logger"
	skillmcp "github.com/jingkaihe/skill-engine/pkg/mcp"
	"github.com/jingkaihe/skill-engine/pkg/version"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the agent tool contract over MCP stdio",
	Long: `Start an MCP (Model Context Protocol) server on stdin/stdout exposing
loadSkill, loadSkillReferences, runAllowlistedScript and emitFeatureSet.

Logs are written to stderr so they never interleave with protocol messages.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := runMCPCommand(cmd.Context(), appConfig, os.Stdin, os.Stdout); err != nil {
			logger.G(cmd.Context()).WithError(err).Error("MCP server failed")
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCPCommand(ctx context.Context, cfg config.Config, stdin io.Reader, stdout io.Writer) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	res, err := newResources(ctx, cfg)
	if err != nil {
		return err
	}
	defer res.Close()

	if err := res.StartWatcher(ctx); err != nil {
		return err
	}

	s, err := skillmcp.NewServer(res.Tools, version.Get().Version)
	if err != nil {
		return err
	}

	logger.G(ctx).
		WithField("skills_root", cfg.SkillsRootDir).
		WithField("allowed_scripts", res.Policy.Allowed()).
		Info("serving MCP over stdio")
	return skillmcp.ServeStdio(ctx, s, stdin, stdout)
}
