package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/content-pipeline/internal/instructions"
	"github.com/suPer8Hu/content-pipeline/internal/pipeline"
)

var stageTitles = map[pipeline.Stage]string{
	pipeline.StagePost:     "POST",
	pipeline.StageScript:   "SCRIPT",
	pipeline.StageAnalysis: "ANALYSIS",
}

// progress prints stage transitions to stderr so stdout carries only outputs.
type progress struct{ w io.Writer }

func (p progress) StageStarted(s pipeline.Stage) { fmt.Fprintf(p.w, "running %s stage...\n", s) }
func (p progress) StageFinished(s pipeline.Stage, _ string) {
	fmt.Fprintf(p.w, "%s stage done\n", s)
}

func newGenerateCmd(d deps) *cobra.Command {
	var (
		content  string
		provider string
		model    string
		quiet    bool
	)
	cmd := &cobra.Command{
		Use:   "generate [content]",
		Short: "Generate a post, a video script and an analysis for one idea",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if content == "" && len(args) == 1 {
				content = args[0]
			}
			if strings.TrimSpace(content) == "" {
				return fmt.Errorf("content is required (use --content or pass it as an argument)")
			}

			cfg := d.loadConfig()
			if provider != "" {
				cfg.AIProvider = strings.ToLower(provider)
			}
			if model != "" {
				cfg.AIModel = model
			}

			ctx := cmd.Context()
			prov, err := d.provider(ctx, cfg)
			if err != nil {
				return err
			}
			p := pipeline.New(prov, instructions.NewLoader(cfg.InstructionsDir), cfg.StageTimeout)

			var obs pipeline.Observer = progress{w: cmd.ErrOrStderr()}
			if quiet {
				obs = nil
			}
			out, err := p.Run(ctx, content, obs)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, st := range pipeline.Stages {
				fmt.Fprintf(w, "=== %s ===\n%s\n\n", stageTitles[st], out[string(st)])
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&content, "content", "c", "", "idea to generate content for")
	cmd.Flags().StringVar(&provider, "provider", "", "override AI_PROVIDER (ollama, openrouter)")
	cmd.Flags().StringVar(&model, "model", "", "override AI_MODEL")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print stage progress")
	return cmd
}
