package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/content-pipeline/internal/ai"
	"github.com/suPer8Hu/content-pipeline/internal/config"
)

// deps lets tests swap the model provider.
type deps struct {
	loadConfig func() config.Config
	provider   func(ctx context.Context, cfg config.Config) (ai.Provider, error)
}

func defaultDeps() deps {
	return deps{
		loadConfig: config.Load,
		provider: func(ctx context.Context, cfg config.Config) (ai.Provider, error) {
			return ai.NewDefaultRegistry(cfg.ProviderSettings()).Get(ctx, cfg.AIProvider, cfg.AIModel)
		},
	}
}

func newRootCmd(d deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "contentctl",
		Short:         "Run the content pipeline from the command line.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newGenerateCmd(d), newTokenCmd(d))
	return root
}
