package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsawler/intelliparse"
	"github.com/tsawler/intelliparse/understand"
)

func newSchemaCmd(a *app) *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "schema path",
		Short: "Infer the entities and relations of a document with an AI model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider != "" {
				a.cfg.AI.Provider = provider
			}
			ctx := cmd.Context()
			c, err := a.build(ctx)
			if err != nil {
				return err
			}
			defer c.close()
			if c.ai == nil {
				return fmt.Errorf("%w: set ai.provider or pass --ai", understand.ErrNoModel)
			}

			items, err := c.resolver.Resolve(ctx, args)
			if err != nil {
				return err
			}
			if len(items) != 1 {
				return errors.New("schema takes exactly one file")
			}

			p := intelliparse.New(a.pipelineConfig(c, false))
			res := p.Extract(ctx, inputs(items)[0])
			if !res.OK() {
				return fmt.Errorf("extract %s: %w", res.Name, res.Err)
			}
			schema, err := p.Schema(ctx, res.Document)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(schema)
		},
	}

	cmd.Flags().StringVar(&provider, "ai", "", "AI provider: gemini, ollama or openai")
	return cmd
}
