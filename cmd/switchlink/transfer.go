package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/switchlink/pkg/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Inspect persisted transfers",
}

var transferGetCmd = &cobra.Command{
	Use:   "get <transfer-id>",
	Short: "Print the caller facing view of a transfer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		env := models.NewEnv(a.cache, nil, a.cfg.Models(), models.WithLogger(a.logger))
		return printTransfer(cmd.Context(), cmd.OutOrStdout(), env, args[0], output)
	},
}

func init() {
	rootCmd.AddCommand(transferCmd)
	transferCmd.AddCommand(transferGetCmd)
	transferGetCmd.Flags().StringP("output", "o", "json", "Output format: json or yaml")
}

func printTransfer(ctx context.Context, w io.Writer, env *models.Env, id, format string) error {
	m, err := models.LoadTransfer(ctx, env, id)
	if err != nil {
		return fmt.Errorf("transfer %s: %w", id, err)
	}
	resp := m.Response()

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case "yaml":
		// Round trip through JSON so the YAML keys follow the wire names.
		raw, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(doc)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
