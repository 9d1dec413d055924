package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonaddams/document-generator/registry"
)

var templatesJSON bool

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the predefined document templates",
	Args:  cobra.NoArgs,
	RunE:  runTemplates,
}

func init() {
	templatesCmd.Flags().BoolVar(&templatesJSON, "json", false, "print the templates as JSON")
}

func runTemplates(cmd *cobra.Command, args []string) error {
	reg, err := registry.New()
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	list := reg.List()
	out := cmd.OutOrStdout()

	if templatesJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	for _, t := range list {
		fmt.Fprintf(out, "%-12s %-20s %s\n", t.ID, t.DisplayName, t.Category)
		fmt.Fprintf(out, "%-12s %s\n", "", t.Description)
	}
	fmt.Fprintf(out, "\nUse --template ID with 'docgen generate', or --custom FILE.docx for your own template.\n")
	return nil
}
