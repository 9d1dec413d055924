package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonaddams/document-generator/config"
	"github.com/jonaddams/document-generator/registry"
)

var validateTemplate string

var validateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Check a JSON data file against a template's data schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateTemplate, "template", "t", "", "template id (see 'docgen templates')")
	validateCmd.MarkFlagRequired("template") //nolint:errcheck
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	reg, err := registry.New()
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	tmpl := reg.Get(validateTemplate)
	if tmpl == nil {
		return fmt.Errorf("unknown template %q", validateTemplate)
	}
	data, err := readLimited(args[0], cfg.Uploads.MaxDataBytes)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	problems, err := reg.ValidateData(tmpl.ID, data)
	if errors.Is(err, registry.ErrNoSchema) {
		fmt.Fprintf(out, "%s has no data schema; nothing to check.\n", tmpl.DisplayName)
		return nil
	}
	if err != nil {
		return fmt.Errorf("validating %s: %w", args[0], err)
	}

	if len(problems) == 0 {
		fmt.Fprintf(out, "✓ %s is valid data for %s\n", args[0], tmpl.DisplayName)
		return nil
	}
	for _, p := range problems {
		fmt.Fprintf(out, "  ✗ %s\n", p)
	}
	return fmt.Errorf("%d problem(s) found in %s", len(problems), args[0])
}
