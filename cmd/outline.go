package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonaddams/document-generator/config"
	"github.com/jonaddams/document-generator/internal/outline"
)

var outlineModel bool

var outlineCmd = &cobra.Command{
	Use:   "outline FILE",
	Short: "Print a readable outline of a JSON data file",
	Args:  cobra.ExactArgs(1),
	RunE:  runOutline,
}

func init() {
	outlineCmd.Flags().BoolVar(&outlineModel, "model", false, "outline only the template model, as the data editor preview does")
}

func runOutline(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	data, err := readLimited(args[0], cfg.Uploads.MaxDataBytes)
	if err != nil {
		return err
	}
	v, err := outline.Decode(data)
	if err != nil {
		return fmt.Errorf("%s: invalid JSON: %w", args[0], err)
	}

	text := outline.Render(v)
	if outlineModel {
		text = outline.Readable(v)
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
