package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jonaddams/document-generator/internal/engine"
	"github.com/jonaddams/document-generator/internal/fault"
	"github.com/jonaddams/document-generator/internal/watch"
	"github.com/jonaddams/document-generator/internal/wizard"
	"github.com/jonaddams/document-generator/util"
)

var (
	genTemplate string
	genCustom   string
	genData     string
	genOut      string
	genDOCX     bool
	genWatch    bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a document without the wizard",
	Long: `Generate runs every wizard step headlessly: it selects the template,
loads it, applies the data (the template's sample data when --data is not
given), generates the document and saves the PDF.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&genTemplate, "template", "t", "", "predefined template id (see 'docgen templates')")
	generateCmd.Flags().StringVar(&genCustom, "custom", "", "custom DOCX template file")
	generateCmd.Flags().StringVarP(&genData, "data", "d", "", "JSON data file")
	generateCmd.Flags().StringVar(&genOut, "out", "", "directory to write to (default: output directory)")
	generateCmd.Flags().BoolVar(&genDOCX, "docx", false, "also save the generated DOCX")
	generateCmd.Flags().BoolVarP(&genWatch, "watch", "w", false, "regenerate whenever the data file changes")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if (genTemplate == "") == (genCustom == "") {
		return errors.New("exactly one of --template or --custom is required")
	}
	if genWatch && genData == "" {
		return errors.New("--watch needs --data")
	}

	a, err := loadApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	dir := genOut
	if dir == "" {
		dir = a.outputDir()
	}
	out := cmd.OutOrStdout()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	if !genWatch {
		return generateOnce(ctx, out, a, dir)
	}

	w, err := watch.NewFile(genData, watch.DefaultDebounce, a.logger)
	if err != nil {
		return err
	}
	if err := generateOnce(ctx, out, a, dir); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "generate: %v\n", err)
	}
	fmt.Fprintf(out, "Watching %s for changes (ctrl+c to stop)\n", w.Path())
	return w.Run(ctx, func(ctx context.Context) error {
		if err := generateOnce(ctx, out, a, dir); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "generate: %v\n", err)
		}
		return nil
	})
}

// generateOnce runs a fresh flow from template selection to saved files.
func generateOnce(ctx context.Context, out io.Writer, a *app, dir string) error {
	flow := a.newFlow()
	defer flow.Close()

	id, binary := wizard.TemplateID(genTemplate), []byte(nil)
	if genCustom != "" {
		data, err := readLimited(genCustom, a.cfg.Uploads.MaxTemplateBytes)
		if err != nil {
			return err
		}
		id, binary = wizard.TemplateCustom, data
	}
	if err := flow.Select(id, binary); err != nil {
		return err
	}

	if genData != "" {
		data, err := readLimited(genData, a.cfg.Uploads.MaxDataBytes)
		if err != nil {
			return err
		}
		if err := flow.EditData(string(data)); err != nil {
			return fmt.Errorf("%s: %s", genData, fault.Message(err))
		}
	}

	container := engine.NewStaticContainer("generate", 100, 40)
	defer container.Detach()
	if err := flow.Generate(ctx, container); err != nil {
		return err
	}

	if warnings, err := flow.Data().Validate(); err == nil {
		for _, w := range warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
	}

	path, err := flow.Download().Save(dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s\n", path)
	if genDOCX {
		path, err := flow.Download().SaveDOCX(ctx, dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", path)
	}

	sum := flow.Download().Summary()
	fmt.Fprintf(out, "  %s · %d model fields · %d page(s) · %s\n",
		sum.TemplateName, sum.ModelFields, sum.Pages, util.HumanBytes(int64(sum.PDFBytes)))
	return nil
}
