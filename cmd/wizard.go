package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jonaddams/document-generator/config"
	"github.com/jonaddams/document-generator/internal/fault"
	"github.com/jonaddams/document-generator/internal/tui"
	"github.com/jonaddams/document-generator/internal/tui/screens"
)

var wizardData string

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Create a document step by step in the terminal",
	Args:  cobra.NoArgs,
	RunE:  runWizard,
}

func init() {
	wizardCmd.Flags().StringVar(&wizardData, "data", "", "preload template data from a JSON file")
}

func runWizard(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("the wizard needs an interactive terminal; use 'docgen generate' instead")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logFile, logPath, err := openWizardLog(cfg)
	if err != nil {
		return err
	}
	defer logFile.Close()

	a, err := newApp(cfg, logFile)
	if err != nil {
		return err
	}
	defer a.Close()

	flow := a.newFlow()
	defer flow.Close()

	if wizardData != "" {
		data, err := readLimited(wizardData, a.cfg.Uploads.MaxDataBytes)
		if err != nil {
			return err
		}
		if err := flow.EditData(string(data)); err != nil {
			return fmt.Errorf("%s: %s", wizardData, fault.Message(err))
		}
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	theme := tui.DetectTheme(themeOverride)
	styles := tui.NewStyleSet(theme)
	model := tui.NewWizardModel(ctx, theme, flow,
		screens.All(ctx, styles, flow, a.registry.List(), a.outputDir()), appVersion)

	final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	if err != nil {
		return fmt.Errorf("wizard failed: %w", err)
	}
	wm, ok := final.(tui.WizardModel)
	if !ok {
		return fmt.Errorf("unexpected model type %T", final)
	}
	if errors.Is(wm.Err(), tui.ErrCancelled) {
		fmt.Fprintln(cmd.OutOrStdout(), "Wizard cancelled.")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Done. Log written to %s\n", logPath)
	return nil
}

// openWizardLog opens the log file in the output directory; the terminal
// belongs to the wizard.
func openWizardLog(cfg *config.Config) (*os.File, string, error) {
	dir := resolveOutputDir(cfg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("creating output directory: %w", err)
	}
	name := cfg.Log.File
	if name == "" {
		name = "docgen.log"
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("opening log file: %w", err)
	}
	return f, path, nil
}
