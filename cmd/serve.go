package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonaddams/document-generator/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the document wizard as an HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	sc := a.cfg.Server
	if serveAddr != "" {
		sc.Addr = serveAddr
	}

	sessions := server.NewSessions(a.newFlow, sc.SessionTTL, a.logger)
	srv := server.New(server.Config{
		Addr:             sc.Addr,
		RequestTimeout:   sc.RequestTimeout,
		AllowedOrigins:   sc.AllowedOrigins,
		MaxTemplateBytes: a.cfg.Uploads.MaxTemplateBytes,
		MaxDataBytes:     a.cfg.Uploads.MaxDataBytes,
	}, a.registry, sessions, a.logger)

	ctx, cancel := signalContext(cmd)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	g.Go(func() error { return sessions.RunJanitor(gctx, sc.SweepInterval) })

	fmt.Fprintf(cmd.OutOrStdout(), "docgen API on http://%s (ctrl+c to stop)\n", sc.Addr)
	return g.Wait()
}
