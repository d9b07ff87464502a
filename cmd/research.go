package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deepscribe/researchd/config"
	"github.com/deepscribe/researchd/internal/export"
	"github.com/deepscribe/researchd/internal/research"
)

// researchCMD runs one research session in the foreground and writes the
// report to stdout.
func researchCMD() *cobra.Command {
	var cfgPath string
	var depth string
	var format string
	var cmd = &cobra.Command{
		Use:   "research [topic]",
		Short: "Run a single research session and print the report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := args[0]
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			normalized, err := export.NormalizeFormat(format)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sess := a.coordinator.NewSession(topic, research.ParseDepth(depth), normalized)
			for event := range a.coordinator.Run(ctx, sess) {
				switch event.Type {
				case research.EventProgress:
					fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", event.Percent, event.Message)
				case research.EventError:
					return fmt.Errorf("research failed: %s", event.Message)
				case research.EventComplete:
					body, _, err := export.Render(*event.Report, normalized)
					if err != nil {
						return err
					}
					os.Stdout.Write(body)
				}
			}
			return ctx.Err()
		},
	}
	cmd.Flags().StringVar(&depth, "depth", "standard", "research depth: quick, standard or deep")
	cmd.Flags().StringVar(&format, "format", "markdown", "output format: markdown, html or json")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
