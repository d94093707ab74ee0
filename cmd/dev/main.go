package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"datalens/adapters/dataservice"
	"datalens/app"
	"datalens/internal"
	"datalens/internal/testkit"
	"datalens/ui"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "datalens-dev",
		Short: "datalens development tools",
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newSeedCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newServeCmd runs the UI against the in-process stub service, so the
// app is explorable without the real statistics backend.
func newServeCmd() *cobra.Command {
	var uiPort, stubPort string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the UI against the in-process stub data service",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := internal.NewDefaultLogger()

			stub := testkit.NewStubService()
			go func() {
				logger.Info("[Dev] stub data service on :%s", stubPort)
				if err := http.ListenAndServe(":"+stubPort, stub.Router()); err != nil {
					logger.Error("[Dev] stub service stopped: %v", err)
				}
			}()

			client, err := dataservice.NewClient(dataservice.Config{
				BaseURL: "http://localhost:" + stubPort,
			})
			if err != nil {
				return err
			}

			figures := ui.NewFigureCache()
			sessions := app.NewRegistry(client, figures, nil, logger)
			server, err := ui.NewServer(ui.Config{Port: uiPort, GinMode: "debug"}, sessions, figures, nil, logger)
			if err != nil {
				return err
			}
			return server.Start()
		},
	}

	cmd.Flags().StringVar(&uiPort, "port", "8080", "UI listen port")
	cmd.Flags().StringVar(&stubPort, "stub-port", "5050", "stub data service listen port")
	return cmd
}

// newSeedCmd writes a synthetic CSV for manual upload testing.
func newSeedCmd() *cobra.Command {
	var rows int
	var seed uint64
	var out string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate a synthetic CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := testkit.GenerateCSV(seed, rows, testkit.DefaultColumns())
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return err
			}
			fmt.Printf("Wrote %d rows to %s\n", rows, out)
			return nil
		},
	}

	cmd.Flags().IntVar(&rows, "rows", 500, "number of rows")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "random seed")
	cmd.Flags().StringVar(&out, "out", "seed.csv", "output file")
	return cmd
}
