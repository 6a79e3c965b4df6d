package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/harvestlabs/grantscout/config"
	"github.com/harvestlabs/grantscout/internal/fetch"
	"github.com/harvestlabs/grantscout/internal/llm"
	"github.com/harvestlabs/grantscout/internal/research"
	"github.com/harvestlabs/grantscout/internal/search"
	"github.com/harvestlabs/grantscout/internal/telemetry"
)

// researchCMD runs one research pipeline pass from the terminal, printing
// progress to stderr and the report markdown to stdout.
func researchCMD() *cobra.Command {
	var cfgPath string
	var farmType string
	var location string
	var numQueries int
	var modelID string

	var cmd = &cobra.Command{
		Use:   "research <farm description>",
		Short: "Run one grant research pass and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			provider, err := llm.NewProvider(cfg.LLM, "")
			if err != nil {
				return err
			}
			searcher, err := search.NewProvider(cfg.Search, "")
			if err != nil {
				return err
			}
			var fetcher research.PageFetcher
			if cfg.Fetch.Enabled {
				fetcher = fetch.Fetcher{Timeout: cfg.Fetch.Timeout, MaxChars: cfg.Fetch.MaxChars}
			}

			logger := log.New(os.Stderr, "[ENGINE] ", log.LstdFlags)
			tel := telemetry.NewTelemetry(cfg.Telemetry, nil)
			engine := research.NewEngine(cfg, provider, searcher, fetcher, tel, logger, modelID)

			req := research.Request{
				Query:      args[0],
				FarmType:   farmType,
				Location:   location,
				NumQueries: numQueries,
			}
			report, err := engine.Run(context.Background(), req, research.LogEmitter{Logger: log.New(os.Stderr, "", 0)})
			if err != nil {
				return err
			}
			fmt.Println(research.RenderMarkdown(report))
			return nil
		},
	}
	cmd.Flags().StringVar(&farmType, "farm-type", "", "farm type, e.g. \"Organic Vegetables\"")
	cmd.Flags().StringVar(&location, "location", "", "farm location")
	cmd.Flags().IntVar(&numQueries, "num-queries", 0, "search query count (default from config)")
	cmd.Flags().StringVar(&modelID, "model", "", "model key override for all stages")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
