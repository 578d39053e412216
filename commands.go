package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dealmungchi/reviewcrawler/config"
	"github.com/dealmungchi/reviewcrawler/internal"
	"github.com/dealmungchi/reviewcrawler/internal/api"
	"github.com/dealmungchi/reviewcrawler/internal/browser"
	"github.com/dealmungchi/reviewcrawler/internal/crawler"
	"github.com/dealmungchi/reviewcrawler/internal/extract"
	"github.com/dealmungchi/reviewcrawler/internal/review"
	"github.com/dealmungchi/reviewcrawler/internal/scrape"
	"github.com/dealmungchi/reviewcrawler/logger"
)

var rootCmd = &cobra.Command{
	Use:          "reviewcrawler",
	Short:        "reviewcrawler scrapes pages and collects dated software reviews.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger first
		logger.Init()
		return nil
	},
}

var (
	reviewsFlags review.Request
	scrapeFlags  struct {
		url string
		extract.FieldSelectorMap
	}
)

func init() {
	reviewsCmd.Flags().StringVar(&reviewsFlags.CompanyName, "company", "", "Company or product name to look up")
	reviewsCmd.Flags().StringVar(&reviewsFlags.StartDate, "start", "", "First day to include (YYYY-MM-DD)")
	reviewsCmd.Flags().StringVar(&reviewsFlags.EndDate, "end", "", "Last day to include (YYYY-MM-DD)")
	reviewsCmd.Flags().StringVar(&reviewsFlags.Source, "source", crawler.SourceG2, "Review site: g2, capterra or trustradius")
	_ = reviewsCmd.MarkFlagRequired("company")
	_ = reviewsCmd.MarkFlagRequired("start")
	_ = reviewsCmd.MarkFlagRequired("end")

	f := scrapeCmd.Flags()
	f.StringVar(&scrapeFlags.url, "url", "", "Page to scrape")
	f.StringVar(&scrapeFlags.Root, "root", "", "Selector for one item per match")
	f.StringVar(&scrapeFlags.Title, "title", "", "Title selector, relative to root")
	f.StringVar(&scrapeFlags.Description, "description", "", "Description selector, relative to root")
	f.StringVar(&scrapeFlags.Date, "date", "", "Date selector, relative to root")
	f.StringVar(&scrapeFlags.Rating, "rating", "", "Rating selector, relative to root")
	f.StringVar(&scrapeFlags.Image, "image", "", "Image selector, relative to root")
	_ = scrapeCmd.MarkFlagRequired("url")

	rootCmd.AddCommand(serveCmd, reviewsCmd, scrapeCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the scrape and review endpoints over HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.deps.Close()

		cfg := app.cfg
		handler := api.NewHandler(app.pipeline, app.scraper, cfg.RequestTimeout)
		server := api.NewServer(cfg.ServerAddr, handler, !cfg.IsProduction(), cfg.RequestTimeout+30*time.Second)

		serverDone := make(chan error, 1)
		go func() {
			serverDone <- server.Start()
		}()

		// Wait for shutdown signal or server error
		select {
		case <-ctx.Done():
			logger.ForServer().Info().Msg("Received shutdown signal")
		case err := <-serverDone:
			return err
		}

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.ForServer().Info().Msg("Shut down gracefully")
		return nil
	},
}

var reviewsCmd = &cobra.Command{
	Use:   "reviews --company <name> --start <YYYY-MM-DD> --end <YYYY-MM-DD> [--source g2]",
	Short: "Collects one company's reviews within a date range and prints them as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.deps.Close()

		ctx, cancel := context.WithTimeout(ctx, app.cfg.RequestTimeout)
		defer cancel()

		result := app.pipeline.Run(ctx, reviewsFlags)
		if err := printJSON(result); err != nil {
			return err
		}
		if !result.Success {
			return result.Err
		}
		return nil
	},
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape --url <url> [--root <sel> --title <sel> ...]",
	Short: "Extracts items from one page and prints them as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.deps.Close()

		ctx, cancel := context.WithTimeout(ctx, app.cfg.RequestTimeout)
		defer cancel()

		selectors := scrapeFlags.FieldSelectorMap
		result := app.scraper.Run(ctx, scrape.Request{URL: scrapeFlags.url, Selectors: &selectors})
		if err := printJSON(result); err != nil {
			return err
		}
		if !result.Success {
			return result.Err
		}
		return nil
	},
}

// app is the wired application shared by every command
type app struct {
	cfg      *config.Config
	deps     *internal.Dependencies
	pipeline *review.Pipeline
	scraper  *scrape.Scraper
}

func newApp(ctx context.Context) (*app, error) {
	log := logger.ForComponent("app")

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	sources, err := crawler.LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}

	launcher, err := browser.NewLauncher(cfg.BrowserEngine, browser.Options{
		Headless:          cfg.Headless,
		UserAgent:         cfg.UserAgent,
		RemoteURL:         cfg.ChromeWSURL,
		NavigationTimeout: cfg.NavigationTimeout,
	})
	if err != nil {
		return nil, err
	}

	pages, err := crawler.FixturePages()
	if err != nil {
		return nil, fmt.Errorf("load fixture pages: %w", err)
	}
	fixtures := browser.NewFixtureLauncher(pages)

	deps := internal.NewDependencies(ctx, cfg)

	pipeline := &review.Pipeline{
		Sources:   sources,
		Launcher:  launcher,
		Fixtures:  fixtures,
		Cache:     deps.Cache,
		Store:     deps.Store,
		Publisher: deps.Publisher,
		Options: review.Options{
			UseFixtureData: cfg.UseFixtureData,
			Driver: crawler.Options{
				PageCap:        cfg.PageCap,
				WaitTimeout:    cfg.WaitTimeout,
				ScrollDelay:    cfg.ScrollDelay,
				LocateCacheTTL: cfg.LocateCacheTTL,
				BlockTime:      cfg.BlockTime,
			},
		},
	}

	scraper := scrape.New(launcher, cfg.WaitTimeout)
	if cfg.UseFixtureData {
		scraper = scrape.New(fixtures, cfg.WaitTimeout)
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("engine", launcher.Name()).
		Bool("fixture_data", cfg.UseFixtureData).
		Strs("sources", sources.Names()).
		Str("results_dir", deps.Store.Dir()).
		Msg("Starting application")

	return &app{cfg: cfg, deps: deps, pipeline: pipeline, scraper: scraper}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
