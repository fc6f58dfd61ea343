package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"ketohub/internal/config"
	"ketohub/internal/crawler"
	"ketohub/internal/errors"
	"ketohub/internal/images"
	"ketohub/internal/logger"
	"ketohub/internal/processor"
	"ketohub/internal/progress"
	"ketohub/internal/recipekey"
	"ketohub/internal/sites"
	"ketohub/internal/storage"
)

var (
	cfgFile       string
	initConfigOut string
)

// flagMappings binds crawl flags to config keys
var flagMappings = map[string]string{
	"download-root":         "download_root",
	"layout":                "layout",
	"sites":                 "sites",
	"timeout":               "timeout",
	"max-concurrent":        "max_concurrent",
	"delay-ms":              "delay_ms",
	"obey-robots":           "obey_robots",
	"user-agent":            "user_agent",
	"image-rate-per-second": "image_rate_per_second",
	"log-level":             "log_level",
	"log-output":            "log_output",
	"log-file-path":         "log_file_path",
	"log-include-time":      "log_include_time",
	"log-structured":        "log_structured",
}

var rootCmd = &cobra.Command{
	Use:   "ketohub",
	Short: "Ketohub crawls keto recipe sites and stores each recipe locally",
	Long: `Ketohub crawls ketoconnect.net and ruled.me, and stores every recipe page it
finds as a directory holding metadata.json, index.html and main.jpg.`,
	Example: `ketohub --download-root ./downloads
  ketohub crawl --sites ruled-me --layout session
  ketohub key https://www.ruled.me/easy-keto-cordon-bleu/`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCrawl,
}

var crawlCmd = &cobra.Command{
	Use:          "crawl",
	Short:        "Crawl the configured sites (default command)",
	SilenceUsage: true,
	RunE:         runCrawl,
}

var keyCmd = &cobra.Command{
	Use:   "key <url>...",
	Short: "Print the recipe key for each URL",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, u := range args {
			fmt.Fprintln(cmd.OutOrStdout(), recipekey.FromURL(u))
		}
	},
}

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List the registered sites",
	Run: func(cmd *cobra.Command, args []string) {
		reg := sites.Default()
		for _, id := range reg.IDs() {
			s, _ := reg.Lookup(id)
			fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", id, strings.Join(s.StartURLs, " "))
		}
	},
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		created, err := config.WriteDefaultConfig(initConfigOut)
		if err != nil {
			return err
		}
		if !created {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, leaving it untouched\n", initConfigOut)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", initConfigOut)
		return nil
	},
}

func runCrawl(cmd *cobra.Command, args []string) error {
	v := viper.New()
	if err := config.BindFlags(v, cmd, flagMappings); err != nil {
		return errors.Wrap(err, errors.ConfigurationError, "failed to bind flags")
	}

	cfg, err := config.LoadConfigWithViper(v, cfgFile)
	if err != nil {
		return err
	}

	loggerConfig, err := cfg.LoggerConfig()
	if err != nil {
		return err
	}
	appLogger, err := logger.NewLogger(loggerConfig)
	if err != nil {
		return errors.Wrap(err, errors.ConfigurationError, "failed to initialize logger")
	}
	defer appLogger.Close()

	if err := cfg.Validate(); err != nil {
		appLogger.Error("Invalid configuration", map[string]interface{}{"error": err})
		return err
	}

	log := appLogger.With(map[string]interface{}{"run_id": uuid.NewString()})

	selected, err := cfg.SelectedSites(sites.Default())
	if err != nil {
		return err
	}

	session := storage.NewSession(time.Now())
	store, err := storage.NewStorage(storage.Options{
		Root:    cfg.DownloadRoot,
		Layout:  cfg.StorageLayout(),
		Session: session,
	}, log)
	if err != nil {
		return err
	}

	fetcher := images.NewFetcher(nil, images.Options{
		UserAgent:     cfg.UserAgent,
		Timeout:       cfg.RequestTimeout(),
		RatePerSecond: cfg.ImageRatePerSecond,
	})

	log.Info("Starting ketohub", map[string]interface{}{
		"download_root": cfg.DownloadRoot,
		"layout":        cfg.Layout,
		"session":       session.String(),
		"sites":         cfg.Sites,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progressManager := progress.NewProgressManager(log)

	var g errgroup.Group
	g.SetLimit(cfg.MaxConcurrent)
	for _, site := range selected {
		siteLog := log.With(map[string]interface{}{"site": site.ID})
		c := crawler.NewCrawler(
			site,
			processor.New(site.Strategy, store, fetcher, siteLog),
			progressManager.CreateReporter(site.ID),
			siteLog,
			crawler.Options{
				UserAgent:   cfg.UserAgent,
				Timeout:     cfg.RequestTimeout(),
				Parallelism: cfg.MaxConcurrent,
				Delay:       cfg.Delay(),
				ObeyRobots:  cfg.ObeyRobots,
			},
		)
		g.Go(func() error {
			if err := c.Run(ctx); err != nil {
				siteLog.ErrorWithStack(err, "Crawl failed")
				return err
			}
			return nil
		})
	}
	crawlErr := g.Wait()

	total := progressManager.GetOverallProgress()
	log.Infof("Crawl finished: %d sites, %d pages stored, %d failed in %v",
		len(selected), total.Succeeded, total.Failed(), total.Elapsed.Round(time.Millisecond))
	printSummary(cmd, progressManager)
	return crawlErr
}

func printSummary(cmd *cobra.Command, pm *progress.ProgressManager) {
	out := cmd.OutOrStdout()
	for _, s := range pm.Summaries() {
		fmt.Fprintf(out, "%-20s processed=%d stored=%d failed=%d%s\n",
			s.Site, s.Processed, s.Succeeded, s.Failed(), failureBreakdown(s.Failures))
	}
	total := pm.GetOverallProgress()
	fmt.Fprintf(out, "%-20s processed=%d stored=%d failed=%d elapsed=%v\n",
		"total", total.Processed, total.Succeeded, total.Failed(), total.Elapsed.Round(time.Second))
}

func failureBreakdown(failures map[string]int) string {
	if len(failures) == 0 {
		return ""
	}
	kinds := make([]string, 0, len(failures))
	for k := range failures {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, failures[k]))
	}
	return " (" + strings.Join(parts, " ") + ")"
}

func init() {
	defaults := config.DefaultConfig()

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default config/config.yaml or ./config.yaml)")

	// Crawl flags are persistent so the root command and crawl accept the same set
	flags := rootCmd.PersistentFlags()
	flags.StringP("download-root", "o", defaults.DownloadRoot, "Directory recipe records are written to")
	flags.String("layout", defaults.Layout, "Record layout (flat, session)")
	flags.StringSlice("sites", defaults.Sites, "Sites to crawl, see: ketohub sites")
	flags.Int("timeout", defaults.Timeout, "Timeout for HTTP requests in seconds")
	flags.Int("max-concurrent", defaults.MaxConcurrent, "Maximum number of concurrent requests per site")
	flags.Int("delay-ms", defaults.DelayMS, "Delay between requests to the same domain in milliseconds")
	flags.Bool("obey-robots", defaults.ObeyRobots, "Respect robots.txt")
	flags.String("user-agent", defaults.UserAgent, "User-Agent header for page and image requests")
	flags.Float64("image-rate-per-second", defaults.ImageRatePerSecond, "Image downloads per second per host (0 disables)")

	// Add logging configuration flags
	flags.String("log-level", defaults.LogLevel, "Log level (DEBUG, INFO, WARN, ERROR)")
	flags.String("log-output", defaults.LogOutput, "Log output (console, file, both)")
	flags.String("log-file-path", defaults.LogFilePath, "Path to log file")
	flags.Bool("log-include-time", defaults.LogIncludeTime, "Include timestamp in logs")
	flags.Bool("log-structured", defaults.LogStructured, "Use structured (JSON) logging format")

	initConfigCmd.Flags().StringVar(&initConfigOut, "path", "config/config.yaml", "Where to write the config file")

	rootCmd.AddCommand(crawlCmd, keyCmd, sitesCmd, initConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your CLI '%s'\n", err)
		os.Exit(1)
	}
}
