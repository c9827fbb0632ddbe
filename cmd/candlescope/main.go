package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"candlescope/internal/analyzer"
	"candlescope/internal/chart"
	"candlescope/internal/config"
	"candlescope/internal/export"
	"candlescope/internal/logging"
	"candlescope/internal/pipeline"
	"candlescope/internal/prompt"
	"candlescope/internal/provider"
	"candlescope/internal/ratelimit"
	"candlescope/internal/recorder"
	"candlescope/internal/symbols"
	"candlescope/pkg/model"
)

var (
	cfgFile     string
	chartsDir   string
	patternsDir string
	format      string
	verbose     bool
	historyN    int
	checkFund   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "candlescope",
		Short: "Chart today's top movers and flag reversal candles",
		Long: `Candlescope lists today's top gaining stocks or popular mutual funds,
charts the one you pick with 5/10 moving averages and a volume panel, and marks
Doji, Hammer and bullish Engulfing candles on the chart.

Examples:
  candlescope
  candlescope --format json --charts-dir /tmp/charts
  candlescope check AAPL
  candlescope history -n 20`,
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "candlescope.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "debug logging")
	rootCmd.Flags().StringVar(&chartsDir, "charts-dir", "", "directory for chart images")
	rootCmd.Flags().StringVar(&patternsDir, "patterns-dir", "", "directory for pattern exports")
	rootCmd.Flags().StringVar(&format, "format", "", "pattern export format: csv, json")

	checkCmd := &cobra.Command{
		Use:   "check TICKER",
		Short: "Fetch one ticker and print its patterns without writing files",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}
	checkCmd.Flags().BoolVar(&checkFund, "fund", false, "treat the ticker as a mutual fund (daily bars)")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the history database",
		RunE:  runHistory,
	}
	historyCmd.Flags().IntVarP(&historyN, "limit", "n", 10, "number of runs to show")

	rootCmd.AddCommand(checkCmd, historyCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration, applies flag overrides and builds the logger
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	if cmd.Flags().Changed("charts-dir") {
		cfg.Output.ChartsDir = chartsDir
	}
	if cmd.Flags().Changed("patterns-dir") {
		cfg.Output.PatternsDir = patternsDir
	}
	if cmd.Flags().Changed("format") {
		cfg.Output.Format = format
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, logger, nil
}

// signalContext is cancelled on the first SIGINT/SIGTERM. The handler is
// released right after, so a second Ctrl-C kills the process.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}

func newFeed(cfg *config.Config) *provider.FallbackProvider {
	limiter := ratelimit.NewLimiter("yahoo-chart", cfg.Feed.RateLimit)
	return provider.NewYahooFallback(cfg.Feed.Hosts, cfg.Feed.Timeout, limiter)
}

func run(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := export.EnsureDirs(cfg.Output.ChartsDir, cfg.Output.PatternsDir); err != nil {
		return err
	}

	sink, err := export.New(cfg.Output.Format)
	if err != nil {
		return err
	}

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Output.HistoryDB != "" {
		sqlRec, err := recorder.NewSQLiteRecorder(cfg.Output.HistoryDB, logger)
		if err != nil {
			logger.Warn("history disabled", zap.Error(err))
		} else {
			rec = sqlRec
		}
	}
	defer rec.Close()

	scraper := symbols.NewScraper(nil, symbols.ScraperConfig{
		Retries:  cfg.Listing.Retries,
		Delay:    cfg.Listing.Delay,
		Timeout:  cfg.Listing.Timeout,
		RowClass: cfg.Listing.RowClass,
		Limiter:  ratelimit.NewLimiter("yahoo-listing", cfg.Listing.RateLimit),
	}, logger)

	bar := progressbar.NewOptions(cfg.Listing.Retries,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription("Fetching listing"),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	scraper.OnAttempt = func(attempt int, err error) {
		if err == nil {
			bar.Finish()
			return
		}
		bar.Add(1)
	}

	feed := newFeed(cfg)
	hosts := make([]string, 0, len(feed.Providers()))
	for _, fp := range feed.Providers() {
		hosts = append(hosts, fp.Name())
	}
	logger.Debug("series feed", zap.Strings("providers", hosts))

	p := &pipeline.Pipeline{
		Loader:      symbols.NewLoader(scraper, cfg.Listing.StockURL, cfg.Listing.FundURL),
		Provider:    feed,
		Engine:      analyzer.NewPatternEngine(analyzer.DefaultPatternConfig()),
		Renderer:    chart.NewPNGRenderer(cfg.Output.ChartWidth, cfg.Output.ChartHeight),
		Sink:        sink,
		Recorder:    rec,
		Selector:    prompt.New(os.Stdin, os.Stdout),
		ChartsDir:   cfg.Output.ChartsDir,
		PatternsDir: cfg.Output.PatternsDir,
		FundCount:   cfg.Listing.FundCount,
		Out:         os.Stdout,
		Logger:      logger,
	}

	ctx, cancel := signalContext()
	defer cancel()

	res, err := p.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "\nInterrupted.")
		return nil
	case errors.Is(err, pipeline.ErrInvalidCategory):
		fmt.Println("Invalid selection. Please enter 1 or 2.")
		return nil
	case errors.Is(err, pipeline.ErrInvalidSelection):
		fmt.Println("Invalid option selected.")
		return nil
	case errors.Is(err, pipeline.ErrNoData):
		fmt.Println("No data available for this ticker and interval.")
		return nil
	case err != nil:
		return err
	}

	if len(res.Events) > 0 {
		fmt.Println()
		printSummary(res.Events)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	category := model.CategoryStock
	if checkFund {
		category = model.CategoryFund
	}

	ticker := args[0]
	series, err := newFeed(cfg).GetSeries(ctx, ticker, category.Interval(), pipeline.Lookback)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", ticker, err)
	}
	series = model.Normalize(series)
	if series.Empty() {
		fmt.Println("No data available for this ticker and interval.")
		return nil
	}

	last := series.Last()
	fmt.Printf("%s: %d candles, last %s O=%.2f H=%.2f L=%.2f C=%.2f V=%d\n",
		ticker, series.Len(), last.Time.Format(export.TimeLayout),
		last.Open, last.High, last.Low, last.Close, last.Volume)

	events := analyzer.NewPatternEngine(analyzer.DefaultPatternConfig()).Detect(series)
	if len(events) == 0 {
		fmt.Println("No reversal patterns detected.")
		return nil
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Time", "Pattern"}),
	)
	for _, ev := range events {
		table.Append([]string{ev.Time.Format(export.TimeLayout), string(ev.Kind)})
	}
	table.Render()
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Output.HistoryDB == "" {
		return fmt.Errorf("no history database configured (output.history_db)")
	}

	rec, err := recorder.OpenExisting(cfg.Output.HistoryDB, logger)
	if errors.Is(err, recorder.ErrNoHistory) {
		fmt.Println("No runs recorded yet.")
		return nil
	}
	if err != nil {
		return err
	}
	defer rec.Close()

	runs, err := rec.RecentRuns(historyN)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Started", "Ticker", "Category", "Source", "Candles", "Patterns", "Chart"}),
	)
	for _, r := range runs {
		source := "live"
		if r.Fallback {
			source = "default"
		}
		table.Append([]string{
			r.StartedAt.Format("2006-01-02 15:04"),
			r.Ticker,
			r.Category,
			source,
			fmt.Sprintf("%d", r.Candles),
			fmt.Sprintf("%d", r.Patterns),
			r.ChartPath,
		})
	}
	table.Render()
	return nil
}

func printSummary(events []model.PatternEvent) {
	counts := analyzer.Summarize(events)

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Pattern", "Count"}),
	)
	for _, kind := range []model.PatternKind{model.PatternDoji, model.PatternHammer, model.PatternEngulfing} {
		table.Append([]string{string(kind), fmt.Sprintf("%d", counts[kind])})
	}
	table.Render()
}
