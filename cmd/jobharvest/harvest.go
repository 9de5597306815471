package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/use-agent/jobharvest/config"
	"github.com/use-agent/jobharvest/output"
	"github.com/use-agent/jobharvest/runner"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Harvest job listings for one or more keywords",
	Long: `Opens a new tab per keyword, scrolls the job list until it stops growing and writes
<out>_<keyword>.csv and <out>_<keyword>.jsonl for every keyword that produced records.

A keyword whose page has no job list is skipped and the next keyword still runs.`,
	Example: `  jobharvest harvest -k "admin, social media" --ai
  jobharvest harvest --keywords "$(cat keywords.txt)" --cookies cookies.txt -o out/jobs
  jobharvest harvest -k golang --html saved_page.html`,
	RunE: runHarvest,
}

var (
	harvestKeyword        string
	harvestKeywords       string
	harvestCountry        string
	harvestMaxScrolls     int
	harvestHeadless       bool
	harvestStealth        bool
	harvestContainerXPath string
	harvestOut            string
	harvestAI             bool
	harvestCookies        string
	harvestKeepTabs       bool
	harvestHTML           string
)

func init() {
	harvestCmd.Flags().StringVarP(&harvestKeyword, "keyword", "k", "", `One or more keywords separated by commas, e.g. "admin, social media"`)
	harvestCmd.Flags().StringVar(&harvestKeywords, "keywords", "", "Keyword list separated by commas or newlines (ignored when --keyword is set)")
	harvestCmd.Flags().StringVar(&harvestCountry, "country", "", "Country code (default from config, ID)")
	harvestCmd.Flags().IntVar(&harvestMaxScrolls, "max-scrolls", 0, "Scroll-round budget for the job list (default from config, 30)")
	harvestCmd.Flags().BoolVar(&harvestHeadless, "headless", true, "Run the browser headless; --headless=false shows the window")
	harvestCmd.Flags().BoolVar(&harvestStealth, "stealth", true, "Inject stealth evasions into every tab")
	harvestCmd.Flags().StringVar(&harvestContainerXPath, "container-xpath", "", "XPath of the job list container (default from config)")
	harvestCmd.Flags().StringVarP(&harvestOut, "out", "o", "", "Output file prefix, may include a directory (default from config, jobs)")
	harvestCmd.Flags().BoolVar(&harvestAI, "ai", false, "Cluster every record with the configured AI provider")
	harvestCmd.Flags().StringVar(&harvestCookies, "cookies", "", "Cookie file (JSON, JSONL or Netscape cookies.txt) or a 'name=value; name2=value2' header")
	harvestCmd.Flags().BoolVar(&harvestKeepTabs, "keep-tabs", false, "Leave tabs and the browser open after harvesting for manual inspection")
	harvestCmd.Flags().StringVar(&harvestHTML, "html", "", "Replay a saved explore page instead of launching a browser")

	rootCmd.AddCommand(harvestCmd)
}

func runHarvest(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyHarvestFlags(cmd, cfg)
	initLogger(cfg.Log)

	keywords := resolveKeywords(harvestKeyword, harvestKeywords)
	if len(keywords) == 0 {
		return fmt.Errorf("either --keyword or --keywords must be provided (comma or newline separated)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var source runner.Source
	if harvestHTML != "" {
		source = &runner.SnapshotSource{Path: harvestHTML, URL: cfg.Site.BaseURL}
	} else {
		bs, b, err := launchSource(cfg, harvestCookies)
		if err != nil {
			return err
		}
		if !cfg.Browser.KeepTabs {
			defer b.Close()
		}
		source = bs
	}

	r, cleanup, err := newRunner(ctx, cfg, source, cfg.AI.Enabled)
	if err != nil {
		return err
	}
	defer cleanup()

	stdout := cmd.OutOrStdout()
	var totals []keywordTotal
	_, err = r.Run(ctx, runner.Request{
		Keywords:       keywords,
		Country:        cfg.Site.Country,
		MaxScrolls:     cfg.Harvest.MaxScrollRounds,
		ContainerXPath: cfg.Harvest.ContainerXPath,
		AI:             cfg.AI.Enabled,
		KeepTabs:       cfg.Browser.KeepTabs,
		Emit: func(out *runner.Outcome) error {
			n, err := writeOutcome(stdout, cfg.Output.Prefix, out)
			if err != nil {
				return err
			}
			if n > 0 {
				totals = append(totals, keywordTotal{keyword: out.Report.Keyword, records: n})
			}
			return nil
		},
	})
	printTotals(stdout, totals)
	if err != nil {
		return fmt.Errorf("harvest stopped: %w", err)
	}
	return nil
}

// applyHarvestFlags lets explicitly set flags override config and env.
func applyHarvestFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("country") {
		cfg.Site.Country = harvestCountry
	}
	if flags.Changed("max-scrolls") {
		cfg.Harvest.MaxScrollRounds = harvestMaxScrolls
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless = harvestHeadless
	}
	if flags.Changed("stealth") {
		cfg.Browser.Stealth = harvestStealth
	}
	if flags.Changed("container-xpath") {
		cfg.Harvest.ContainerXPath = harvestContainerXPath
	}
	if flags.Changed("out") {
		cfg.Output.Prefix = harvestOut
	}
	if flags.Changed("ai") {
		cfg.AI.Enabled = harvestAI
	}
	if flags.Changed("keep-tabs") {
		cfg.Browser.KeepTabs = harvestKeepTabs
	}
}

// resolveKeywords prefers --keyword over --keywords.
func resolveKeywords(keyword, keywords string) []string {
	if keyword != "" {
		return runner.ParseKeywords(keyword)
	}
	return runner.ParseKeywords(keywords)
}

type keywordTotal struct {
	keyword string
	records int
}

// writeOutcome writes the CSV and JSONL files for one keyword and prints its
// cluster summary. It returns the number of records written; a keyword with
// no records writes nothing.
func writeOutcome(w io.Writer, prefix string, out *runner.Outcome) (int, error) {
	rep := out.Report
	if len(rep.Records) == 0 {
		reason := "no jobs parsed"
		if rep.Error != nil {
			reason = rep.Error.Code + ": " + rep.Error.Message
		}
		fmt.Fprintf(w, "[SKIP] %s (%s)\n", rep.Keyword, reason)
		return 0, nil
	}

	csvPath, jsonlPath := output.Paths(prefix, rep.Keyword)
	if err := output.WriteCSV(csvPath, rep.Records); err != nil {
		return 0, err
	}
	if err := output.WriteJSONL(jsonlPath, rep.Records); err != nil {
		return 0, err
	}
	slog.Info("keyword written",
		"keyword", rep.Keyword,
		"records", len(rep.Records),
		"skipped", rep.Skipped,
		"incomplete", rep.Incomplete,
		"csv", csvPath,
	)

	fmt.Fprintf(w, "[DONE] %s, %s\n", csvPath, jsonlPath)
	fmt.Fprintf(w, "\n=== SUMMARY ===\nTotal jobs: %d\n", len(rep.Records))
	for _, c := range output.Summarize(rep.Records) {
		fmt.Fprintf(w, "  - %s: %d\n", c.Cluster, c.Count)
	}
	return len(rep.Records), nil
}

func printTotals(w io.Writer, totals []keywordTotal) {
	if len(totals) < 2 {
		return
	}
	sum := 0
	fmt.Fprintln(w, "\n=== TOTAL ===")
	for _, t := range totals {
		fmt.Fprintf(w, "  - %q: %d items\n", t.keyword, t.records)
		sum += t.records
	}
	fmt.Fprintf(w, "TOTAL: %d items\n", sum)
}
