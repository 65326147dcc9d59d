package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron"
	"k8s.io/klog"

	"github.com/bcaldwell/expenseops/internal/categorizer"
	"github.com/bcaldwell/expenseops/internal/config"
	"github.com/bcaldwell/expenseops/internal/enrichment"
	"github.com/bcaldwell/expenseops/internal/export"
	"github.com/bcaldwell/expenseops/internal/ledger"
	"github.com/bcaldwell/expenseops/internal/llm"
	"github.com/bcaldwell/expenseops/internal/pipeline"
)

type Runner interface {
	Run() error
}

var runner Runner

func main() {
	klog.InitFlags(nil)

	configFile := flag.String("config", "./config.yml", "configuration file")
	secretsFile := flag.String("secrets", "./secrets.ejson", "secrets file")
	root := flag.String("root", ".", "project directory")
	month := flag.String("month", time.Now().Format("2006-01"), "month to process (YYYY-MM)")
	noLLM := flag.Bool("no-llm", false, "disable LLM categorization")
	cronSpec := flag.String("cron", "", "re-run the process task on a cron schedule")
	originalCSV := flag.String("original", "", "original export CSV (learn task)")
	correctedCSV := flag.String("corrected", "", "corrected export CSV (learn task)")
	provider := flag.String("provider", "", "enrichment provider (enrich task)")
	help := flag.Bool("help", false, "show command help")

	flag.Parse()

	if *help || flag.NArg() == 0 {
		fmt.Println("expenseops - monthly expense processing")
		fmt.Println("expenseops [options] process|learn|enrich|init")
		flag.PrintDefaults()
		if !*help {
			os.Exit(1)
		}
		return
	}

	task := flag.Arg(0)

	if task == "init" {
		if err := config.Initialize(*root); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		fmt.Printf("Initialized project directory %s\n", *root)
		return
	}

	if task == "process" || task == "enrich" {
		if _, _, err := ledger.MonthRange(*month); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	}

	if err := config.ReadConfig("EXPENSEOPS_CONFIG", *configFile, *secretsFile); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	switch task {
	case "process":
		runner = processRunner{root: *root, month: *month, noLLM: *noLLM}
	case "learn":
		runner = learnRunner{root: *root, originalCSV: *originalCSV, correctedCSV: *correctedCSV}
	case "enrich":
		runner = enrichRunner{root: *root, month: *month, provider: *provider}
	default:
		fmt.Printf("Unknown task %q\n", task)
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if *cronSpec == "" {
		return
	}

	c := cron.New()
	c.AddFunc(*cronSpec, func() {
		if err := run(); err != nil {
			klog.Errorf("Scheduled run failed: %v", err)
		}
	})

	c.Start()

	select {}
}

func run() error {
	fmt.Println(time.Now().Format(time.RFC850))
	return runner.Run()
}

type processRunner struct {
	root  string
	month string
	noLLM bool
}

func (r processRunner) Run() error {
	cfg := config.CurrentConfig()

	categories, err := config.LoadCategories(r.root)
	if err != nil {
		return err
	}

	rules, err := categorizer.LoadRules(r.root)
	if err != nil {
		return err
	}
	for _, problem := range categorizer.ValidateRules(rules, categories) {
		klog.Warningf("Invalid rule: %s", problem)
	}

	var adapter llm.Adapter = llm.NullAdapter{}
	if !r.noLLM {
		adapter = llm.New(config.CurrentLLMConfig(), config.CurrentLLMSecrets())
	}

	result := pipeline.Run(context.Background(), r.month, cfg, categories, rules, r.root, adapter)

	outputDir := cfg.OutputDir
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(r.root, outputDir)
	}
	if _, err := export.Write(result.Transactions, outputDir, r.month); err != nil {
		return err
	}

	export.PrintSummary(result, r.month)
	return nil
}

type learnRunner struct {
	root         string
	originalCSV  string
	correctedCSV string
}

func (r learnRunner) Run() error {
	if r.originalCSV == "" || r.correctedCSV == "" {
		return fmt.Errorf("learn requires -original and -corrected CSV paths")
	}

	rules, err := categorizer.LoadRules(r.root)
	if err != nil {
		return err
	}

	result, err := categorizer.Learn(r.originalCSV, r.correctedCSV, rules)
	if err != nil {
		return err
	}

	if err := categorizer.SaveLearnedRules(r.root, result.Rules); err != nil {
		return err
	}

	fmt.Printf("Learned rules: %d added, %d updated, %d skipped (user rule exists)\n",
		result.Added, result.Updated, result.Skipped)
	return nil
}

type enrichRunner struct {
	root     string
	month    string
	provider string
}

func (r enrichRunner) Run() error {
	if r.provider == "" {
		return fmt.Errorf("enrich requires -provider")
	}

	cfg := config.CurrentConfig()

	registry := enrichment.NewRegistry(r.root)
	provider, err := registry.Get(r.provider)
	if err != nil {
		return err
	}

	outputDir := cfg.OutputDir
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(r.root, outputDir)
	}
	txns, err := enrichment.LoadMonthTransactions(outputDir, r.month)
	if err != nil {
		return err
	}

	cacheDir := cfg.EnrichmentCacheDir
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(r.root, cacheDir)
	}

	result, err := provider.Enrich(context.Background(), r.month, r.root, cacheDir, txns)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d orders found, %d matched, %d unmatched, %d cache files written\n",
		provider.Name(), result.OrdersFound, result.OrdersMatched, result.OrdersUnmatched, result.CacheFilesWritten)
	for _, detail := range result.UnmatchedDetails {
		fmt.Printf("  unmatched: %s\n", detail)
	}
	for _, w := range result.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	for _, e := range result.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("enrichment completed with %d error(s)", len(result.Errors))
	}
	return nil
}
