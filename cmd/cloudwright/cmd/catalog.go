package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cloudwright/core/spec"
	"cloudwright/db/catalog"
	"cloudwright/db/refresh"
)

const summaryRounding = 10 * time.Millisecond

// catalogCmd groups the pricing catalog commands
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and maintain the pricing catalog",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var (
	searchQueryFlag string
	searchProvider  string
	searchVCPUs     int
	searchMemoryGB  float64
	searchMaxPrice  float64
	searchLimit     int
)

var catalogSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search instance types",
	Long: `Find instance types by name fragment and resource floor, cheapest
first.

Examples:
  cloudwright catalog search -q m5
  cloudwright catalog search --vcpus 8 --memory 32 --provider gcp
  cloudwright catalog search --max-price 0.35`,
	RunE: runCatalogSearch,
}

func init() {
	catalogSearchCmd.Flags().StringVarP(&searchQueryFlag, "query", "q", "", "name or family fragment")
	catalogSearchCmd.Flags().StringVarP(&searchProvider, "provider", "p", "", "limit to one provider")
	catalogSearchCmd.Flags().IntVar(&searchVCPUs, "vcpus", 0, "minimum vCPUs")
	catalogSearchCmd.Flags().Float64Var(&searchMemoryGB, "memory", 0, "minimum memory in GB")
	catalogSearchCmd.Flags().Float64Var(&searchMaxPrice, "max-price", 0, "maximum on-demand price per hour")
	catalogSearchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum rows to return")

	catalogCmd.AddCommand(catalogSearchCmd)
	catalogCmd.AddCommand(catalogCompareCmd)
	catalogCmd.AddCommand(catalogStatsCmd)
	catalogCmd.AddCommand(catalogRefreshCmd)
	catalogCmd.AddCommand(catalogSyncCmd)
}

func runCatalogSearch(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	rows, err := eng.Catalog().Search(context.Background(), catalog.SearchQuery{
		Query:           searchQueryFlag,
		Provider:        searchProvider,
		MinVCPUs:        searchVCPUs,
		MinMemoryGB:     searchMemoryGB,
		MaxPricePerHour: searchMaxPrice,
		Limit:           searchLimit,
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(rows)
	}
	printInstanceRows(rows)
	return nil
}

var catalogCompareCmd = &cobra.Command{
	Use:   "compare [name...]",
	Short: "Compare instance types side by side",
	Long: `Look up each named instance type. Bare names try aws, gcp, then
azure; qualified names (gcp:n2-standard-4) match one provider.

Examples:
  cloudwright catalog compare m5.large n2-standard-2 D2s_v3`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCatalogCompare,
}

func runCatalogCompare(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	rows, err := eng.Catalog().Compare(context.Background(), args...)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("none of the named instance types are in the catalog")
	}

	if jsonOut {
		return printJSON(rows)
	}
	printInstanceRows(rows)
	return nil
}

func printInstanceRows(rows []catalog.InstanceRow) {
	if len(rows) == 0 {
		fmt.Println("no matches")
		return
	}
	fmt.Printf("%-9s %-24s %6s %10s %10s\n", "PROVIDER", "NAME", "VCPUS", "MEMORY_GB", "$/HOUR")
	for _, row := range rows {
		price := "-"
		if row.PricePerHour != nil {
			price = fmt.Sprintf("%.4f", *row.PricePerHour)
		}
		fmt.Printf("%-9s %-24s %6d %10.1f %10s\n",
			row.Provider, truncate(row.Name, 24), row.VCPUs, row.MemoryGB, price)
	}
}

var catalogStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog row counts",
	RunE:  runCatalogStats,
}

func runCatalogStats(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	stats, err := eng.Catalog().Stats(context.Background())
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(stats)
	}
	fmt.Printf("%-21s %8d\n", "providers", stats.Providers)
	fmt.Printf("%-21s %8d\n", "regions", stats.Regions)
	fmt.Printf("%-21s %8d\n", "instance types", stats.InstanceTypes)
	fmt.Printf("%-21s %8d\n", "prices", stats.Prices)
	fmt.Printf("%-21s %8d\n", "managed services", stats.ManagedServices)
	fmt.Printf("%-21s %8d\n", "service definitions", stats.ServiceDefs)
	fmt.Printf("%-21s %8d\n", "service equivalences", stats.ServiceEquivalences)
	fmt.Printf("%-21s %8d\n", "equivalences", stats.Equivalences)
	return nil
}

var (
	refreshProviders []string
	refreshCategory  string
	refreshRegion    string
	refreshDryRun    bool
)

var catalogRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Pull live pricing through the vendor adapters",
	Long: `Fetch current prices from the vendor pricing endpoints and write
them to the catalog. GCP needs an API key in the environment
(GCP_API_KEY by default); AWS and Azure endpoints are unauthenticated.

Examples:
  cloudwright catalog refresh
  cloudwright catalog refresh --provider gcp --region us-central1
  cloudwright catalog refresh --dry-run`,
	RunE: runCatalogRefresh,
}

func init() {
	catalogRefreshCmd.Flags().StringSliceVarP(&refreshProviders, "provider", "p", nil, "providers to refresh (default all)")
	catalogRefreshCmd.Flags().StringVar(&refreshCategory, "category", "", "narrow the refresh to one service category")
	catalogRefreshCmd.Flags().StringVar(&refreshRegion, "region", "", "region to fetch prices for")
	catalogRefreshCmd.Flags().BoolVar(&refreshDryRun, "dry-run", false, "fetch without writing to the catalog")
}

func runCatalogRefresh(cmd *cobra.Command, args []string) error {
	providers := make([]spec.Provider, len(refreshProviders))
	for i, p := range refreshProviders {
		provider := spec.Provider(p)
		if !spec.ValidProvider(provider) {
			return fmt.Errorf("unknown provider %q", p)
		}
		providers[i] = provider
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	summary := eng.Refresh(context.Background(), refresh.Options{
		Providers: providers,
		Category:  refreshCategory,
		Region:    refreshRegion,
		DryRun:    refreshDryRun,
	})

	if jsonOut {
		return printJSON(summary)
	}

	for _, provider := range spec.KnownProviders() {
		result, ok := summary.Results[provider]
		if !ok {
			continue
		}
		suffix := ""
		if result.DryRun {
			suffix = " (dry run)"
		}
		fmt.Printf("%-7s %4d instances, %4d managed services%s\n",
			provider, result.InstancesFetched, result.ManagedServicesFetched, suffix)
		for _, e := range result.Errors {
			fmt.Printf("        error: %s\n", e)
		}
	}
	fmt.Printf("run %s finished in %s\n", summary.RunID, summary.Duration.Round(summaryRounding))

	if n := summary.TotalErrors(); n > 0 {
		return fmt.Errorf("%d provider errors during refresh", n)
	}
	return nil
}

var catalogSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror the service registry into the catalog",
	RunE:  runCatalogSync,
}

func runCatalogSync(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := context.Background()
	if err := eng.SyncCatalog(ctx); err != nil {
		return err
	}
	stats, err := eng.Catalog().Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("synced %d service definitions, %d equivalence rows\n",
		stats.ServiceDefs, stats.ServiceEquivalences)
	return nil
}
