package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cloudwright/core/engine"
	"cloudwright/core/spec"
)

var (
	estimateTier       string
	estimateFrameworks []string
	estimateCompare    []string
	estimateSkipHarden bool
)

// estimateCmd represents the estimate command
var estimateCmd = &cobra.Command{
	Use:   "estimate [spec file]",
	Short: "Run the full pipeline over a spec",
	Long: `Harden, price, validate, compare, and grade an architecture spec.

The spec file may be YAML or JSON; "-" reads from stdin.

Examples:
  cloudwright estimate arch.yaml
  cloudwright estimate arch.yaml --tier spot
  cloudwright estimate arch.yaml --framework hipaa --target gcp
  cat arch.json | cloudwright estimate -`,
	Args: cobra.ExactArgs(1),
	RunE: runEstimate,
}

func init() {
	estimateCmd.Flags().StringVarP(&estimateTier, "tier", "t", "", "pricing tier (on_demand, reserved_1yr, reserved_3yr, spot)")
	estimateCmd.Flags().StringSliceVarP(&estimateFrameworks, "framework", "f", nil, "compliance frameworks to validate against")
	estimateCmd.Flags().StringSliceVar(&estimateCompare, "target", nil, "providers to compare against")
	estimateCmd.Flags().BoolVar(&estimateSkipHarden, "skip-harden", false, "price the spec as written")
}

func runEstimate(cmd *cobra.Command, args []string) error {
	s, err := loadSpec(args[0])
	if err != nil {
		return err
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	targets := make([]spec.Provider, len(estimateCompare))
	for i, t := range estimateCompare {
		targets[i] = spec.Provider(t)
	}

	result, err := eng.Process(context.Background(), s, engine.Options{
		Frameworks:     estimateFrameworks,
		CompareTargets: targets,
		PricingTier:    spec.PricingTier(estimateTier),
		SkipHarden:     estimateSkipHarden,
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(result)
	}
	printEstimate(result)
	return nil
}

func printEstimate(result *engine.Result) {
	est := result.Spec.CostEstimate

	fmt.Println(boxTop)
	fmt.Println(boxTitle("COST ESTIMATE"))
	fmt.Println(boxSep)
	for _, line := range est.Breakdown {
		label := fmt.Sprintf("%s (%s)", line.ComponentID, line.Service)
		fmt.Println(boxRow(label, fmt.Sprintf("$%.2f/month", line.Monthly)))
		if line.Notes != "" {
			fmt.Println(boxNote(line.Notes))
		}
	}
	if est.DataTransferMonthly > 0 {
		fmt.Println(boxRow("data transfer", fmt.Sprintf("$%.2f/month", est.DataTransferMonthly)))
	}
	fmt.Println(boxSep)
	fmt.Println(boxRow("TOTAL MONTHLY ESTIMATE", fmt.Sprintf("$%.2f %s", est.MonthlyTotal, est.Currency)))
	fmt.Println(boxBot)

	if result.Scorecard != nil {
		fmt.Printf("\nScore: %.1f (%s)\n", result.Scorecard.Total, result.Scorecard.Grade)
	}
	for _, v := range result.Validations {
		fmt.Printf("%s %s: %.0f%%\n", checkMark(v.Passed), v.Framework, v.Score*100)
	}
	if len(result.Alternatives) > 0 {
		fmt.Println()
		printAlternatives(est.MonthlyTotal, result.Alternatives)
	}
}

func printAlternatives(baseline float64, alts []spec.Alternative) {
	fmt.Printf("%-10s %14s %14s\n", "PROVIDER", "MONTHLY", "DELTA")
	for _, alt := range alts {
		fmt.Printf("%-10s %14s %+14.2f\n", alt.Provider,
			fmt.Sprintf("$%.2f", alt.MonthlyTotal), alt.MonthlyTotal-baseline)
	}
	for _, alt := range alts {
		if len(alt.KeyDifferences) == 0 {
			continue
		}
		fmt.Printf("\n%s:\n", alt.Provider)
		for _, d := range alt.KeyDifferences {
			fmt.Printf("  - %s\n", d)
		}
	}
}
