package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"cloudwright/core/spec"
)

var validateFrameworks []string

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate [spec file]",
	Short: "Check a spec against compliance frameworks",
	Long: `Run compliance framework checks over a spec as written.

Without --framework the spec's own compliance constraints are used.
The command fails when any framework fails, so it slots into CI.

Examples:
  cloudwright validate arch.yaml --framework hipaa
  cloudwright validate arch.yaml -f pci_dss -f soc2`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringSliceVarP(&validateFrameworks, "framework", "f", nil, "compliance frameworks to validate against")
}

func runValidate(cmd *cobra.Command, args []string) error {
	s, err := loadSpec(args[0])
	if err != nil {
		return err
	}

	frameworks := validateFrameworks
	if len(frameworks) == 0 && s.Constraints != nil {
		frameworks = s.Constraints.Compliance
	}
	if len(frameworks) == 0 {
		return fmt.Errorf("no frameworks given and the spec declares no compliance constraints")
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	results := eng.Validate(s, frameworks)
	if jsonOut {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		printValidations(results)
	}

	for _, r := range results {
		if !r.Passed {
			return fmt.Errorf("validation failed")
		}
	}
	return nil
}

func printValidations(results []spec.ValidationResult) {
	for i, r := range results {
		if i > 0 {
			fmt.Println()
		}
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		fmt.Printf("%s: %s (%.0f%%)\n", r.Framework, status, r.Score*100)
		for _, c := range r.Checks {
			fmt.Printf("  %s %s [%s]", checkMark(c.Passed), c.Name, c.Severity)
			if !c.Passed && c.Detail != "" {
				fmt.Printf(" %s", c.Detail)
			}
			fmt.Println()
			if !c.Passed && c.Recommendation != "" {
				fmt.Printf("    → %s\n", c.Recommendation)
			}
		}
	}
}
