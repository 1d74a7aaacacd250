package cmd

import (
	"github.com/spf13/cobra"

	"cloudwright/adapters/terraform"
)

var importOut string

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import [terraform dir]",
	Short: "Build a spec from a Terraform configuration",
	Long: `Read every .tf file under a directory and assemble a spec: one
component per cloud resource, connections from cross-resource
references, tiers from the service registry.

Examples:
  cloudwright import ./infrastructure
  cloudwright import ./infra --out arch.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importOut, "out", "o", "", "write the imported spec to a file instead of stdout")
}

func runImport(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	s, err := terraform.New(reg).Import(args[0])
	if err != nil {
		return err
	}
	return emitSpec(s, importOut)
}
