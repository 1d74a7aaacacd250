package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cloudwright/core/export"
)

var (
	exportFormat string
	exportOut    string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export [spec file]",
	Short: "Render a spec as Terraform, CloudFormation, or Mermaid",
	Long: `Render a spec for other tools: a Terraform configuration skeleton,
a CloudFormation template (AWS specs), or a Mermaid diagram.

Examples:
  cloudwright export arch.yaml --format terraform > main.tf
  cloudwright export arch.yaml --format cloudformation --out stack.json
  cloudwright export arch.yaml --format mermaid`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", string(export.FormatTerraform),
		fmt.Sprintf("output format (%s)", strings.Join(formatNames(), ", ")))
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "write the rendering to a file instead of stdout")
}

func formatNames() []string {
	formats := export.KnownFormats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return names
}

func runExport(cmd *cobra.Command, args []string) error {
	s, err := loadSpec(args[0])
	if err != nil {
		return err
	}

	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	out, err := export.New(reg).Render(s, export.Format(exportFormat))
	if err != nil {
		return err
	}
	return emitBytes([]byte(out), exportOut)
}
