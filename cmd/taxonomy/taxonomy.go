// Package taxonomy provides the "licensekit taxonomy" commands.
package taxonomy

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/klytics/licensekit/internal/app"
	"github.com/klytics/licensekit/internal/output"
	"github.com/klytics/licensekit/internal/taxonomy"
)

// NewCommand returns the taxonomy command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Inspect the action classification rules",
		Long: `Print or check the taxonomy that classifies actions, logins and titles.
A taxonomy file only needs the keys it changes; everything else keeps the
built-in defaults.`,
	}
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newInitCmd())
	return cmd
}

func newShowCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective taxonomy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g := app.GlobalsFrom(cmd)
			cfg, err := app.Setup(g)
			if err != nil {
				return err
			}
			tax, err := app.LoadTaxonomy(cfg, file, taxonomy.Overrides{})
			if err != nil {
				return output.UserError(err)
			}
			doc := tax.Document()
			if g.JSON {
				return output.PrintJSON("taxonomy show", doc)
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(doc)
		},
	}
	cmd.Flags().StringVar(&file, "taxonomy", "", "Taxonomy YAML file (overrides taxonomy.file)")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a taxonomy file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := taxonomy.Load(args[0]); err != nil {
				return output.UserError(err)
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return output.PrintJSON("taxonomy validate", map[string]any{"file": args[0], "valid": true})
			}
			color.New(color.FgGreen).Printf("%s is valid\n", args[0])
			return nil
		},
	}
}

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write the built-in defaults as a taxonomy file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := Example()
			if err != nil {
				return output.SystemError(err)
			}
			if len(args) == 0 {
				fmt.Print(body)
				return nil
			}
			if _, err := os.Stat(args[0]); err == nil && !force {
				return output.UserError(fmt.Errorf("%s already exists (use --force to overwrite)", args[0]))
			}
			if err := os.WriteFile(args[0], []byte(body), 0o644); err != nil {
				return output.SystemError(err)
			}
			fmt.Printf("Taxonomy written to %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

// Example renders the built-in defaults as a starting taxonomy file.
func Example() (string, error) {
	data, err := yaml.Marshal(taxonomy.DefaultDocument())
	if err != nil {
		return "", fmt.Errorf("could not render taxonomy: %w", err)
	}
	return string(data), nil
}
