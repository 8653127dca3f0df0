// Package completion provides shell completion generation commands.
package completion

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCommand returns the completion command.
func NewCommand(rootCmd *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completions",
		Long: `Generate shell completion scripts for licensekit.

Install instructions:
  Bash:       licensekit completion bash > /etc/bash_completion.d/licensekit
  Zsh:        licensekit completion zsh > ~/.zsh/completions/_licensekit
  Fish:       licensekit completion fish > ~/.config/fish/completions/licensekit.fish
  PowerShell: licensekit completion powershell >> $PROFILE`,
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args:      cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletionV2(out, true)
			case "zsh":
				return rootCmd.GenZshCompletion(out)
			case "fish":
				return rootCmd.GenFishCompletion(out, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s (supported: bash, zsh, fish, powershell)", args[0])
			}
		},
	}
}
