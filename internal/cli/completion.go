package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

var completionShells = map[string]func(root *cobra.Command, w io.Writer) error{
	"bash":       func(r *cobra.Command, w io.Writer) error { return r.GenBashCompletionV2(w, true) },
	"zsh":        (*cobra.Command).GenZshCompletion,
	"fish":       func(r *cobra.Command, w io.Writer) error { return r.GenFishCompletion(w, true) },
	"powershell": (*cobra.Command).GenPowerShellCompletionWithDesc,
}

func (c *CLI) completionCommand() *cobra.Command {
	shells := make([]string, 0, len(completionShells))
	for name := range completionShells {
		shells = append(shells, name)
	}
	slices.Sort(shells)

	return &cobra.Command{
		Use:   fmt.Sprintf("completion {%s}", strings.Join(shells, "|")),
		Short: "Print a shell completion script",
		Long: fmt.Sprintf(`Print a completion script for the given shell to stdout.

  $ source <(%[1]s completion bash)
  $ %[1]s completion zsh > "${fpath[1]}/_%[1]s"
  $ %[1]s completion fish > ~/.config/fish/completions/%[1]s.fish
  PS> %[1]s completion powershell | Out-String | Invoke-Expression
`, appName),
		DisableFlagsInUseLine: true,
		ValidArgs:             shells,
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return completionShells[args[0]](cmd.Root(), stdout)
		},
	}
}
