// Package cli is the cobra command skeleton spec §1 scopes argument
// parsing out of: it wires each subcommand to one resolver.Intent and
// prints the resulting plan, leaving flag-by-flag argument semantics
// (spec §1 Non-goals: "argv parsing semantics") to whatever frontend
// embeds this package.
//
// Grounded on the teacher's internal/cli (rootCmd + cobra.OnInitialize
// session setup, one file per subcommand, PersistentFlags for
// cross-cutting options) and github.com/spf13/cobra, the teacher's CLI
// dependency.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tdnf-go/tdnfcore"
)

var (
	installRoot string
	configPath  string
	reposDir    string
	assumeYes   bool
	cacheOnly   bool
	noGPGCheck  bool
	session     *tdnfcore.Session
)

var rootCmd = &cobra.Command{
	Use:   "tdnf",
	Short: "Tiny DNF: an RPM package manager client",
	Long: `tdnf manages RPM packages against configured repositories:
installing, upgrading, downgrading, and removing packages, and
recording every transaction to a history database that supports
rollback and undo/redo.`,
	Version:           "0.1.0",
	PersistentPreRunE: openSession,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if session != nil {
			session.Close()
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&installRoot, "installroot", "/", "root to install packages into")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/tdnf/tdnf.conf", "path to tdnf.conf")
	rootCmd.PersistentFlags().StringVar(&reposDir, "reposdir", "", "path to *.repo directory, overriding tdnf.conf")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "assumeyes", "y", false, "answer yes to every prompt")
	rootCmd.PersistentFlags().BoolVar(&cacheOnly, "cacheonly", false, "operate only on the local cache")
	rootCmd.PersistentFlags().BoolVar(&noGPGCheck, "nogpgcheck", false, "disable GPG signature checking")

	rootCmd.AddCommand(installCmd, eraseCmd, upgradeCmd, downgradeCmd, reinstallCmd, distroSyncCmd)
	rootCmd.AddCommand(listCmd, searchCmd, providesCmd, repolistCmd)
	rootCmd.AddCommand(historyCmd)
}

func openSession(cmd *cobra.Command, args []string) error {
	// version/help carry no subcommand-specific side effects and don't
	// need a session.
	if cmd.Name() == "help" || cmd.Name() == "tdnf" {
		return nil
	}
	s, err := tdnfcore.New(context.Background(), tdnfcore.Options{
		InstallRoot: installRoot,
		ConfigPath:  configPath,
		ReposDir:    reposDir,
	})
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	session = s
	return nil
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
