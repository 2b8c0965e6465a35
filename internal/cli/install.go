package cli

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/tdnf-go/tdnfcore/internal/rpmver"
	"github.com/tdnf-go/tdnfcore/pkg/acquire"
	"github.com/tdnf-go/tdnfcore/pkg/resolver"
	"github.com/tdnf-go/tdnfcore/pkg/txn"
	"github.com/tdnf-go/tdnfcore/pkg/txn/rpmtxn"
)

var installCmd = &cobra.Command{
	Use:   "install [package...]",
	Short: "Install one or more packages",
	Args:  cobra.MinimumNArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runIntent(resolver.IntentInstall, args) },
}

var eraseCmd = &cobra.Command{
	Use:     "erase [package...]",
	Aliases: []string{"remove"},
	Short:   "Remove one or more packages",
	Args:    cobra.MinimumNArgs(1),
	RunE:    func(cmd *cobra.Command, args []string) error { return runIntent(resolver.IntentErase, args) },
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [package...]",
	Short: "Upgrade packages, or every installed package with no arguments",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return runIntent(resolver.IntentUpgradeAll, nil)
		}
		return runIntent(resolver.IntentUpgrade, args)
	},
}

var downgradeCmd = &cobra.Command{
	Use:   "downgrade [package...]",
	Short: "Downgrade packages to the highest available version below the installed one",
	Args:  cobra.MinimumNArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runIntent(resolver.IntentDowngrade, args) },
}

var reinstallCmd = &cobra.Command{
	Use:   "reinstall [package...]",
	Short: "Reinstall packages at their currently-installed version",
	Args:  cobra.MinimumNArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runIntent(resolver.IntentReinstall, args) },
}

var distroSyncCmd = &cobra.Command{
	Use:   "distro-sync",
	Short: "Synchronize installed packages to the versions the configured repos currently carry",
	RunE:  func(cmd *cobra.Command, args []string) error { return runIntent(resolver.IntentDistroSync, nil) },
}

func runIntent(kind resolver.IntentKind, names []string) error {
	driver := resolver.New(session.Pool, resolver.Config{}, session.Logger)
	jobs, err := driver.BuildJobs(resolver.Intent{Kind: kind, Names: names})
	if err != nil {
		return err
	}
	plan, problems, err := driver.Resolve(jobs, resolver.SkipMask{}, nil)
	if err != nil {
		return err
	}
	for _, p := range problems {
		fmt.Printf("warning: %s\n", p.Message)
	}
	printPlan(plan)
	if !plan.NeedAction() {
		fmt.Println("Nothing to do.")
		return nil
	}
	if !assumeYes {
		fmt.Print("Is this ok [y/N]: ")
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			return nil
		}
	}
	return executePlan(plan, names)
}

func printPlan(plan *resolver.Plan) {
	print := func(label string, list []resolver.Solvable) {
		for _, s := range list {
			fmt.Printf(" %-12s %s\n", label, s.NEVRA)
		}
	}
	print("Installing", plan.ToInstall)
	print("Upgrading", plan.ToUpgrade)
	print("Downgrading", plan.ToDowngrade)
	print("Removing", plan.ToRemove)
	print("Reinstalling", plan.ToReinstall)
	print("Unneeded", plan.Unneeded)
}

func executePlan(plan *resolver.Plan, userNames []string) error {
	keyrings := map[string]*acquire.Keyring{}
	baseURLs := func(repoID string) []string {
		d := session.Registry.Get(repoID)
		if d == nil {
			return nil
		}
		return d.BaseURLs
	}
	destDir := func(repoID string) string {
		d := session.Registry.Get(repoID)
		if d == nil {
			return ""
		}
		return session.CacheFor(d).RPMsDir()
	}

	exec := &txn.Executor{
		Client:     session.Client,
		Transactor: rpmtxn.New(),
		History:    session.History,
		Keyrings:   keyrings,
		KeepCache:  session.Config.KeepCache,
		Logger:     session.Logger,
	}
	preState := installedNEVRAs()
	postState := txn.ComputePostState(preState, plan)
	opts := txn.RunOptions{
		Cmdline:      "tdnf",
		VerifyFlags:  txn.ToVerifyFlags(noGPGCheck, false, false),
		NoGPGCheck:   noGPGCheck,
		BaseURLs:     baseURLs,
		DestDir:      destDir,
		CookieBefore: cookieFor(preState),
		CookieAfter:  cookieFor(postState),
		Timestamp:    time.Now().Unix(),
	}
	return exec.Run(context.Background(), plan, preState, opts)
}

func installedNEVRAs() []rpmver.NEVRA {
	installed := session.Pool.Installed()
	out := make([]rpmver.NEVRA, len(installed))
	for i, s := range installed {
		out[i] = s.NEVRA
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// cookieFor derives a stand-in for the RPM database cookie, spec §4.7,
// from the installed-set identity: the real cookie comes from librpm's
// rpmdb, which this module does not drive (see pkg/txn/rpmtxn).
func cookieFor(state []rpmver.NEVRA) string {
	h := sha256.New()
	for _, n := range state {
		h.Write([]byte(n.String()))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
