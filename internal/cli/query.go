package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tdnf-go/tdnfcore/pkg/metadata"
	"github.com/tdnf-go/tdnfcore/pkg/query"
	"github.com/tdnf-go/tdnfcore/pkg/resolver"
)

// fetchAllPackages refreshes every enabled repo's metadata and returns
// the union of their primary.xml package entries, the data set search
// and provides both query over.
func fetchAllPackages(ctx context.Context) ([]metadata.PackageEntry, error) {
	var all []metadata.PackageEntry
	for _, d := range session.Registry.Enabled() {
		pipeline := &metadata.Pipeline{
			Layout:   session.CacheFor(d),
			Client:   session.Client,
			BaseURLs: d.BaseURLs,
			Username: d.Username,
			Password: d.Password,
		}
		fetched, err := pipeline.Refresh(ctx, d.ID, metadata.RefreshOptions{KeepCache: session.Config.KeepCache})
		if err != nil {
			if d.SkipIfUnavailable {
				continue
			}
			return nil, fmt.Errorf("refreshing %s: %w", d.ID, err)
		}
		all = append(all, fetched.Packages...)
	}
	return all, nil
}

var listScopeFlag string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List packages (installed, available, updates, extras, obsoletes, or all)",
	RunE: func(cmd *cobra.Command, args []string) error {
		scope := parseListScope(listScopeFlag)
		rows := query.List(session.Pool, nil, scope)
		for _, r := range rows {
			fmt.Printf("%s\t%s\n", r.NEVRA, r.RepoID)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listScopeFlag, "scope", "all", "installed|available|updates|extras|obsoletes|all")
}

func parseListScope(s string) query.ListScope {
	switch s {
	case "installed":
		return query.ListInstalled
	case "available":
		return query.ListAvailable
	case "updates":
		return query.ListUpdates
	case "extras":
		return query.ListExtras
	case "obsoletes":
		return query.ListObsoletes
	default:
		return query.ListAll
	}
}

var searchCmd = &cobra.Command{
	Use:   "search [term...]",
	Short: "Search package names and summaries",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		packages, err := fetchAllPackages(context.Background())
		if err != nil {
			return err
		}
		for _, e := range query.Search(packages, args) {
			fmt.Printf("%s : %s\n", e.NEVRA, e.Summary)
		}
		return nil
	},
}

var providesCmd = &cobra.Command{
	Use:   "provides [capability-or-path]",
	Short: "Find packages providing a capability or owning a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		packages, err := fetchAllPackages(context.Background())
		if err != nil {
			return err
		}
		available := make([]resolver.Solvable, len(packages))
		for i, e := range packages {
			available[i] = resolver.Solvable{NEVRA: e.NEVRA, Provides: e.Provides}
		}
		for _, s := range query.Provides(available, args[0], nil) {
			fmt.Println(s.NEVRA)
		}
		return nil
	},
}

var repolistCmd = &cobra.Command{
	Use:   "repolist",
	Short: "List configured repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows := query.Repolist(session.Registry, query.RepoScopeEnabled)
		for _, r := range rows {
			fmt.Printf("%s\t%s\n", r.ID, r.Name)
		}
		return nil
	},
}
