// Download-and-verify stage, spec §4.6: "every solvable the plan
// resolves to install/upgrade/downgrade/reinstall is downloaded to the
// rpms cache dir and passed through the same verification pipeline as
// metadata: size, digest, and (unless nogpgcheck) GPG." The GPG check
// runs only for repos with a non-empty keyring in Executor.Keyrings; a
// package from a repo with no imported keys is accepted without a
// signature check, and no keys are fetched here.
package txn

import (
	"context"
	"fmt"

	"github.com/tdnf-go/tdnfcore/pkg/acquire"
	"github.com/tdnf-go/tdnfcore/pkg/resolver"
)

// downloadAndVerify fetches every mutation-list entry that needs a
// package payload (install/upgrade/downgrade/reinstall — erases need no
// download) and appends it to e.downloaded.
func (e *Executor) downloadAndVerify(ctx context.Context, plan *resolver.Plan, opts RunOptions) error {
	var toFetch []DownloadedPackage
	add := func(list []resolver.Solvable, upgrade bool) {
		for _, s := range list {
			toFetch = append(toFetch, DownloadedPackage{Solvable: s, Upgrade: upgrade})
		}
	}
	add(plan.ToInstall, false)
	add(plan.ToUpgrade, true)
	add(plan.ToDowngrade, true)
	add(plan.ToReinstall, true)

	for i := range toFetch {
		s := toFetch[i].Solvable
		if s.RepoID == "@cmdline" {
			// already a local path staged by the caller; Location holds it.
			toFetch[i].Path = s.Location
			continue
		}
		destPath, err := destPathFor(opts.DestDir, s)
		if err != nil {
			return err
		}
		if !acquire.Exists(destPath) {
			baseURLs := opts.BaseURLs(s.RepoID)
			resolved, err := acquire.ResolveLocation(ctx, baseURLs, s.Location, nil)
			if err != nil {
				return fmt.Errorf("txn: resolve location for %s: %w", s.NEVRA, err)
			}
			if err := e.Client.Download(ctx, resolved, destPath, opts.Username, opts.Password); err != nil {
				return fmt.Errorf("txn: download %s: %w", s.NEVRA, err)
			}
		}

		if s.DownloadSize > 0 {
			if err := acquire.VerifySize(destPath, s.DownloadSize); err != nil {
				return fmt.Errorf("txn: verify size %s: %w", s.NEVRA, err)
			}
		}
		if opts.VerifyFlags.CheckDigest && s.Checksum != "" {
			if err := acquire.VerifyDigest(destPath, s.ChecksumType, s.Checksum); err != nil {
				return fmt.Errorf("txn: verify digest %s: %w", s.NEVRA, err)
			}
		}
		if opts.VerifyFlags.CheckSignature && !opts.NoGPGCheck {
			keyring := e.Keyrings[s.RepoID]
			if keyring != nil && !keyring.Empty() {
				if err := acquire.VerifyGPG(destPath, keyring); err != nil {
					return fmt.Errorf("txn: verify signature %s: %w", s.NEVRA, err)
				}
			}
		}

		toFetch[i].Path = destPath
	}

	e.downloaded = toFetch
	return nil
}
