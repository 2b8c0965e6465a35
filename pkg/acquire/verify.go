// Verification pipeline applied to every downloaded .rpm, spec §4.4
// point "Verification pipeline": size, then digest, then GPG signature.
// Grounded on the teacher's pkg/dnf.verifyFileHash (sha256-only) and
// extractRPMPackage's use of github.com/sassoftware/go-rpmutils, here
// widened to the multi-algorithm digest and GPG-keyring checks the spec
// requires, plus github.com/ProtonMail/go-crypto/openpgp for the
// signature check itself.
package acquire

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/sassoftware/go-rpmutils"
)

// VerifyError names which pipeline step failed, so callers can map it to
// spec §7's "checksum mismatch" / "size mismatch" messages.
type VerifyError struct {
	Step string // "size", "digest", "gpg"
	Err  error
}

func (e *VerifyError) Error() string { return fmt.Sprintf("acquire: %s mismatch: %v", e.Step, e.Err) }
func (e *VerifyError) Unwrap() error { return e.Err }

// VerifySize checks the downloaded file's size against the declared
// size, deleting it on mismatch. Step 1 of the pipeline.
func VerifySize(path string, declared int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() != declared {
		os.Remove(path)
		return &VerifyError{Step: "size", Err: fmt.Errorf("got %d want %d", info.Size(), declared)}
	}
	return nil
}

func newHash(checksumType string) (hash.Hash, error) {
	switch strings.ToLower(checksumType) {
	case "sha256":
		return sha256.New(), nil
	case "sha1", "sha":
		return sha1.New(), nil
	case "sha512":
		return sha512.New(), nil
	case "md5":
		return md5.New(), nil
	default:
		return nil, fmt.Errorf("acquire: unsupported checksum type %q", checksumType)
	}
}

// VerifyDigest checks path's content digest against declared (hex),
// deleting the file on mismatch. Step 2 of the pipeline.
func VerifyDigest(path, checksumType, declared string) error {
	h, err := newHash(checksumType)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, declared) {
		os.Remove(path)
		return &VerifyError{Step: "digest", Err: fmt.Errorf("got %s want %s", got, declared)}
	}
	return nil
}

// Keyring holds the imported GPG public keys for one repo.
type Keyring struct {
	entities openpgp.EntityList
}

// NewKeyring returns an empty keyring.
func NewKeyring() *Keyring { return &Keyring{} }

// ImportKey parses an armored or binary public key and adds it.
func (k *Keyring) ImportKey(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(string(data)))
	if err != nil {
		entities, err = openpgp.ReadKeyRing(strings.NewReader(string(data)))
		if err != nil {
			return fmt.Errorf("acquire: parse gpg key: %w", err)
		}
	}
	k.entities = append(k.entities, entities...)
	return nil
}

// Empty reports whether no keys have been imported yet.
func (k *Keyring) Empty() bool { return len(k.entities) == 0 }

// VerifyGPG checks path's embedded RPM signature against the keyring.
// Step 3 of the pipeline. A package with no signature and an empty
// keyring is rejected unless gpgcheck is off, which callers enforce by
// not calling VerifyGPG at all in that case.
func VerifyGPG(path string, keyring *Keyring) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, sigs, err := rpmutils.Verify(f, keyring.entities)
	if err != nil {
		return &VerifyError{Step: "gpg", Err: err}
	}
	if len(sigs) == 0 {
		return &VerifyError{Step: "gpg", Err: fmt.Errorf("no signature verified by any configured key")}
	}
	return nil
}

// KeyCachePath derives the on-disk path a downloaded gpgkey URL is
// stored at within keysDir, with a containment check preventing the URL
// from escaping keysDir (spec §4.4 "path containment", §8 invariant 5).
func KeyCachePath(keysDir, keyURL string) (string, error) {
	base := filepath.Base(keyURL)
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "key"
	}
	full := filepath.Join(keysDir, base)
	rel, err := filepath.Rel(keysDir, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("acquire: key path %q escapes keys directory", keyURL)
	}
	return full, nil
}
