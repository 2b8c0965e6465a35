// primary.xml parsing, grounded on the teacher's pkg/dnf.ParsePrimary.
package metadata

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/tdnf-go/tdnfcore/internal/rpmver"
)

// PackageEntry is one <package> from primary.xml.
type PackageEntry struct {
	NEVRA rpmver.NEVRA

	Summary       string
	Description   string
	URL           string
	License       string
	Vendor        string
	Packager      string
	Size          int64
	InstalledSize int64
	Location      string
	Checksum      string
	ChecksumType  string

	Provides  []string
	Requires  []string
	Conflicts []string
	Obsoletes []string
}

type xmlPrimary struct {
	XMLName  xml.Name `xml:"metadata"`
	Packages []struct {
		Name    string `xml:"name"`
		Arch    string `xml:"arch"`
		Version struct {
			Epoch string `xml:"epoch,attr"`
			Ver   string `xml:"ver,attr"`
			Rel   string `xml:"rel,attr"`
		} `xml:"version"`
		Summary     string `xml:"summary"`
		Description string `xml:"description"`
		URL         string `xml:"url"`
		Packager    string `xml:"packager"`
		Size        struct {
			Package   int64 `xml:"package,attr"`
			Installed int64 `xml:"installed,attr"`
		} `xml:"size"`
		Location struct {
			Href string `xml:"href,attr"`
		} `xml:"location"`
		Checksum struct {
			Type  string `xml:"type,attr"`
			Value string `xml:",chardata"`
		} `xml:"checksum"`
		Format struct {
			License   string `xml:"http://linux.duke.edu/metadata/rpm license"`
			Vendor    string `xml:"http://linux.duke.edu/metadata/rpm vendor"`
			Provides  entryList `xml:"http://linux.duke.edu/metadata/rpm provides"`
			Requires  entryList `xml:"http://linux.duke.edu/metadata/rpm requires"`
			Conflicts entryList `xml:"http://linux.duke.edu/metadata/rpm conflicts"`
			Obsoletes entryList `xml:"http://linux.duke.edu/metadata/rpm obsoletes"`
		} `xml:"format"`
	} `xml:"package"`
}

type entryList struct {
	Entries []struct {
		Name string `xml:"name,attr"`
	} `xml:"http://linux.duke.edu/metadata/rpm entry"`
}

func (e entryList) names() []string {
	var out []string
	for _, entry := range e.Entries {
		if entry.Name != "" {
			out = append(out, entry.Name)
		}
	}
	return out
}

// ParsePrimary parses a primary.xml document into one PackageEntry per
// <package>.
func ParsePrimary(r io.Reader) ([]PackageEntry, error) {
	var x xmlPrimary
	if err := xml.NewDecoder(r).Decode(&x); err != nil {
		return nil, fmt.Errorf("metadata: decoding primary.xml: %w", err)
	}

	out := make([]PackageEntry, 0, len(x.Packages))
	for _, p := range x.Packages {
		out = append(out, PackageEntry{
			NEVRA: rpmver.NEVRA{
				Name:    p.Name,
				Epoch:   p.Version.Epoch,
				Version: p.Version.Ver,
				Release: p.Version.Rel,
				Arch:    p.Arch,
			},
			Summary:       strings.TrimSpace(p.Summary),
			Description:   strings.TrimSpace(p.Description),
			URL:           p.URL,
			License:       p.Format.License,
			Vendor:        p.Format.Vendor,
			Packager:      p.Packager,
			Size:          p.Size.Package,
			InstalledSize: p.Size.Installed,
			Location:      p.Location.Href,
			Checksum:      p.Checksum.Value,
			ChecksumType:  p.Checksum.Type,
			Provides:      p.Format.Provides.names(),
			Requires:      p.Format.Requires.names(),
			Conflicts:     p.Format.Conflicts.names(),
			Obsoletes:     p.Format.Obsoletes.names(),
		})
	}
	return out, nil
}
