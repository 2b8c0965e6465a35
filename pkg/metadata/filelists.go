// filelists.xml and updateinfo.xml parsing. Both are optional parts
// (spec §4.3: "Missing filelists, updateinfo, other is not an error").
package metadata

import (
	"encoding/xml"
	"fmt"
	"io"
)

// FileEntry is one file path owned by a package in filelists.xml.
type FileEntry struct {
	Name    string
	Arch    string
	Version string
	Files   []string
}

type xmlFilelists struct {
	XMLName  xml.Name `xml:"filelists"`
	Packages []struct {
		Name    string `xml:"name,attr"`
		Arch    string `xml:"arch,attr"`
		Version struct {
			Ver string `xml:"ver,attr"`
			Rel string `xml:"rel,attr"`
		} `xml:"version"`
		Files []string `xml:"file"`
	} `xml:"package"`
}

// ParseFilelists parses a filelists.xml document.
func ParseFilelists(r io.Reader) ([]FileEntry, error) {
	var x xmlFilelists
	if err := xml.NewDecoder(r).Decode(&x); err != nil {
		return nil, fmt.Errorf("metadata: decoding filelists.xml: %w", err)
	}
	out := make([]FileEntry, 0, len(x.Packages))
	for _, p := range x.Packages {
		out = append(out, FileEntry{
			Name:    p.Name,
			Arch:    p.Arch,
			Version: p.Version.Ver + "-" + p.Version.Rel,
			Files:   p.Files,
		})
	}
	return out, nil
}

// UpdateRecord is one <update> from updateinfo.xml.
type UpdateRecord struct {
	ID          string
	Type        string
	Title       string
	Description string
	Severity    string
	Packages    []string // NEVRA strings of the packages this advisory touches
}

type xmlUpdateinfo struct {
	XMLName xml.Name `xml:"updates"`
	Updates []struct {
		Type        string `xml:"type,attr"`
		ID          string `xml:"id"`
		Title       string `xml:"title"`
		Severity    string `xml:"severity"`
		Description string `xml:"description"`
		PkgList     struct {
			Collections []struct {
				Packages []struct {
					Name    string `xml:"name,attr"`
					Epoch   string `xml:"epoch,attr"`
					Version string `xml:"version,attr"`
					Release string `xml:"release,attr"`
					Arch    string `xml:"arch,attr"`
				} `xml:"package"`
			} `xml:"collection"`
		} `xml:"pkglist"`
	} `xml:"update"`
}

// ParseUpdateinfo parses an updateinfo.xml document.
func ParseUpdateinfo(r io.Reader) ([]UpdateRecord, error) {
	var x xmlUpdateinfo
	if err := xml.NewDecoder(r).Decode(&x); err != nil {
		return nil, fmt.Errorf("metadata: decoding updateinfo.xml: %w", err)
	}
	out := make([]UpdateRecord, 0, len(x.Updates))
	for _, u := range x.Updates {
		rec := UpdateRecord{
			ID:          u.ID,
			Type:        u.Type,
			Title:       u.Title,
			Description: u.Description,
			Severity:    u.Severity,
		}
		for _, col := range u.PkgList.Collections {
			for _, p := range col.Packages {
				ev := p.Version
				if p.Epoch != "" && p.Epoch != "0" {
					ev = p.Epoch + ":" + ev
				}
				rec.Packages = append(rec.Packages, fmt.Sprintf("%s-%s-%s.%s", p.Name, ev, p.Release, p.Arch))
			}
		}
		out = append(out, rec)
	}
	return out, nil
}
