// Package metadata implements the Metadata Pipeline of spec §4.3:
// repomd.xml/primary/filelists/updateinfo state transitions, download
// sequencing, the plugin hook, and metalink URL resolution.
//
// Grounded directly on the teacher's pkg/dnf.ParseRepoMD/ParsePrimary
// (encoding/xml struct-tag decoding of the same repomd.xml/primary.xml
// documents), generalized with filelists/updateinfo/other parts and the
// repo-cache-aware fetch sequencing those functions did not need.
package metadata

import (
	"encoding/xml"
	"fmt"
	"io"
)

// RepoMD is the parsed repomd.xml index, spec GLOSSARY "Repomd".
type RepoMD struct {
	Revision string
	Data     []RepoData
}

// RepoData is one <data> entry: a metadata part's location and checksums.
type RepoData struct {
	Type         string
	Location     string
	Checksum     string
	ChecksumType string
	OpenChecksum string
	Timestamp    int64
	Size         int64
	OpenSize     int64
}

// Find returns the RepoData of the given type ("primary", "filelists",
// "updateinfo", "other"), or nil if absent.
func (r *RepoMD) Find(typ string) *RepoData {
	for i := range r.Data {
		if r.Data[i].Type == typ {
			return &r.Data[i]
		}
	}
	return nil
}

type xmlRepoMD struct {
	XMLName  xml.Name `xml:"repomd"`
	Revision string   `xml:"revision"`
	Data     []struct {
		Type     string `xml:"type,attr"`
		Location struct {
			Href string `xml:"href,attr"`
		} `xml:"location"`
		Checksum struct {
			Type  string `xml:"type,attr"`
			Value string `xml:",chardata"`
		} `xml:"checksum"`
		OpenChecksum struct {
			Type  string `xml:"type,attr"`
			Value string `xml:",chardata"`
		} `xml:"open-checksum"`
		Timestamp int64 `xml:"timestamp"`
		Size      int64 `xml:"size"`
		OpenSize  int64 `xml:"open-size"`
	} `xml:"data"`
}

// ParseRepoMD parses a repomd.xml document.
func ParseRepoMD(r io.Reader) (*RepoMD, error) {
	var x xmlRepoMD
	if err := xml.NewDecoder(r).Decode(&x); err != nil {
		return nil, fmt.Errorf("metadata: decoding repomd.xml: %w", err)
	}

	out := &RepoMD{Revision: x.Revision}
	for _, d := range x.Data {
		out.Data = append(out.Data, RepoData{
			Type:         d.Type,
			Location:     d.Location.Href,
			Checksum:     d.Checksum.Value,
			ChecksumType: d.Checksum.Type,
			OpenChecksum: d.OpenChecksum.Value,
			Timestamp:    d.Timestamp,
			Size:         d.Size,
			OpenSize:     d.OpenSize,
		})
	}
	return out, nil
}
