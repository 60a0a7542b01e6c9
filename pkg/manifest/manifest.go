// Package manifest reads and writes the Salesforce-style package.xml
// manifest format: a thin encoding/xml layer plus the
// folderType substitution rule that turns a folder-less manifest entry
// into its containing folder component.
package manifest

import (
	"bytes"
	"encoding/xml"

	"github.com/architect-io/mdpack/pkg/catalog"
	mdpackerrors "github.com/architect-io/mdpack/pkg/errors"
)

// XMLNamespace is the Salesforce metadata API namespace shared by the
// package manifest and every metadata-format component document.
const XMLNamespace = "http://soap.sforce.com/2006/04/metadata"

// PackageType is one <types> block: a metadata type name and its members.
type PackageType struct {
	Name    string   `xml:"name"`
	Members []string `xml:"members"`
}

// Package is the root <Package> element.
type Package struct {
	XMLName xml.Name      `xml:"http://soap.sforce.com/2006/04/metadata Package"`
	Types   []PackageType `xml:"types"`
	Version string        `xml:"version"`
}

// rawPackage mirrors Package's shape but leaves Members
// and the wrapping types/xmlns implicit, letting the xml decoder accept
// both a lone <types> element and a repeated one, and both a lone
// <members> and a repeated one; singletons and arrays of either must
// parse identically.
type rawPackage struct {
	XMLName xml.Name `xml:"Package"`
	Types   []struct {
		Name    string   `xml:"name"`
		Members []string `xml:"members"`
	} `xml:"types"`
	Version string `xml:"version"`
}

// MarshalIndent serializes pkg as an indented package.xml document, with
// the standard xml declaration prepended.
func MarshalIndent(pkg *Package, indent string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", indent)
	if err := enc.Encode(pkg); err != nil {
		return nil, mdpackerrors.Wrap(mdpackerrors.ErrCodeManifestParse, "failed to encode package manifest", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Entry is one resolved manifest member: a type paired with a member
// fullName, after folderType substitution.
type Entry struct {
	Type     *catalog.MetadataType
	FullName string
}

// ParsedManifest is the result of parsing a package.xml document.
type ParsedManifest struct {
	Entries []Entry
	Version string
}

// Parse reads a package.xml document against the registry, normalizing
// the types/members singleton-vs-array quirk and substituting each
// type's folderType when the entry denotes the folder itself rather than
// a leaf member.
func Parse(data []byte, registry *catalog.Registry) (*ParsedManifest, error) {
	var raw rawPackage
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, mdpackerrors.ManifestParseError("failed to parse package manifest", err)
	}

	result := &ParsedManifest{Version: raw.Version}
	for _, t := range raw.Types {
		typ, ok := registry.ByName(t.Name)
		if !ok {
			return nil, mdpackerrors.ManifestParseError("unknown metadata type: "+t.Name, nil)
		}

		for _, member := range t.Members {
			entryType := typ
			if typ.FolderType != "" && !containsSlash(member) {
				folderType, ok := registry.ByID(typ.FolderType)
				if !ok {
					return nil, mdpackerrors.ManifestParseError("unknown folder type: "+typ.FolderType, nil)
				}
				entryType = folderType
			}
			result.Entries = append(result.Entries, Entry{Type: entryType, FullName: member})
		}
	}

	return result, nil
}

func containsSlash(s string) bool {
	for _, r := range s {
		if r == '/' {
			return true
		}
	}
	return false
}
