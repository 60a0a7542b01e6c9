package manifest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architect-io/mdpack/pkg/catalog"
	"github.com/architect-io/mdpack/pkg/manifest"
)

func testRegistry(t *testing.T) *catalog.Registry {
	t.Helper()
	r, err := catalog.Load()
	require.NoError(t, err)
	return r
}

func TestParse_SingletonTypesAndMembers(t *testing.T) {
	doc := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<Package xmlns="http://soap.sforce.com/2006/04/metadata">
  <types>
    <members>MyClass</members>
    <name>ApexClass</name>
  </types>
  <version>62.0</version>
</Package>`)

	r := testRegistry(t)
	parsed, err := manifest.Parse(doc, r)
	require.NoError(t, err)
	assert.Equal(t, "62.0", parsed.Version)
	require.Len(t, parsed.Entries, 1)
	assert.Equal(t, "apexclass", parsed.Entries[0].Type.ID)
	assert.Equal(t, "MyClass", parsed.Entries[0].FullName)
}

func TestParse_ArrayTypesAndMembers(t *testing.T) {
	doc := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<Package xmlns="http://soap.sforce.com/2006/04/metadata">
  <types>
    <members>A</members>
    <members>B</members>
    <name>ApexClass</name>
  </types>
  <types>
    <members>C</members>
    <name>ApexTrigger</name>
  </types>
  <version>62.0</version>
</Package>`)

	r := testRegistry(t)
	parsed, err := manifest.Parse(doc, r)
	require.NoError(t, err)
	require.Len(t, parsed.Entries, 3)
	assert.Equal(t, "apexclass", parsed.Entries[0].Type.ID)
	assert.Equal(t, "A", parsed.Entries[0].FullName)
	assert.Equal(t, "apexclass", parsed.Entries[1].Type.ID)
	assert.Equal(t, "B", parsed.Entries[1].FullName)
	assert.Equal(t, "apextrigger", parsed.Entries[2].Type.ID)
}

func TestParse_FolderTypeSubstitution(t *testing.T) {
	doc := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<Package xmlns="http://soap.sforce.com/2006/04/metadata">
  <types>
    <members>MyFolder</members>
    <name>Report</name>
  </types>
  <types>
    <members>MyFolder/MyReport</members>
    <name>Report</name>
  </types>
  <version>62.0</version>
</Package>`)

	r := testRegistry(t)
	parsed, err := manifest.Parse(doc, r)
	require.NoError(t, err)
	require.Len(t, parsed.Entries, 2)

	// No slash: denotes the folder itself, substituted to ReportFolder.
	assert.Equal(t, "reportfolder", parsed.Entries[0].Type.ID)
	assert.Equal(t, "MyFolder", parsed.Entries[0].FullName)

	// Has a slash: a leaf report inside the folder, stays Report.
	assert.Equal(t, "report", parsed.Entries[1].Type.ID)
	assert.Equal(t, "MyFolder/MyReport", parsed.Entries[1].FullName)
}

func TestParse_UnknownType(t *testing.T) {
	doc := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<Package xmlns="http://soap.sforce.com/2006/04/metadata">
  <types>
    <members>X</members>
    <name>NotAType</name>
  </types>
  <version>62.0</version>
</Package>`)

	r := testRegistry(t)
	_, err := manifest.Parse(doc, r)
	assert.Error(t, err)
}

func TestMarshalIndent_RoundTrips(t *testing.T) {
	pkg := &manifest.Package{
		Types: []manifest.PackageType{
			{Name: "ApexClass", Members: []string{"MyClass"}},
		},
		Version: "62.0",
	}

	data, err := manifest.MarshalIndent(pkg, "    ")
	require.NoError(t, err)
	assert.Contains(t, string(data), "<name>ApexClass</name>")
	assert.Contains(t, string(data), "<members>MyClass</members>")
	assert.Contains(t, string(data), "<version>62.0</version>")

	r := testRegistry(t)
	parsed, err := manifest.Parse(data, r)
	require.NoError(t, err)
	require.Len(t, parsed.Entries, 1)
	assert.Equal(t, "MyClass", parsed.Entries[0].FullName)
}
