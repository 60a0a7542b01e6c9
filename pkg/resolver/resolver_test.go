package resolver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architect-io/mdpack/pkg/catalog"
	"github.com/architect-io/mdpack/pkg/componentset"
	mdpackerrors "github.com/architect-io/mdpack/pkg/errors"
	"github.com/architect-io/mdpack/pkg/manifest"
	"github.com/architect-io/mdpack/pkg/resolver"
	"github.com/architect-io/mdpack/pkg/tree"
)

func testRegistry(t *testing.T) *catalog.Registry {
	t.Helper()
	r, err := catalog.Load()
	require.NoError(t, err)
	return r
}

func TestResolveSource_SingleApexClass(t *testing.T) {
	fs := tree.MemTree([]tree.MemDir{
		{DirPath: "classes", Children: []tree.MemEntry{
			tree.File("MyClass.cls", []byte("public class MyClass {}")),
			tree.File("MyClass.cls-meta.xml", []byte(`<ApexClass/>`)),
		}},
	})

	r := resolver.New(resolver.Options{Registry: testRegistry(t)})
	set, err := r.ResolveSource(context.Background(), fs, []string{"classes/MyClass.cls-meta.xml"}, nil)
	require.NoError(t, err)

	all := set.GetSourceComponents()
	require.Len(t, all, 1)
	assert.Equal(t, "MyClass", all[0].Name())
}

func TestResolveSource_DirectoryWalk(t *testing.T) {
	fs := tree.MemTree([]tree.MemDir{
		{DirPath: "classes", Children: []tree.MemEntry{
			tree.File("A.cls", []byte("class A {}")),
			tree.File("A.cls-meta.xml", []byte(`<ApexClass/>`)),
			tree.File("B.cls", []byte("class B {}")),
			tree.File("B.cls-meta.xml", []byte(`<ApexClass/>`)),
		}},
	})

	r := resolver.New(resolver.Options{Registry: testRegistry(t)})
	set, err := r.ResolveSource(context.Background(), fs, []string{"classes"}, nil)
	require.NoError(t, err)

	all := set.GetSourceComponents()
	require.Len(t, all, 2)
}

func TestResolveSource_PathNotFound(t *testing.T) {
	fs := tree.MemTree(nil)
	r := resolver.New(resolver.Options{Registry: testRegistry(t)})
	_, err := r.ResolveSource(context.Background(), fs, []string{"nope"}, nil)
	assert.Error(t, err)
}

func TestResolveSource_DecomposedCustomObject(t *testing.T) {
	fs := tree.MemTree([]tree.MemDir{
		{DirPath: "objects/Account__c", Children: []tree.MemEntry{
			tree.File("Account__c.object-meta.xml", []byte(`<CustomObject/>`)),
		}},
		{DirPath: "objects/Account__c/fields", Children: []tree.MemEntry{
			tree.File("Name__c.field-meta.xml", []byte(`<CustomField/>`)),
		}},
	})

	r := resolver.New(resolver.Options{Registry: testRegistry(t)})
	set, err := r.ResolveSource(context.Background(), fs, []string{"objects"}, nil)
	require.NoError(t, err)

	all := set.GetSourceComponents()
	require.Len(t, all, 1)
	assert.Equal(t, "Account__c", all[0].Name())
}

func TestResolveSource_Idempotent(t *testing.T) {
	fs := tree.MemTree([]tree.MemDir{
		{DirPath: "classes", Children: []tree.MemEntry{
			tree.File("A.cls", []byte("class A {}")),
			tree.File("A.cls-meta.xml", []byte(`<ApexClass/>`)),
		}},
	})

	r := resolver.New(resolver.Options{Registry: testRegistry(t)})
	once, err := r.ResolveSource(context.Background(), fs, []string{"classes"}, nil)
	require.NoError(t, err)
	twice, err := r.ResolveSource(context.Background(), fs, []string{"classes", "classes"}, nil)
	require.NoError(t, err)

	assert.Equal(t, once.Len(), twice.Len())
	assert.Len(t, twice.GetSourceComponents(), len(once.GetSourceComponents()))
}

func TestResolveSource_StrictFolderMisplacement(t *testing.T) {
	// A bundle file dropped under classes/ matches no strict folder, no
	// metadata-xml suffix, and no registered extension.
	fs := tree.MemTree([]tree.MemDir{
		{DirPath: "classes/foo", Children: []tree.MemEntry{
			tree.File("foo.cmp", []byte("<aura:component/>")),
		}},
	})

	r := resolver.New(resolver.Options{Registry: testRegistry(t)})
	_, err := r.ResolveSource(context.Background(), fs, []string{"classes"}, nil)
	require.Error(t, err)
	assert.True(t, mdpackerrors.Is(err, mdpackerrors.ErrCodeTypeInference))
}

func TestResolveSource_IgnoreDenies(t *testing.T) {
	fs := tree.MemTree([]tree.MemDir{
		{DirPath: "", Children: []tree.MemEntry{
			tree.File(".mdpackignore", []byte("B.cls*\n")),
		}},
		{DirPath: "classes", Children: []tree.MemEntry{
			tree.File("A.cls", []byte("class A {}")),
			tree.File("A.cls-meta.xml", []byte(`<ApexClass/>`)),
			tree.File("B.cls", []byte("class B {}")),
			tree.File("B.cls-meta.xml", []byte(`<ApexClass/>`)),
		}},
	})

	r := resolver.New(resolver.Options{Registry: testRegistry(t)})
	set, err := r.ResolveSource(context.Background(), fs, []string{"classes"}, nil)
	require.NoError(t, err)

	all := set.GetSourceComponents()
	require.Len(t, all, 1)
	assert.Equal(t, "A", all[0].Name())
}

func TestResolveSource_WildcardFilter(t *testing.T) {
	reg := testRegistry(t)
	apexClass, ok := reg.ByID("apexclass")
	require.True(t, ok)

	fs := tree.MemTree([]tree.MemDir{
		{DirPath: "classes", Children: []tree.MemEntry{
			tree.File("A.cls", []byte("class A {}")),
			tree.File("A.cls-meta.xml", []byte(`<ApexClass/>`)),
			tree.File("B.cls", []byte("class B {}")),
			tree.File("B.cls-meta.xml", []byte(`<ApexClass/>`)),
		}},
		{DirPath: "profiles", Children: []tree.MemEntry{
			tree.File("Admin.profile-meta.xml", []byte(`<Profile/>`)),
		}},
	})

	filter := componentset.FromManifest([]manifest.Entry{{Type: apexClass, FullName: "*"}})

	r := resolver.New(resolver.Options{Registry: reg})
	set, err := r.ResolveSource(context.Background(), fs, []string{"classes", "profiles"}, filter)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, c := range set.GetSourceComponents() {
		names[c.FullName()] = true
	}
	assert.True(t, names["A"])
	assert.True(t, names["B"])
	assert.False(t, names["Admin"])
}

func TestResolveSource_XMLOnlyTypeDuringWalk(t *testing.T) {
	fs := tree.MemTree([]tree.MemDir{
		{DirPath: "profiles", Children: []tree.MemEntry{
			tree.File("Admin.profile-meta.xml", []byte(`<Profile/>`)),
		}},
	})

	r := resolver.New(resolver.Options{Registry: testRegistry(t)})
	set, err := r.ResolveSource(context.Background(), fs, []string{"profiles"}, nil)
	require.NoError(t, err)

	all := set.GetSourceComponents()
	require.Len(t, all, 1)
	assert.Equal(t, "Admin", all[0].FullName())
	assert.Equal(t, "Profile", all[0].Type().Name)
}

func TestResolveSource_ChildFileReachedBeforeParentXML(t *testing.T) {
	// "fields" sorts before "zz__c.object-meta.xml", so the walk reaches
	// the child file first; it must still resolve to one CustomObject.
	fs := tree.MemTree([]tree.MemDir{
		{DirPath: "objects/zz__c", Children: []tree.MemEntry{
			tree.File("zz__c.object-meta.xml", []byte(`<CustomObject/>`)),
		}},
		{DirPath: "objects/zz__c/fields", Children: []tree.MemEntry{
			tree.File("Name__c.field-meta.xml", []byte(`<CustomField/>`)),
		}},
	})

	r := resolver.New(resolver.Options{Registry: testRegistry(t)})
	set, err := r.ResolveSource(context.Background(), fs, []string{"objects"}, nil)
	require.NoError(t, err)

	all := set.GetSourceComponents()
	require.Len(t, all, 1)
	assert.Equal(t, "zz__c", all[0].FullName())
	assert.Equal(t, "CustomObject", all[0].Type().Name)
}

func TestResolveSource_FolderAndFolderedReport(t *testing.T) {
	fs := tree.MemTree([]tree.MemDir{
		{DirPath: "reports", Children: []tree.MemEntry{
			tree.File("MyFolder-meta.xml", []byte(`<ReportFolder/>`)),
		}},
		{DirPath: "reports/MyFolder", Children: []tree.MemEntry{
			tree.File("MyReport.report-meta.xml", []byte(`<Report/>`)),
		}},
	})

	r := resolver.New(resolver.Options{Registry: testRegistry(t)})
	set, err := r.ResolveSource(context.Background(), fs, []string{"reports"}, nil)
	require.NoError(t, err)

	byFullName := map[string]string{}
	for _, c := range set.GetSourceComponents() {
		byFullName[c.FullName()] = c.Type().Name
	}
	assert.Equal(t, "ReportFolder", byFullName["MyFolder"])
	assert.Equal(t, "Report", byFullName["MyFolder/MyReport"])
}

func TestResolveSource_MixedContentSingleFile(t *testing.T) {
	fs := tree.MemTree([]tree.MemDir{
		{DirPath: "staticresources", Children: []tree.MemEntry{
			tree.File("Logo.resource", []byte("PNG")),
			tree.File("Logo.resource-meta.xml", []byte(`<StaticResource/>`)),
		}},
	})

	r := resolver.New(resolver.Options{Registry: testRegistry(t)})

	// Walking the type directory and resolving the xml path directly
	// must agree on the one component.
	for _, paths := range [][]string{
		{"staticresources"},
		{"staticresources/Logo.resource-meta.xml"},
	} {
		set, err := r.ResolveSource(context.Background(), fs, paths, nil)
		require.NoError(t, err)

		all := set.GetSourceComponents()
		require.Len(t, all, 1)
		assert.Equal(t, "Logo", all[0].FullName())
		assert.Equal(t, "StaticResource", all[0].Type().Name)
	}
}

func TestResolveSource_MixedContentExplodedDirectory(t *testing.T) {
	fs := tree.MemTree([]tree.MemDir{
		{DirPath: "staticresources", Children: []tree.MemEntry{
			tree.File("SiteAssets.resource-meta.xml", []byte(`<StaticResource/>`)),
		}},
		{DirPath: "staticresources/SiteAssets", Children: []tree.MemEntry{
			tree.File("app.js", []byte("console.log(1)")),
			tree.File("index.html", []byte("<html></html>")),
		}},
	})

	r := resolver.New(resolver.Options{Registry: testRegistry(t)})
	set, err := r.ResolveSource(context.Background(), fs, []string{"staticresources"}, nil)
	require.NoError(t, err)

	all := set.GetSourceComponents()
	require.Len(t, all, 1)
	assert.Equal(t, "SiteAssets", all[0].FullName())
	assert.Equal(t, "StaticResource", all[0].Type().Name)
}

func TestResolveSource_BundleDirectory(t *testing.T) {
	fs := tree.MemTree([]tree.MemDir{
		{DirPath: "aura/hello", Children: []tree.MemEntry{
			tree.File("hello.cmp", []byte("<aura:component/>")),
			tree.File("helloController.js", []byte("({})")),
		}},
	})

	r := resolver.New(resolver.Options{Registry: testRegistry(t)})
	set, err := r.ResolveSource(context.Background(), fs, []string{"aura"}, nil)
	require.NoError(t, err)

	all := set.GetSourceComponents()
	require.Len(t, all, 1)
	assert.Equal(t, "hello", all[0].FullName())
	assert.Equal(t, "AuraDefinitionBundle", all[0].Type().Name)
}
