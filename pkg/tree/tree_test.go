package tree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureTree() Tree {
	return MemTree([]MemDir{
		{DirPath: "classes", Children: []MemEntry{
			File("A.cls", []byte("public class A {}")),
			File("A.cls-meta.xml", []byte("<ApexClass/>")),
		}},
		{DirPath: "objects/Acc__c", Children: []MemEntry{
			File("Acc__c.object-meta.xml", []byte("<CustomObject/>")),
			Dir("fields"),
		}},
		{DirPath: "objects/Acc__c/fields", Children: []MemEntry{
			File("F__c.field-meta.xml", []byte("<CustomField/>")),
		}},
	})
}

func TestMemTree_ExistsAndIsDirectory(t *testing.T) {
	tr := fixtureTree()

	ok, err := tr.Exists("classes/A.cls")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tr.Exists("classes/Missing.cls")
	require.NoError(t, err)
	assert.False(t, ok)

	isDir, err := tr.IsDirectory("classes")
	require.NoError(t, err)
	assert.True(t, isDir)

	isDir, err = tr.IsDirectory("classes/A.cls")
	require.NoError(t, err)
	assert.False(t, isDir)
}

func TestMemTree_ReadDirectory(t *testing.T) {
	tr := fixtureTree()

	names, err := tr.ReadDirectory("classes")
	require.NoError(t, err)
	assert.Equal(t, []string{"A.cls", "A.cls-meta.xml"}, names)

	names, err = tr.ReadDirectory("objects/Acc__c")
	require.NoError(t, err)
	assert.Equal(t, []string{"Acc__c.object-meta.xml", "fields"}, names)
}

func TestMemTree_ReadFile(t *testing.T) {
	tr := fixtureTree()

	data, err := tr.ReadFile(context.Background(), "classes/A.cls")
	require.NoError(t, err)
	assert.Equal(t, "public class A {}", string(data))
}

func TestMemTree_Stream(t *testing.T) {
	tr := fixtureTree()

	r, err := tr.Stream(context.Background(), "classes/A.cls-meta.xml")
	require.NoError(t, err)
	defer r.Close()

	buf := make([]byte, 64)
	n, _ := r.Read(buf)
	assert.Equal(t, "<ApexClass/>", string(buf[:n]))
}

func TestMemTree_NotFound(t *testing.T) {
	tr := fixtureTree()

	_, err := tr.ReadFile(context.Background(), "classes/Nope.cls")
	require.Error(t, err)

	_, err = tr.ReadDirectory("nope")
	require.Error(t, err)
}
