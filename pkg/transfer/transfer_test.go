package transfer_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architect-io/mdpack/pkg/catalog"
	"github.com/architect-io/mdpack/pkg/component"
	"github.com/architect-io/mdpack/pkg/componentset"
	"github.com/architect-io/mdpack/pkg/convert"
	"github.com/architect-io/mdpack/pkg/transfer"
	"github.com/architect-io/mdpack/pkg/transfer/simulated"
	"github.com/architect-io/mdpack/pkg/tree"
)

func apexClassSet(t *testing.T) *componentset.Set {
	t.Helper()
	r, err := catalog.Load()
	require.NoError(t, err)
	apexClass, _ := r.ByID("apexclass")

	fs := tree.MemTree([]tree.MemDir{
		{DirPath: "classes", Children: []tree.MemEntry{
			tree.File("A.cls", []byte("public class A {}")),
			tree.File("A.cls-meta.xml", []byte(`<ApexClass/>`)),
		}},
	})

	a, err := component.New(component.Options{
		Name: "A", Type: apexClass,
		XML: "classes/A.cls-meta.xml", Content: "classes/A.cls", Tree: fs,
	})
	require.NoError(t, err)
	return componentset.New(componentset.FromSlice([]component.MetadataComponent{a}))
}

func TestTransfer_Deploy_Succeeds(t *testing.T) {
	set := apexClassSet(t)
	driver := simulated.New(simulated.Outcome{
		PollsBeforeDone: 1,
		FinalStatus:     transfer.StateSucceeded,
		Details: transfer.StatusDetails{
			ComponentSuccesses: []transfer.ComponentStatusDetail{
				{FullName: "A", ComponentType: "ApexClass", Success: true, Changed: true},
			},
		},
	}, nil)

	var updates int
	var finalResult transfer.Result
	tr := transfer.New(transfer.Options{
		Driver:     driver,
		Kind:       transfer.KindDeploy,
		Set:        set,
		Converter:  convert.New(convert.Options{}),
		APIVersion: "59.0",
		OnUpdate:   func(transfer.StatusResult) { updates++ },
		OnFinish:   func(r transfer.Result) { finalResult = r },
	})

	err := tr.Start(context.Background(), 5*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, transfer.StateSucceeded, tr.State())
	assert.Equal(t, 1, updates)
	require.NotNil(t, finalResult.Deploy)
	assert.True(t, finalResult.Deploy.Success)
	require.NotEmpty(t, finalResult.Deploy.Responses)

	foundXML, foundContent := false, false
	for _, r := range finalResult.Deploy.Responses {
		assert.True(t, r.Success)
		if r.FilePath == "classes/A.cls-meta.xml" {
			foundXML = true
		}
		if r.FilePath == "classes/A.cls" {
			foundContent = true
		}
	}
	assert.True(t, foundXML)
	assert.True(t, foundContent)
}

func TestTransfer_Deploy_Fails(t *testing.T) {
	set := apexClassSet(t)
	driver := simulated.New(simulated.Outcome{
		PollsBeforeDone: 0,
		FinalStatus:     transfer.StateFailed,
		Details: transfer.StatusDetails{
			ComponentFailures: []transfer.ComponentStatusDetail{
				{FullName: "A", ComponentType: "ApexClass", Problem: "Invalid type: Foo", ProblemType: "Error", LineNumber: 3},
			},
		},
	}, nil)

	var finalResult transfer.Result
	tr := transfer.New(transfer.Options{
		Driver:     driver,
		Kind:       transfer.KindDeploy,
		Set:        set,
		Converter:  convert.New(convert.Options{}),
		APIVersion: "59.0",
		OnFinish:   func(r transfer.Result) { finalResult = r },
	})

	err := tr.Start(context.Background(), 5*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, transfer.StateFailed, tr.State())
	require.NotNil(t, finalResult.Deploy)
	assert.False(t, finalResult.Deploy.Success)
	require.Len(t, finalResult.Deploy.Responses, 1)
	assert.Equal(t, "Invalid type: Foo", finalResult.Deploy.Responses[0].Problem)
	assert.Equal(t, "classes/A.cls", finalResult.Deploy.Responses[0].FilePath)
}

func TestTransfer_Deploy_NoSourceComponents(t *testing.T) {
	empty := componentset.New(nil)
	tr := transfer.New(transfer.Options{
		Driver:    simulated.New(simulated.Outcome{FinalStatus: transfer.StateSucceeded}, nil),
		Kind:      transfer.KindDeploy,
		Set:       empty,
		Converter: convert.New(convert.Options{}),
	})

	err := tr.Start(context.Background(), 5*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, transfer.StateFailed, tr.State())
}

func TestTransfer_Cancel_StopsAfterSecondUpdate(t *testing.T) {
	set := apexClassSet(t)
	driver := simulated.New(simulated.Outcome{
		PollsBeforeDone:  100,
		FinalStatus:      transfer.StateSucceeded,
		CancelAfterPolls: 1,
	}, nil)

	var updates atomic.Int32
	var finishes []transfer.Result
	tr := transfer.New(transfer.Options{
		Driver:    driver,
		Kind:      transfer.KindDeploy,
		Set:       set,
		Converter: convert.New(convert.Options{}),
		OnUpdate:  func(transfer.StatusResult) { updates.Add(1) },
		OnFinish:  func(r transfer.Result) { finishes = append(finishes, r) },
	})

	done := make(chan error, 1)
	go func() { done <- tr.Start(context.Background(), 5*time.Millisecond) }()

	for updates.Load() < 2 {
		time.Sleep(time.Millisecond)
	}
	tr.Cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("transfer did not finish after cancel")
	}

	require.Len(t, finishes, 1)
	assert.Equal(t, transfer.StateCanceled, finishes[0].Status)
	assert.False(t, finishes[0].Deploy != nil && finishes[0].Deploy.Success)
	assert.Equal(t, transfer.StateCanceled, tr.State())
}

func TestTransfer_Retrieve_Succeeds(t *testing.T) {
	set := apexClassSet(t)
	driver := simulated.New(simulated.Outcome{
		PollsBeforeDone: 0,
		FinalStatus:     transfer.StateSucceeded,
		Details:         transfer.StatusDetails{ZipFile: []byte("pk\x03\x04")},
	}, nil)

	var finalResult transfer.Result
	tr := transfer.New(transfer.Options{
		Driver:     driver,
		Kind:       transfer.KindRetrieve,
		Set:        set,
		APIVersion: "59.0",
		OnFinish:   func(r transfer.Result) { finalResult = r },
	})

	err := tr.Start(context.Background(), 5*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, finalResult.Retrieve)
	assert.True(t, finalResult.Retrieve.Success)
	assert.Equal(t, []byte("pk\x03\x04"), finalResult.Retrieve.ZipFile)
}
