package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/architect-io/mdpack/pkg/transfer"
)

func TestNewTransferProgress(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewTransferProgress(buf, "deploy")

	assert.NotNil(t, p)
	assert.NotNil(t, p.files)
	assert.Equal(t, 0, len(p.order))
}

func TestTransferProgress_AddFile(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewTransferProgress(buf, "deploy")

	p.AddFile("MyClass", "ApexClass")

	key := fileKey("MyClass", "ApexClass")
	assert.Equal(t, 1, len(p.files))
	assert.Equal(t, "MyClass", p.files[key].FullName)
	assert.Equal(t, "ApexClass", p.files[key].ComponentType)
	assert.Equal(t, FileStatusPending, p.files[key].Status)
}

func TestTransferProgress_ApplyStatus_Success(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewTransferProgress(buf, "deploy")
	p.AddFile("MyClass", "ApexClass")

	p.ApplyStatus(transfer.StatusResult{
		Status: transfer.StateInProgress,
		Details: transfer.StatusDetails{
			ComponentSuccesses: []transfer.ComponentStatusDetail{
				{FullName: "MyClass", ComponentType: "ApexClass", Success: true, Changed: true},
			},
		},
	})

	key := fileKey("MyClass", "ApexClass")
	assert.Equal(t, FileStatusSucceeded, p.files[key].Status)
	assert.Equal(t, 1, p.SucceededCount())
}

func TestTransferProgress_ApplyStatus_Failure(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewTransferProgress(buf, "deploy")
	p.AddFile("Broken", "ApexClass")

	p.ApplyStatus(transfer.StatusResult{
		Status: transfer.StateInProgress,
		Details: transfer.StatusDetails{
			ComponentFailures: []transfer.ComponentStatusDetail{
				{FullName: "Broken", ComponentType: "ApexClass", Success: false, Problem: "syntax error"},
			},
		},
	})

	key := fileKey("Broken", "ApexClass")
	assert.Equal(t, FileStatusFailed, p.files[key].Status)
	assert.Equal(t, "syntax error", p.files[key].Problem)
	assert.Equal(t, 1, p.FailedCount())
}

func TestTransferProgress_ApplyStatus_MarksUnreportedInProgress(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewTransferProgress(buf, "deploy")
	p.AddFile("Pending", "ApexClass")

	p.ApplyStatus(transfer.StatusResult{Status: transfer.StateInProgress})

	key := fileKey("Pending", "ApexClass")
	assert.Equal(t, FileStatusInProgress, p.files[key].Status)
}

func TestTransferProgress_PrintInitial(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewTransferProgress(buf, "deploy")
	p.AddFile("MyClass", "ApexClass")
	p.PrintInitial()

	output := buf.String()
	assert.Contains(t, output, "Deploying 1 components")
}

func TestTransferProgress_PrintFinalSummary_Success(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewTransferProgress(buf, "deploy")
	p.AddFile("MyClass", "ApexClass")
	p.ApplyStatus(transfer.StatusResult{
		Status: transfer.StateSucceeded,
		Details: transfer.StatusDetails{
			ComponentSuccesses: []transfer.ComponentStatusDetail{
				{FullName: "MyClass", ComponentType: "ApexClass", Success: true},
			},
		},
	})
	p.PrintFinalSummary(transfer.Result{Status: transfer.StateSucceeded})

	output := buf.String()
	assert.Contains(t, output, "completed successfully")
}

func TestTransferProgress_PrintFinalSummary_Failure(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewTransferProgress(buf, "deploy")
	p.AddFile("Broken", "ApexClass")
	p.ApplyStatus(transfer.StatusResult{
		Status: transfer.StateFailed,
		Details: transfer.StatusDetails{
			ComponentFailures: []transfer.ComponentStatusDetail{
				{FullName: "Broken", ComponentType: "ApexClass", Problem: "syntax error"},
			},
		},
	})
	p.PrintFinalSummary(transfer.Result{Status: transfer.StateFailed})

	output := buf.String()
	assert.Contains(t, output, "FAILED")
	assert.Contains(t, output, "Broken")
	assert.Contains(t, output, "syntax error")
}

func TestTransferProgress_PrintFinalSummary_Canceled(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewTransferProgress(buf, "retrieve")
	p.PrintFinalSummary(transfer.Result{Status: transfer.StateCanceled})

	output := buf.String()
	assert.Contains(t, output, "canceled")
}

func TestStatusIcon(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewTransferProgress(buf, "deploy")

	tests := []struct {
		status FileStatus
		want   string
	}{
		{FileStatusPending, "○"},
		{FileStatusInProgress, "◐"},
		{FileStatusSucceeded, "●"},
		{FileStatusFailed, "✗"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			got := p.statusIcon(tt.status)
			assert.Equal(t, tt.want, got)
		})
	}
}
