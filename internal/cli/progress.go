package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/architect-io/mdpack/pkg/transfer"
)

// FileStatus represents the current status of a single component file
// within a deploy or retrieve operation.
type FileStatus string

const (
	FileStatusPending    FileStatus = "pending"
	FileStatusInProgress FileStatus = "in_progress"
	FileStatusSucceeded  FileStatus = "succeeded"
	FileStatusFailed     FileStatus = "failed"
)

// ANSI color codes for dynamic table rendering.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorDim    = "\033[90m"
	ansiErase   = "\033[2K" // erase entire line
)

// FileInfo holds progress information about one component file being
// deployed or retrieved.
type FileInfo struct {
	FullName      string
	ComponentType string
	Status        FileStatus
	StartTime     time.Time
	EndTime       time.Time
	Problem       string
}

// fileKey identifies a file the same way transfer.BuildDeployResult does.
func fileKey(fullName, componentType string) string {
	return fullName + "#" + componentType
}

// TransferProgress displays live progress for a deploy or retrieve
// MetadataTransfer.
//
// When the output writer is a terminal, the table renders dynamically:
// file status lines are redrawn in place using ANSI escape codes. When the
// writer is not a terminal (piped to a file or CI logs), each status change
// is printed as a single append-only line.
type TransferProgress struct {
	mu        sync.Mutex
	kind      string // "deploy" or "retrieve"
	files     map[string]*FileInfo
	order     []string
	writer    io.Writer
	startTime time.Time

	dynamic    bool
	tableLines int
}

// NewTransferProgress creates a progress table for a transfer of the given
// kind ("deploy" or "retrieve"). If the writer is a terminal, the table
// renders dynamically.
func NewTransferProgress(w io.Writer, kind string) *TransferProgress {
	dynamic := false
	if f, ok := w.(*os.File); ok {
		dynamic = term.IsTerminal(int(f.Fd()))
	}

	return &TransferProgress{
		kind:      kind,
		files:     make(map[string]*FileInfo),
		order:     []string{},
		writer:    w,
		startTime: time.Now(),
		dynamic:   dynamic,
	}
}

// AddFile registers a component file to track, starting out pending.
func (p *TransferProgress) AddFile(fullName, componentType string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := fileKey(fullName, componentType)
	if _, exists := p.files[key]; !exists {
		p.order = append(p.order, key)
	}

	p.files[key] = &FileInfo{
		FullName:      fullName,
		ComponentType: componentType,
		Status:        FileStatusPending,
	}
}

// ApplyStatus folds a MetadataTransfer poll result into the table: every
// reported component success or failure updates (or creates) that file's
// row, and any file not yet terminal flips to in-progress.
func (p *TransferProgress) ApplyStatus(sr transfer.StatusResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, d := range sr.Details.ComponentSuccesses {
		p.applyDetailLocked(d, true)
	}
	for _, d := range sr.Details.ComponentFailures {
		p.applyDetailLocked(d, false)
	}

	if sr.Status == transfer.StateInProgress {
		for _, key := range p.order {
			if p.files[key].Status == FileStatusPending {
				p.files[key].Status = FileStatusInProgress
				p.files[key].StartTime = time.Now()
			}
		}
	}
}

func (p *TransferProgress) applyDetailLocked(d transfer.ComponentStatusDetail, success bool) {
	key := fileKey(d.FullName, d.ComponentType)
	info, ok := p.files[key]
	if !ok {
		info = &FileInfo{FullName: d.FullName, ComponentType: d.ComponentType}
		p.files[key] = info
		p.order = append(p.order, key)
	}

	if info.StartTime.IsZero() {
		info.StartTime = time.Now()
	}
	info.EndTime = time.Now()
	info.Problem = d.Problem

	if success {
		info.Status = FileStatusSucceeded
	} else {
		info.Status = FileStatusFailed
	}
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

// PrintInitial prints the starting state of the transfer.
func (p *TransferProgress) PrintInitial() {
	p.mu.Lock()
	defer p.mu.Unlock()

	verb := "Deploying"
	if p.kind == "retrieve" {
		verb = "Retrieving"
	}

	if p.dynamic {
		fmt.Fprintf(p.writer, "\n%s %d components...\n\n", verb, len(p.order))
		p.renderTableLocked()
		return
	}

	fmt.Fprintln(p.writer)
	fmt.Fprintf(p.writer, "%s %d components\n", verb, len(p.order))
}

// PrintUpdate displays the latest progress snapshot.
func (p *TransferProgress) PrintUpdate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dynamic {
		p.renderTableLocked()
		return
	}

	for _, key := range p.order {
		info := p.files[key]
		switch info.Status {
		case FileStatusSucceeded:
			fmt.Fprintf(p.writer, "%s %s/%s\n", p.statusIcon(info.Status), info.ComponentType, info.FullName)
		case FileStatusFailed:
			fmt.Fprintf(p.writer, "%s %s/%s: %s\n", p.statusIcon(info.Status), info.ComponentType, info.FullName, info.Problem)
		}
	}
}

// PrintFinalSummary prints the terminal result of the transfer.
func (p *TransferProgress) PrintFinalSummary(result transfer.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var succeeded, failed int
	for _, key := range p.order {
		switch p.files[key].Status {
		case FileStatusSucceeded:
			succeeded++
		case FileStatusFailed:
			failed++
		}
	}

	elapsed := time.Since(p.startTime).Round(time.Millisecond)

	if p.dynamic {
		p.renderTableLocked()
	}

	label := strings.ToUpper(p.kind[:1]) + p.kind[1:]

	fmt.Fprintln(p.writer)
	switch result.Status {
	case transfer.StateSucceeded:
		fmt.Fprintf(p.writer, "%s completed successfully in %s (%d components)\n", label, elapsed, succeeded)
	case transfer.StateCanceled:
		fmt.Fprintf(p.writer, "%s canceled after %s\n", label, elapsed)
	default:
		fmt.Fprintf(p.writer, "%s FAILED after %s\n", label, elapsed)
		if failed > 0 {
			fmt.Fprintln(p.writer, "\nErrors:")
			for _, key := range p.order {
				info := p.files[key]
				if info.Status != FileStatusFailed {
					continue
				}
				fmt.Fprintf(p.writer, "  %s %s/%s", p.statusIcon(info.Status), info.ComponentType, info.FullName)
				if info.Problem != "" {
					fmt.Fprintf(p.writer, ": %s", info.Problem)
				}
				fmt.Fprintln(p.writer)
			}
		}
		if result.Err != nil {
			fmt.Fprintf(p.writer, "\n%v\n", result.Err)
		}
	}
	fmt.Fprintln(p.writer)
}

// ---------------------------------------------------------------------------
// Dynamic table renderer (ANSI terminal)
// ---------------------------------------------------------------------------

// renderTableLocked draws (or redraws) the live progress table.
// Caller MUST hold p.mu.
func (p *TransferProgress) renderTableLocked() {
	if p.tableLines > 0 {
		fmt.Fprintf(p.writer, "\033[%dA", p.tableLines)
	}

	lines := 0

	maxLabelLen := 0
	for _, key := range p.order {
		info := p.files[key]
		label := info.ComponentType + "/" + info.FullName
		if len(label) > maxLabelLen {
			maxLabelLen = len(label)
		}
	}

	var succeeded, failed, pending int
	for _, key := range p.order {
		info := p.files[key]
		icon := p.coloredIcon(info.Status)
		label := info.ComponentType + "/" + info.FullName
		desc := p.statusDescription(info)

		fmt.Fprintf(p.writer, "%s  %s  %-*s  %s\n", ansiErase, icon, maxLabelLen, label, desc)
		lines++

		switch info.Status {
		case FileStatusSucceeded:
			succeeded++
		case FileStatusFailed:
			failed++
		default:
			pending++
		}
	}

	fmt.Fprintf(p.writer, "%s\n", ansiErase)
	lines++

	total := len(p.order)
	elapsed := time.Since(p.startTime).Round(time.Second)
	if pending == 0 {
		if failed > 0 {
			fmt.Fprintf(p.writer, "%s  %s✗ %d/%d succeeded, %d failed%s (%s)\n",
				ansiErase, colorRed, succeeded, total, failed, colorReset, elapsed)
		} else {
			fmt.Fprintf(p.writer, "%s  %s● %d/%d succeeded%s (%s)\n",
				ansiErase, colorGreen, succeeded, total, colorReset, elapsed)
		}
	} else {
		fmt.Fprintf(p.writer, "%s  %d/%d reported (%s)\n", ansiErase, succeeded+failed, total, elapsed)
	}
	lines++

	p.tableLines = lines
}

func (p *TransferProgress) coloredIcon(status FileStatus) string {
	switch status {
	case FileStatusPending:
		return colorDim + "○" + colorReset
	case FileStatusInProgress:
		return colorYellow + "◐" + colorReset
	case FileStatusSucceeded:
		return colorGreen + "●" + colorReset
	case FileStatusFailed:
		return colorRed + "✗" + colorReset
	default:
		return "?"
	}
}

func (p *TransferProgress) statusDescription(info *FileInfo) string {
	switch info.Status {
	case FileStatusPending:
		return colorDim + "pending" + colorReset
	case FileStatusInProgress:
		return colorYellow + "in progress..." + colorReset
	case FileStatusSucceeded:
		return colorGreen + "done" + colorReset
	case FileStatusFailed:
		msg := "FAILED"
		if info.Problem != "" {
			errStr := info.Problem
			if len(errStr) > 60 {
				errStr = errStr[:57] + "..."
			}
			msg += ": " + errStr
		}
		return colorRed + msg + colorReset
	default:
		return ""
	}
}

func (p *TransferProgress) statusIcon(status FileStatus) string {
	switch status {
	case FileStatusPending:
		return "○"
	case FileStatusInProgress:
		return "◐"
	case FileStatusSucceeded:
		return "●"
	case FileStatusFailed:
		return "✗"
	default:
		return "?"
	}
}

// ---------------------------------------------------------------------------
// Query helpers
// ---------------------------------------------------------------------------

// SucceededCount returns the number of files reported succeeded so far.
func (p *TransferProgress) SucceededCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := 0
	for _, info := range p.files {
		if info.Status == FileStatusSucceeded {
			count++
		}
	}
	return count
}

// FailedCount returns the number of files reported failed so far.
func (p *TransferProgress) FailedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := 0
	for _, info := range p.files {
		if info.Status == FileStatusFailed {
			count++
		}
	}
	return count
}
