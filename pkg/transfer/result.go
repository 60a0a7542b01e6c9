package transfer

import (
	"context"
	"strings"

	"github.com/architect-io/mdpack/pkg/component"
	"github.com/architect-io/mdpack/pkg/componentset"
)

// DeployMessage is one check_status component entry after sanitation,
// tagged with which list (componentSuccesses/componentFailures) it came
// from.
type DeployMessage struct {
	ComponentStatusDetail
}

// FileResponse is one filesystem-path-scoped outcome of a deploy,
// synthesized by walking the deployed set's components and matching
// each one's sanitized "fullName#type" key against the status's
// messages.
type FileResponse struct {
	FullName      string
	ComponentType string
	Success       bool
	FilePath      string
	Problem       string
	ProblemType   string
	LineNumber    int
	ColumnNumber  int
	Changed       bool
	Created       bool
	Deleted       bool
}

// DeployResult is the terminal outcome of a deploy-kind Transfer.
type DeployResult struct {
	Success   bool
	Responses []FileResponse
}

// RetrieveResult is the terminal outcome of a retrieve-kind Transfer.
// ZipFile is the raw package payload; turning it back into source-format
// files is the caller's job (pkg/convert, with a ToSource transformer),
// since the write-back is a caller-driven step rather than something
// MetadataTransfer performs itself.
type RetrieveResult struct {
	Success        bool
	ZipFile        []byte
	FileProperties []ComponentStatusDetail
}

// sanitizeFullName rewrites known-wrong identifiers the remote service
// sometimes reports, e.g. Aura/LWC references prefixed "markup://c:".
// Unrecognized values pass through unchanged.
func sanitizeFullName(name string) string {
	if idx := strings.Index(name, "markup://c:"); idx >= 0 {
		return strings.TrimPrefix(name[idx:], "markup://c:")
	}
	return name
}

func messageKey(fullName, componentType string) string {
	return sanitizeFullName(fullName) + "#" + componentType
}

// buildMessageIndex groups a status poll's componentSuccesses and
// componentFailures by sanitized "fullName#type", preserving the
// possibility of multiple messages per component (e.g. one per failed
// field in a decomposed CustomObject).
func buildMessageIndex(details StatusDetails) map[string][]DeployMessage {
	index := map[string][]DeployMessage{}
	for _, d := range details.ComponentFailures {
		d.Success = false
		key := messageKey(d.FullName, d.ComponentType)
		index[key] = append(index[key], DeployMessage{d})
	}
	for _, d := range details.ComponentSuccesses {
		d.Success = true
		key := messageKey(d.FullName, d.ComponentType)
		index[key] = append(index[key], DeployMessage{d})
	}
	return index
}

// BuildDeployResult synthesizes per-file outcomes for every source-backed
// component in set from a terminal status poll. A component carrying both a
// success and a failure message (a known anomaly for bundle types whose
// children report independently) collapses to failure-only.
func BuildDeployResult(ctx context.Context, set *componentset.Set, status *StatusResult) (*DeployResult, error) {
	index := buildMessageIndex(status.Details)
	result := &DeployResult{Success: status.Success}

	for _, mc := range set.GetSourceComponents() {
		sc, ok := mc.(*component.SourceComponent)
		if !ok {
			continue
		}
		responses, err := componentFileResponses(ctx, sc, index)
		if err != nil {
			return nil, err
		}
		result.Responses = append(result.Responses, responses...)

		children, err := sc.Children(ctx)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			childResponses, err := componentFileResponses(ctx, child, index)
			if err != nil {
				return nil, err
			}
			result.Responses = append(result.Responses, childResponses...)
		}
	}
	return result, nil
}

func componentFileResponses(ctx context.Context, c *component.SourceComponent, index map[string][]DeployMessage) ([]FileResponse, error) {
	typeName := ""
	if c.Type() != nil {
		typeName = c.Type().Name
	}
	key := messageKey(c.FullName(), typeName)
	msgs := index[key]
	if len(msgs) == 0 {
		return nil, nil
	}

	hasFailure := false
	for _, m := range msgs {
		if !m.Success {
			hasFailure = true
			break
		}
	}

	var responses []FileResponse
	for _, m := range msgs {
		if hasFailure && m.Success {
			continue
		}
		if !m.Success {
			filePath := c.Content()
			if filePath == "" {
				filePath = c.XML()
			}
			responses = append(responses, FileResponse{
				FullName: c.FullName(), ComponentType: typeName, Success: false,
				FilePath: filePath, Problem: m.Problem, ProblemType: m.ProblemType,
				LineNumber: m.LineNumber, ColumnNumber: m.ColumnNumber,
			})
			continue
		}

		files, err := contentFilePaths(ctx, c)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			responses = append(responses, FileResponse{
				FullName: c.FullName(), ComponentType: typeName, Success: true,
				FilePath: f, Changed: m.Changed, Created: m.Created, Deleted: m.Deleted,
			})
		}
		if c.HasXML() {
			responses = append(responses, FileResponse{
				FullName: c.FullName(), ComponentType: typeName, Success: true,
				FilePath: c.XML(), Changed: m.Changed, Created: m.Created, Deleted: m.Deleted,
			})
		}
	}
	return responses, nil
}

// contentFilePaths lists every leaf file under a component's content
// path, or a single-element slice if content is itself a file.
func contentFilePaths(ctx context.Context, c *component.SourceComponent) ([]string, error) {
	if !c.HasContent() {
		return nil, nil
	}
	isDir, err := c.Tree().IsDirectory(c.Content())
	if err != nil {
		return nil, err
	}
	if !isDir {
		return []string{c.Content()}, nil
	}

	var files []string
	var walk func(dir string) error
	walk = func(dir string) error {
		names, err := c.Tree().ReadDirectory(dir)
		if err != nil {
			return err
		}
		for _, name := range names {
			p := dir + "/" + name
			if c.Ignore() != nil && c.Ignore().Denies(p) {
				continue
			}
			isDir, err := c.Tree().IsDirectory(p)
			if err != nil {
				return err
			}
			if isDir {
				if err := walk(p); err != nil {
					return err
				}
				continue
			}
			files = append(files, p)
		}
		return nil
	}
	if err := walk(c.Content()); err != nil {
		return nil, err
	}
	return files, nil
}
