// Package transfer implements MetadataTransfer, the poll-driven state
// machine wrapping a deploy or retrieve operation against a remote
// metadata service. The wire SDK behind the RemoteDriver interface is an
// external collaborator; pkg/transfer/simulated provides an in-memory
// implementation for tests.
//
// Progress is reported via synchronous callbacks rather than channels.
// Polling cadence is cooperative (checked once per tick, not pre-emptible
// mid-request), so a callback invoked from the poll goroutine is simpler
// and just as correct as a channel the caller would have to select on
// anyway (DESIGN.md open question: "events as channels vs callbacks").
package transfer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/architect-io/mdpack/pkg/componentset"
	"github.com/architect-io/mdpack/pkg/convert"
	mdpackerrors "github.com/architect-io/mdpack/pkg/errors"
	"github.com/architect-io/mdpack/pkg/writer"
)

// Kind selects which of the two remote operations a Transfer drives.
type Kind int

const (
	KindDeploy Kind = iota
	KindRetrieve
)

// DefaultPollInterval is used by Start when the caller passes zero.
const DefaultPollInterval = 2 * time.Second

// Result is the terminal event payload delivered to OnFinish. When the
// remote operation reaches a terminal status, the one of Deploy or
// Retrieve matching Kind is set; a transfer that ends in an error or a
// local cancellation carries neither.
type Result struct {
	Status   State
	Err      error
	Deploy   *DeployResult
	Retrieve *RetrieveResult
}

// Options configures a Transfer.
type Options struct {
	Driver RemoteDriver
	Kind   Kind
	Set    *componentset.Set

	// Converter builds the metadata-format zip uploaded by a deploy.
	// Required for KindDeploy.
	Converter *convert.Converter

	APIVersion     string
	DeployOptions  DeployOptions
	IncludeDetails bool

	// OnUpdate fires once per poll tick while the transfer is still
	// InProgress. OnFinish fires exactly once, with the terminal Result.
	OnUpdate func(StatusResult)
	OnFinish func(Result)

	// Logger receives lifecycle diagnostics; defaults to
	// logrus.StandardLogger().
	Logger logrus.FieldLogger
}

// Transfer drives one deploy or retrieve operation through its remote
// lifecycle. A Transfer is used once; construct a new one per operation.
type Transfer struct {
	opts   Options
	log    logrus.FieldLogger
	state  atomic.Value // State
	id     string
	cancel atomic.Bool
}

// New constructs a Transfer in its Pending state.
func New(opts Options) *Transfer {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	t := &Transfer{opts: opts, log: log}
	t.state.Store(StatePending)
	return t
}

// State returns the Transfer's current lifecycle state.
func (t *Transfer) State() State {
	return t.state.Load().(State)
}

// Cancel requests cancellation. It is cooperative: the next poll tick
// calls the driver's Cancel instead of CheckStatus, and the transfer
// only actually moves to Canceled once the driver confirms the remote
// operation has wound down.
func (t *Transfer) Cancel() {
	t.cancel.Store(true)
}

// Start submits the operation and polls until it reaches a terminal
// state, invoking OnUpdate/OnFinish along the way. It blocks until the
// transfer finishes, is canceled, or ctx is done. A zero pollInterval
// selects DefaultPollInterval.
func (t *Transfer) Start(ctx context.Context, pollInterval time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	id, err := t.pre(ctx)
	if err != nil {
		t.state.Store(StateFailed)
		t.finish(Result{Status: StateFailed, Err: err})
		return err
	}
	t.id = id
	t.state.Store(StateInProgress)
	t.log.WithField("id", id).WithField("kind", t.opts.Kind).Debug("transfer started")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.state.Store(StateCanceled)
			t.finish(Result{Status: StateCanceled, Err: ctx.Err()})
			return ctx.Err()
		case <-ticker.C:
		}

		if t.cancel.Load() {
			done, err := t.opts.Driver.Cancel(ctx, t.id)
			if err != nil {
				wrapped := mdpackerrors.RequestFailure("cancel", err)
				t.state.Store(StateFailed)
				t.finish(Result{Status: StateFailed, Err: wrapped})
				return wrapped
			}
			if !done {
				continue
			}
			t.state.Store(StateCanceled)
			t.log.WithField("id", t.id).Debug("transfer canceled")
			t.finish(Result{Status: StateCanceled})
			return nil
		}

		status, err := t.opts.Driver.CheckStatus(ctx, t.id, t.opts.IncludeDetails)
		if err != nil {
			wrapped := mdpackerrors.RequestFailure("check_status", err)
			t.state.Store(StateFailed)
			t.finish(Result{Status: StateFailed, Err: wrapped})
			return wrapped
		}

		t.state.Store(status.Status)
		t.log.WithField("id", t.id).WithField("status", status.Status).Debug("poll tick")
		if status.Status.IsTerminal() {
			result, err := t.post(ctx, status)
			if err != nil {
				t.state.Store(StateFailed)
				t.finish(Result{Status: StateFailed, Err: err})
				return err
			}
			t.finish(*result)
			return nil
		}

		if t.opts.OnUpdate != nil {
			t.opts.OnUpdate(*status)
		}
	}
}

func (t *Transfer) finish(r Result) {
	if t.opts.OnFinish != nil {
		t.opts.OnFinish(r)
	}
}

func (t *Transfer) pre(ctx context.Context) (string, error) {
	switch t.opts.Kind {
	case KindDeploy:
		return t.preDeploy(ctx)
	case KindRetrieve:
		return t.preRetrieve(ctx)
	default:
		return "", mdpackerrors.Unsupported("transfer", "unknown kind")
	}
}

func (t *Transfer) preDeploy(ctx context.Context) (string, error) {
	if len(t.opts.Set.GetSourceComponents()) == 0 {
		return "", mdpackerrors.DeployNoSource()
	}

	zw := writer.NewZipWriter()
	if err := t.opts.Converter.Convert(ctx, t.opts.Set, convert.ToMetadata, zw); err != nil {
		return "", err
	}

	pkgXML, err := t.opts.Set.GetPackageXML(t.opts.APIVersion, "    ")
	if err != nil {
		return "", err
	}
	manifestWF := writer.WriterFormat{WriteInfos: []writer.WriteInstruction{{Bytes: pkgXML, Output: "package.xml"}}}
	if err := zw.WriteComponent(ctx, manifestWF); err != nil {
		return "", err
	}

	zipBytes, err := zw.Finalize()
	if err != nil {
		return "", err
	}
	return t.opts.Driver.Deploy(ctx, zipBytes, t.opts.DeployOptions)
}

func (t *Transfer) preRetrieve(ctx context.Context) (string, error) {
	pkgXML, err := t.opts.Set.GetPackageXML(t.opts.APIVersion, "    ")
	if err != nil {
		return "", err
	}
	return t.opts.Driver.Retrieve(ctx, pkgXML)
}

func (t *Transfer) post(ctx context.Context, status *StatusResult) (*Result, error) {
	switch t.opts.Kind {
	case KindDeploy:
		deployResult, err := BuildDeployResult(ctx, t.opts.Set, status)
		if err != nil {
			return nil, err
		}
		return &Result{Status: status.Status, Deploy: deployResult}, nil
	case KindRetrieve:
		return &Result{Status: status.Status, Retrieve: &RetrieveResult{
			Success:        status.Success,
			ZipFile:        status.Details.ZipFile,
			FileProperties: append(status.Details.ComponentSuccesses, status.Details.ComponentFailures...),
		}}, nil
	default:
		return nil, mdpackerrors.Unsupported("transfer", "unknown kind")
	}
}
