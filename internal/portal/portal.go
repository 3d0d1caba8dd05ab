// Package portal drives the co-op job board through a real browser. The
// Session interface is what the pipeline consumes; the rod implementation is
// the only production one, tests substitute fakes.
package portal

import (
	"context"
	"errors"
	"fmt"

	"github.com/amanzav/geese/internal/types"
)

// ErrAuth marks a credential or two-factor failure. Always fatal: the run
// aborts instead of retrying against a locked account.
var ErrAuth = errors.New("portal: authentication failed")

// FetchError wraps a per-job scrape failure. Isolated: the pipeline logs it
// and moves to the next job.
type FetchError struct {
	JobID string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("portal: fetch job %s: %v", e.JobID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ApplyOutcome reports how one application attempt ended on the portal side.
type ApplyOutcome struct {
	Status types.ApplicationStatus
	Detail string
}

// Session is one authenticated browser session against the board.
type Session interface {
	// Login authenticates with the configured credentials, waiting for the
	// two-factor prompt when the portal raises one. Returns ErrAuth on
	// rejection.
	Login(ctx context.Context) error

	// ListJobs enumerates the rows of the named posting folder.
	ListJobs(ctx context.Context, folder string) ([]types.JobRow, error)

	// FetchDetail opens the posting behind a row and scrapes the full record.
	// Failures come back as *FetchError.
	FetchDetail(ctx context.Context, row types.JobRow) (*types.Job, error)

	// SaveToFolder files the posting into the named shortlist folder.
	// Saving an already-saved posting is a no-op.
	SaveToFolder(ctx context.Context, jobID, folder string) error

	// UploadDocument attaches a local file to the posting's application
	// package.
	UploadDocument(ctx context.Context, jobID, filePath string) error

	// Apply submits the application with the given document names and
	// reports the outcome. Postings that route to an external site or
	// demand documents beyond the prepared set come back as skipped, not
	// errors.
	Apply(ctx context.Context, jobID string, documents []string) (*ApplyOutcome, error)

	// Close tears the browser down. Safe to call more than once.
	Close() error
}
