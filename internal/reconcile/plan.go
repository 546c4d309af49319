// Package reconcile computes and applies the minimal set of forum actions
// that makes the remote topic set mirror the local documentation tree.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/navtable"
)

// Kind is the action decided for one document or navigation row.
type Kind string

const (
	ActionCreate Kind = "create"
	ActionUpdate Kind = "update"
	ActionDelete Kind = "delete"
	ActionSkip   Kind = "skip"
)

// Task pairs an action with the local document and the prior navigation row
// it concerns. Doc is zero for deletes; Row is zero for creates.
type Task struct {
	Kind Kind
	Doc  models.Document
	Row  navtable.Row
}

// RemoteState is the lazily fetched state of the topics referenced by the
// prior navigation table, keyed by table path.
type RemoteState struct {
	// Sums holds the fingerprint of each reachable topic's current body.
	Sums map[string]string
	// Missing marks rows whose topic no longer exists on the server.
	Missing map[string]bool
}

// FetchRemoteState resolves the current fingerprint of every linked prior
// row with bounded concurrency. Fetch failures other than not-found are
// logged and leave the path out of Sums, which forces a content update,
// the safe direction when the remote state is unknown.
func FetchRemoteState(ctx context.Context, forum Forum, rows []navtable.Row, concurrency int, logger *slog.Logger) *RemoteState {
	state := &RemoteState{
		Sums:    make(map[string]string, len(rows)),
		Missing: make(map[string]bool),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for _, row := range rows {
		if row.Link == "" {
			continue
		}
		g.Go(func() error {
			topic, err := forum.Topic(gctx, row.Link)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, apperr.ErrNotFound):
				state.Missing[row.Path] = true
			case err != nil:
				logger.Warn("fetch remote topic failed",
					slog.String("path", row.Path),
					slog.String("url", row.Link),
					slog.String("error", err.Error()))
			default:
				state.Sums[row.Path] = checksum.Fingerprint(topic.Content)
			}
			return nil
		})
	}
	_ = g.Wait()
	return state
}

// Plan diffs the local tree against the prior navigation rows and returns
// the action list: creates, updates, and skips in document order, followed
// by deletes for orphaned rows in their prior table order.
//
// Matching is by table path, never by title: titles are display only, the
// path is identity. Plan is pure: it issues no remote calls.
func Plan(docs []models.Document, rows []navtable.Row, remote *RemoteState) []Task {
	if remote == nil {
		remote = &RemoteState{}
	}

	prior := make(map[string]navtable.Row, len(rows))
	for _, row := range rows {
		// First occurrence wins; a duplicate path cannot be addressed and
		// falls through to the orphan pass below.
		if _, ok := prior[row.Path]; !ok {
			prior[row.Path] = row
		}
	}

	local := make(map[string]bool, len(docs))
	var tasks []Task
	for _, doc := range docs {
		local[doc.TablePath] = true

		row, ok := prior[doc.TablePath]
		switch {
		case !ok:
			tasks = append(tasks, Task{Kind: ActionCreate, Doc: doc})
		case doc.IsGroup():
			if row.Link == "" {
				tasks = append(tasks, Task{Kind: ActionSkip, Doc: doc, Row: row})
			} else {
				// The document became a bare grouping; its old topic is
				// orphaned content and follows the delete policy.
				tasks = append(tasks, Task{Kind: ActionDelete, Doc: doc, Row: row})
			}
		case row.Link == "" || remote.Missing[doc.TablePath]:
			// Never created, or the linked topic is gone: (re)create.
			tasks = append(tasks, Task{Kind: ActionCreate, Doc: doc})
		default:
			sum, known := remote.Sums[doc.TablePath]
			if known && sum == doc.Checksum {
				tasks = append(tasks, Task{Kind: ActionSkip, Doc: doc, Row: row})
			} else {
				tasks = append(tasks, Task{Kind: ActionUpdate, Doc: doc, Row: row})
			}
		}
	}

	// Orphaned prior rows: the local file was removed.
	for _, row := range rows {
		if local[row.Path] && prior[row.Path] == row {
			continue
		}
		tasks = append(tasks, Task{Kind: ActionDelete, Row: row})
	}
	return tasks
}
