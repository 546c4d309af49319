package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/discourse"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/navtable"
)

// Forum is the slice of the Discourse client the engine drives.
type Forum interface {
	Topic(ctx context.Context, url string) (*discourse.Topic, error)
	CreateTopic(ctx context.Context, title, content string) (string, error)
	UpdateTopic(ctx context.Context, url, content string) error
	DeleteTopic(ctx context.Context, url string) error
}

// Result is the outcome of applying one action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultSkip    Result = "skip"
	ResultFailure Result = "failure"
)

// ActionRecord is the reported outcome for one document. URL is empty when
// no topic exists for the record (directory groupings, dry-run creates);
// such records are excluded from the URL-keyed action map.
type ActionRecord struct {
	URL    string `json:"url,omitempty"`
	Path   string `json:"path"`
	Kind   Kind   `json:"action"`
	Result Result `json:"result"`
	Error  string `json:"error,omitempty"`
}

// Report accumulates the outcome of one reconciliation run.
type Report struct {
	Records  []ActionRecord
	IndexURL string
	Server   discourse.ServerConfig
}

// URLsWithActions returns the action map keyed by topic URL. Records
// without a URL (planned-only or grouping rows) are omitted.
func (r *Report) URLsWithActions() map[string]string {
	out := make(map[string]string, len(r.Records))
	for _, rec := range r.Records {
		if rec.URL == "" {
			continue
		}
		out[rec.URL] = string(rec.Result)
	}
	return out
}

// Options control one reconciliation run.
type Options struct {
	DryRun       bool
	DeleteTopics bool
	Concurrency  int
}

// Runner applies a plan against the forum, phase by phase: all creates,
// then updates, then deletes, then exactly one index write. Actions within
// a phase run with bounded concurrency; phases never overlap, so the index
// write is a synchronization barrier over the whole run.
type Runner struct {
	forum  Forum
	logger *slog.Logger
	opts   Options
}

// NewRunner creates a Runner.
func NewRunner(forum Forum, logger *slog.Logger, opts Options) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Runner{forum: forum, logger: logger, opts: opts}
}

// Apply executes the plan and rebuilds the index topic last. A failure on
// one document is recorded and does not stop the others; only
// infrastructure failures (rejected credentials, cancelled context) abort
// the run. The returned Report is valid even when err is non-nil.
func (r *Runner) Apply(ctx context.Context, tasks []Task, idx *models.Index) (*Report, error) {
	report := &Report{IndexURL: idx.URL}

	// Final navigation rows, one per document-carrying task, in document
	// order. Creates fill their links in as the URLs resolve.
	rows := make([]navtable.Row, len(tasks))
	hasRow := make([]bool, len(tasks))
	for i, task := range tasks {
		if task.Doc.TablePath == "" {
			continue
		}
		link := task.Row.Link
		if task.Kind == ActionCreate || task.Doc.IsGroup() {
			link = ""
		}
		hasRow[i] = true
		rows[i] = navtable.Row{
			Level: task.Doc.Level,
			Path:  task.Doc.TablePath,
			Title: task.Doc.Title,
			Link:  link,
		}
	}

	records := make([]*ActionRecord, len(tasks))
	phase := func(kind Kind, run func(context.Context, Task) (*ActionRecord, error)) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.opts.Concurrency)
		for i, task := range tasks {
			if task.Kind != kind {
				continue
			}
			g.Go(func() error {
				rec, fatal := run(gctx, task)
				records[i] = rec
				if rec != nil && rec.URL != "" && task.Kind == ActionCreate {
					rows[i].Link = rec.URL
				}
				return fatal
			})
		}
		return g.Wait()
	}

	var runErr error
	for _, step := range []struct {
		kind Kind
		run  func(context.Context, Task) (*ActionRecord, error)
	}{
		{ActionCreate, r.create},
		{ActionUpdate, r.update},
		{ActionSkip, r.skip},
		{ActionDelete, r.delete},
	} {
		if err := phase(step.kind, step.run); err != nil {
			runErr = fmt.Errorf("reconcile: %s phase: %w", step.kind, err)
			break
		}
	}

	for _, rec := range records {
		if rec != nil {
			report.Records = append(report.Records, *rec)
		}
	}

	if runErr != nil {
		return report, runErr
	}

	// Index write: the final barrier. Deleted documents were never given a
	// row, so the new table cannot reference a removed topic.
	final := make([]navtable.Row, 0, len(tasks))
	for i, task := range tasks {
		if !hasRow[i] {
			continue
		}
		if task.Kind == ActionDelete && !task.Doc.IsGroup() {
			continue
		}
		final = append(final, rows[i])
	}
	rec, fatal := r.writeIndex(ctx, idx, final, report)
	report.Records = append(report.Records, rec)
	if fatal != nil {
		return report, fmt.Errorf("reconcile: index write: %w", fatal)
	}
	return report, nil
}

// fatalOrRecord classifies an action error: authentication rejections abort
// the run, everything else becomes a per-item failure record.
func fatalOrRecord(rec *ActionRecord, err error) (*ActionRecord, error) {
	rec.Result = ResultFailure
	rec.Error = err.Error()
	if errors.Is(err, apperr.ErrUnauthorized) {
		return rec, err
	}
	return rec, nil
}

func (r *Runner) create(ctx context.Context, task Task) (*ActionRecord, error) {
	rec := &ActionRecord{Path: task.Doc.TablePath, Kind: ActionCreate}
	switch {
	case task.Doc.IsGroup():
		// Groupings get a navigation row but no topic.
		rec.Result = ResultSuccess
	case r.opts.DryRun:
		r.logger.Info("would create topic",
			slog.String("path", task.Doc.TablePath),
			slog.String("title", task.Doc.Title))
		rec.Result = ResultSkip
	default:
		url, err := r.forum.CreateTopic(ctx, task.Doc.Title, task.Doc.Content)
		if err != nil {
			r.logger.Warn("create topic failed",
				slog.String("path", task.Doc.TablePath),
				slog.String("error", err.Error()))
			return fatalOrRecord(rec, err)
		}
		r.logger.Info("topic created",
			slog.String("path", task.Doc.TablePath),
			slog.String("url", url))
		rec.URL = url
		rec.Result = ResultSuccess
	}
	return rec, nil
}

func (r *Runner) update(ctx context.Context, task Task) (*ActionRecord, error) {
	rec := &ActionRecord{Path: task.Doc.TablePath, Kind: ActionUpdate, URL: task.Row.Link}
	if r.opts.DryRun {
		r.logger.Info("would update topic",
			slog.String("path", task.Doc.TablePath),
			slog.String("url", task.Row.Link))
		rec.Result = ResultSkip
		return rec, nil
	}
	if err := r.forum.UpdateTopic(ctx, task.Row.Link, task.Doc.Content); err != nil {
		r.logger.Warn("update topic failed",
			slog.String("path", task.Doc.TablePath),
			slog.String("error", err.Error()))
		return fatalOrRecord(rec, err)
	}
	r.logger.Info("topic updated",
		slog.String("path", task.Doc.TablePath),
		slog.String("url", task.Row.Link))
	rec.Result = ResultSuccess
	return rec, nil
}

func (r *Runner) skip(_ context.Context, task Task) (*ActionRecord, error) {
	r.logger.Debug("topic unchanged", slog.String("path", task.Doc.TablePath))
	// Unchanged content still counts as a successful outcome: local and
	// remote agree, which is the goal state.
	return &ActionRecord{
		Path:   task.Doc.TablePath,
		Kind:   ActionSkip,
		URL:    task.Row.Link,
		Result: ResultSuccess,
	}, nil
}

func (r *Runner) delete(ctx context.Context, task Task) (*ActionRecord, error) {
	rec := &ActionRecord{Path: task.Row.Path, Kind: ActionDelete, URL: task.Row.Link}
	switch {
	case task.Row.Link == "":
		// Orphaned grouping row: nothing exists remotely.
		rec.Result = ResultSuccess
	case r.opts.DryRun:
		r.logger.Info("would delete topic", slog.String("url", task.Row.Link))
		rec.Result = ResultSkip
	case !r.opts.DeleteTopics:
		// Policy: leave the remote topic alone, but unlink it from the
		// index. Skip means "not touched", not "still linked".
		r.logger.Info("delete disabled, topic unlinked only",
			slog.String("url", task.Row.Link))
		rec.Result = ResultSkip
	default:
		if err := r.forum.DeleteTopic(ctx, task.Row.Link); err != nil {
			r.logger.Warn("delete topic failed",
				slog.String("url", task.Row.Link),
				slog.String("error", err.Error()))
			return fatalOrRecord(rec, err)
		}
		r.logger.Info("topic deleted", slog.String("url", task.Row.Link))
		rec.Result = ResultSuccess
	}
	return rec, nil
}

// IndexBody assembles the index topic body: the local index document
// followed by the navigation section.
func IndexBody(content string, rows []navtable.Row) string {
	table := navtable.Serialize(rows)
	if strings.TrimSpace(content) == "" {
		return table
	}
	return strings.TrimRight(content, "\n") + "\n\n" + table
}

// writeIndex rebuilds the index topic exactly once, after every other
// mutation has settled.
func (r *Runner) writeIndex(ctx context.Context, idx *models.Index, rows []navtable.Row, report *Report) (ActionRecord, error) {
	body := IndexBody(idx.Content, rows)

	if idx.URL == "" {
		rec := ActionRecord{Path: "index", Kind: ActionCreate}
		if r.opts.DryRun {
			r.logger.Info("would create index topic", slog.String("title", idx.Title))
			rec.Result = ResultSkip
			return rec, nil
		}
		url, err := r.forum.CreateTopic(ctx, idx.Title, body)
		if err != nil {
			recP, fatal := fatalOrRecord(&rec, err)
			return *recP, fatal
		}
		report.IndexURL = url
		rec.URL = url
		rec.Result = ResultSuccess
		r.logger.Info("index topic created", slog.String("url", url))
		return rec, nil
	}

	rec := ActionRecord{Path: "index", Kind: ActionUpdate, URL: idx.URL}
	if checksum.Fingerprint(body) == checksum.Fingerprint(idx.ServerContent) {
		rec.Kind = ActionSkip
		rec.Result = ResultSuccess
		r.logger.Debug("index topic unchanged", slog.String("url", idx.URL))
		return rec, nil
	}
	if r.opts.DryRun {
		r.logger.Info("would update index topic", slog.String("url", idx.URL))
		rec.Result = ResultSkip
		return rec, nil
	}
	if err := r.forum.UpdateTopic(ctx, idx.URL, body); err != nil {
		recP, fatal := fatalOrRecord(&rec, err)
		return *recP, fatal
	}
	rec.Result = ResultSuccess
	r.logger.Info("index topic updated", slog.String("url", idx.URL))
	return rec, nil
}
