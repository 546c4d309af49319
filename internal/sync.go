package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/discourse"
	"github.com/starford/ansuz/internal/docs"
	"github.com/starford/ansuz/internal/metadata"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/navtable"
	"github.com/starford/ansuz/internal/reconcile"
	"github.com/starford/ansuz/internal/storage"
)

// Syncer wires the documentation tree, the forum client and the
// reconciliation engine together. One Syncer serves any number of runs;
// each run re-reads the tree and the remote index from scratch.
type Syncer struct {
	cfg    *Config
	logger *slog.Logger
	store  storage.Provider
	forum  *discourse.Client
}

// NewSyncer builds a Syncer from the application configuration.
func NewSyncer(cfg *Config, logger *slog.Logger) (*Syncer, error) {
	store, err := storage.NewFS(cfg.Docs.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	forum, err := discourse.New(discourse.Config{
		Host:        cfg.Discourse.Host,
		APIUsername: cfg.Discourse.APIUsername,
		APIKey:      cfg.Discourse.APIKey,
		CategoryID:  cfg.Discourse.CategoryID,
		MaxRetries:  cfg.Sync.Retries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init discourse client: %w", err)
	}

	return &Syncer{cfg: cfg, logger: logger, store: store, forum: forum}, nil
}

// Docs re-reads the documentation tree. Exposed for the MCP list_docs tool.
func (s *Syncer) Docs() (*docs.Tree, error) {
	return docs.Read(s.store)
}

// Sync runs one full reconciliation: read the local tree, fetch the remote
// index, plan, apply, and write the action outputs. dryRun overrides the
// configured dry-run flag so callers can request a plan-only pass.
func (s *Syncer) Sync(ctx context.Context, dryRun bool) (*reconcile.Report, error) {
	meta, err := metadata.Read(s.cfg.Docs.Base)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	tree, err := docs.Read(s.store)
	if err != nil {
		return nil, fmt.Errorf("read docs tree: %w", err)
	}
	s.logger.Info("documentation tree read",
		slog.Int("documents", len(tree.Docs)),
		slog.String("root", s.store.Root()))

	idx, rows, err := s.fetchIndex(ctx, meta, tree)
	if err != nil {
		return nil, err
	}

	remote := reconcile.FetchRemoteState(ctx, s.forum, rows, s.cfg.Sync.Concurrency, s.logger)
	tasks := reconcile.Plan(tree.Docs, rows, remote)

	runner := reconcile.NewRunner(s.forum, s.logger, reconcile.Options{
		DryRun:       dryRun || s.cfg.Sync.DryRun,
		DeleteTopics: s.cfg.Sync.DeleteTopics,
		Concurrency:  s.cfg.Sync.Concurrency,
	})
	report, applyErr := runner.Apply(ctx, tasks, idx)
	report.Server = s.forum.ServerConfig()

	if err := s.writeOutputs(report); err != nil {
		s.logger.Warn("write outputs failed", slog.String("error", err.Error()))
	}
	return report, applyErr
}

// fetchIndex resolves the index topic named by metadata.yaml. An absent docs
// key means the index has never been published and must be created; the
// write-permission preflight runs against the existing topic so credential
// problems surface before any mutation.
func (s *Syncer) fetchIndex(ctx context.Context, meta metadata.Metadata, tree *docs.Tree) (*models.Index, []navtable.Row, error) {
	idx := &models.Index{
		Title:   meta.IndexTitle(),
		Content: tree.IndexContent,
	}
	if meta.Docs == "" {
		s.logger.Info("no docs key in metadata, index topic will be created")
		return idx, nil, nil
	}

	if err := s.forum.ValidateURL(meta.Docs); err != nil {
		return nil, nil, fmt.Errorf("metadata docs key: %w", err)
	}
	topic, err := s.forum.Topic(ctx, meta.Docs)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch index topic: %w", err)
	}
	if !topic.CanEdit {
		return nil, nil, fmt.Errorf("index topic %s is not editable with these credentials: %w",
			topic.URL, apperr.ErrUnauthorized)
	}

	idx.URL = topic.URL
	idx.ServerContent = topic.Content

	rows, err := navtable.Parse(topic.Content)
	if err != nil {
		// A damaged table is recoverable: treat every local document as new
		// and let the run rebuild the table from scratch.
		s.logger.Warn("navigation table unreadable, rebuilding",
			slog.String("url", topic.URL),
			slog.String("error", err.Error()))
		return idx, nil, nil
	}
	return idx, rows, nil
}

// writeOutputs appends the machine-readable results of a run to the
// configured output file as key=value lines, one run after another.
func (s *Syncer) writeOutputs(report *reconcile.Report) error {
	urls, err := json.Marshal(report.URLsWithActions())
	if err != nil {
		return fmt.Errorf("marshal action map: %w", err)
	}
	server, err := json.Marshal(report.Server)
	if err != nil {
		return fmt.Errorf("marshal server config: %w", err)
	}

	s.logger.Info("run finished",
		slog.String("index_url", report.IndexURL),
		slog.String("urls_with_actions", string(urls)))

	if s.cfg.Output.Path == "" {
		return nil
	}
	f, err := os.OpenFile(s.cfg.Output.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "index_url=%s\nurls_with_actions=%s\nserver_config=%s\n",
		report.IndexURL, urls, server)
	if err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}

// ReportFailures returns the failure records of a run, for callers that
// need to decide an exit status.
func ReportFailures(report *reconcile.Report) []reconcile.ActionRecord {
	if report == nil {
		return nil
	}
	var failed []reconcile.ActionRecord
	for _, rec := range report.Records {
		if rec.Result == reconcile.ResultFailure {
			failed = append(failed, rec)
		}
	}
	return failed
}

// IsFatal reports whether a run error should abort the process rather than
// be retried on the next watch cycle.
func IsFatal(err error) bool {
	return errors.Is(err, apperr.ErrUnauthorized)
}
