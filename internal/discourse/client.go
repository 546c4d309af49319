// Package discourse is a thin client for the Discourse API, scoped to the
// operations reconciliation needs: fetch, create, update, and delete topics
// in a single category.
package discourse

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
)

// topicTags are applied to every topic the tool creates.
var topicTags = []string{"docs"}

// defaultEditReason is recorded on topic updates.
const defaultEditReason = "Documentation updated"

// Config holds the connection settings for one Discourse server.
type Config struct {
	Host        string // hostname without protocol, e.g. discourse.example.com
	APIUsername string
	APIKey      string
	CategoryID  int

	// BaseURL overrides the derived https://Host base. Used by tests that
	// point the client at a local server.
	BaseURL string

	// Retry tuning; zero values take the defaults below.
	MaxRetries  int
	BackoffBase time.Duration
	Timeout     time.Duration
}

const (
	defaultMaxRetries  = 3
	defaultBackoffBase = 500 * time.Millisecond
	defaultTimeout     = 30 * time.Second
)

// ServerConfig is the opaque descriptor of the resolved server handed to
// downstream tooling, so it can re-address the same forum and category
// without re-deriving credentials.
type ServerConfig struct {
	Hostname    string `json:"hostname"`
	APIUsername string `json:"api_username"`
	APIKey      string `json:"api_key"`
	CategoryID  int    `json:"category_id"`
}

// Topic is the remote state of one forum topic, read through its first post.
type Topic struct {
	URL     string
	ID      int
	Slug    string
	PostID  int
	Content string // raw markdown of the first post
	CanEdit bool
}

// Client talks to one Discourse server. All calls take a context and apply
// the retry policy in retry.go; mutating calls are only ever issued by the
// reconciliation engine, never under dry-run.
type Client struct {
	baseURL     string
	apiUsername string
	apiKey      string
	categoryID  int
	http        *http.Client
	logger      *slog.Logger
	maxRetries  int
	backoffBase time.Duration
}

// New creates a Client. The host must not include the protocol; the client
// always speaks HTTPS to the real server.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	host := strings.ToLower(strings.TrimSpace(cfg.Host))
	if host == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("discourse: host must not be empty")
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return nil, fmt.Errorf("discourse: host must not include the protocol, got %q", cfg.Host)
	}

	base := cfg.BaseURL
	if base == "" {
		base = "https://" + host
	}
	base = strings.TrimRight(base, "/")

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = defaultBackoffBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:     base,
		apiUsername: cfg.APIUsername,
		apiKey:      cfg.APIKey,
		categoryID:  cfg.CategoryID,
		http:        &http.Client{Timeout: timeout},
		logger:      logger,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
	}, nil
}

// ServerConfig returns the descriptor for downstream tools.
func (c *Client) ServerConfig() ServerConfig {
	return ServerConfig{
		Hostname:    strings.TrimPrefix(strings.TrimPrefix(c.baseURL, "https://"), "http://"),
		APIUsername: c.apiUsername,
		APIKey:      c.apiKey,
		CategoryID:  c.categoryID,
	}
}

// BaseURL returns the server base, e.g. https://discourse.example.com.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// topicInfo identifies a topic from its URL.
type topicInfo struct {
	slug string
	id   int
}

// ValidateURL checks that rawURL addresses a topic on this server:
// it must start with the configured base and its path must be exactly
// /t/<slug>/<numeric id>.
func (c *Client) ValidateURL(rawURL string) error {
	_, err := c.topicInfoFromURL(rawURL)
	return err
}

func (c *Client) topicInfoFromURL(rawURL string) (topicInfo, error) {
	if !strings.HasPrefix(rawURL, c.baseURL) {
		return topicInfo{}, fmt.Errorf("discourse: url %q is not on %s", rawURL, c.baseURL)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return topicInfo{}, fmt.Errorf("discourse: parse url %q: %w", rawURL, err)
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "t" || parts[1] == "" {
		return topicInfo{}, fmt.Errorf("discourse: url %q is not a topic url", rawURL)
	}
	id, err := strconv.Atoi(parts[2])
	if err != nil {
		return topicInfo{}, fmt.Errorf("discourse: url %q has a non-numeric topic id", rawURL)
	}
	return topicInfo{slug: parts[1], id: id}, nil
}

// topicURL builds the canonical URL for a slug/id pair.
func (c *Client) topicURL(slug string, id int) string {
	return fmt.Sprintf("%s/t/%s/%d", c.baseURL, slug, id)
}

// topicResponse mirrors the topic JSON we consume.
type topicResponse struct {
	PostStream struct {
		Posts []postResponse `json:"posts"`
	} `json:"post_stream"`
}

type postResponse struct {
	ID          int    `json:"id"`
	PostNumber  int    `json:"post_number"`
	Raw         string `json:"raw"`
	Cooked      string `json:"cooked"`
	CanEdit     bool   `json:"can_edit"`
	UserDeleted bool   `json:"user_deleted"`
	TopicID     int    `json:"topic_id"`
	TopicSlug   string `json:"topic_slug"`
}

// Topic fetches the remote state of a topic through its first post.
// Returns an error wrapping apperr.ErrNotFound when the topic does not
// exist or has been deleted by its author.
func (c *Client) Topic(ctx context.Context, rawURL string) (*Topic, error) {
	info, err := c.topicInfoFromURL(rawURL)
	if err != nil {
		return nil, err
	}

	var resp topicResponse
	path := fmt.Sprintf("/t/%s/%d.json?include_raw=true", info.slug, info.id)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("discourse: retrieve topic %s: %w", rawURL, err)
	}

	for _, post := range resp.PostStream.Posts {
		if post.PostNumber != 1 {
			continue
		}
		if post.UserDeleted {
			return nil, fmt.Errorf("discourse: topic %s has been deleted: %w", rawURL, apperr.ErrNotFound)
		}
		return &Topic{
			URL:     c.topicURL(info.slug, info.id),
			ID:      info.id,
			Slug:    info.slug,
			PostID:  post.ID,
			Content: post.Raw,
			CanEdit: post.CanEdit,
		}, nil
	}
	return nil, fmt.Errorf("discourse: topic %s returned no first post", rawURL)
}

// CheckWritePermission reports whether the credentials may edit the topic.
func (c *Client) CheckWritePermission(ctx context.Context, rawURL string) (bool, error) {
	topic, err := c.Topic(ctx, rawURL)
	if err != nil {
		return false, err
	}
	return topic.CanEdit, nil
}

// createPostRequest is the payload for creating a topic via /posts.json.
type createPostRequest struct {
	Title    string   `json:"title"`
	Raw      string   `json:"raw"`
	Category int      `json:"category"`
	Tags     []string `json:"tags"`
}

type createPostResponse struct {
	ID        int    `json:"id"`
	TopicID   int    `json:"topic_id"`
	TopicSlug string `json:"topic_slug"`
}

// CreateTopic creates a topic in the configured category and returns its URL.
func (c *Client) CreateTopic(ctx context.Context, title, content string) (string, error) {
	payload := createPostRequest{
		Title:    title,
		Raw:      content,
		Category: c.categoryID,
		Tags:     topicTags,
	}
	var resp createPostResponse
	if err := c.do(ctx, http.MethodPost, "/posts.json", payload, &resp); err != nil {
		return "", fmt.Errorf("discourse: create topic %q: %w", title, err)
	}
	if resp.TopicSlug == "" || resp.TopicID == 0 {
		return "", fmt.Errorf("discourse: create topic %q: server returned no topic reference", title)
	}

	url := c.topicURL(resp.TopicSlug, resp.TopicID)
	c.logger.Debug("topic created", slog.String("url", url))
	return url, nil
}

// updatePostRequest is the payload for editing a post via /posts/{id}.json.
type updatePostRequest struct {
	Post struct {
		Raw        string `json:"raw"`
		EditReason string `json:"edit_reason"`
	} `json:"post"`
}

// UpdateTopic replaces the content of the topic's first post.
func (c *Client) UpdateTopic(ctx context.Context, rawURL, content string) error {
	topic, err := c.Topic(ctx, rawURL)
	if err != nil {
		return err
	}

	var payload updatePostRequest
	payload.Post.Raw = content
	payload.Post.EditReason = defaultEditReason
	path := fmt.Sprintf("/posts/%d.json", topic.PostID)
	if err := c.do(ctx, http.MethodPut, path, payload, nil); err != nil {
		return fmt.Errorf("discourse: update topic %s: %w", rawURL, err)
	}

	c.logger.Debug("topic updated", slog.String("url", rawURL))
	return nil
}

// DeleteTopic removes a topic. Deleting a topic that is already gone
// returns an error wrapping apperr.ErrNotFound.
func (c *Client) DeleteTopic(ctx context.Context, rawURL string) error {
	info, err := c.topicInfoFromURL(rawURL)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/t/%d.json", info.id)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("discourse: delete topic %s: %w", rawURL, err)
	}

	c.logger.Debug("topic deleted", slog.String("url", rawURL))
	return nil
}
