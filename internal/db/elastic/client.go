// Package elastic wraps the Elasticsearch client with the document
// operations the index repository needs: versioned writes, get, search and count.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"go.uber.org/zap"

	"github.com/kailas-cloud/routedex/internal/db"
)

// MaxResultWindow is the default from+size cap of an Elasticsearch index.
const MaxResultWindow = 10000

// Config holds connection parameters for Elasticsearch.
type Config struct {
	Addrs    []string
	Username string
	Password string
	// Refresh is passed to index and delete calls ("", "true", "wait_for").
	Refresh string
}

// Client is a thin wrapper around an Elasticsearch client.
type Client struct {
	es      *elasticsearch.Client
	refresh string
	logger  *zap.Logger
}

// NewClient builds a client. It does not contact the cluster; see WaitForReady.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("addrs is required")
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addrs,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: 5 * time.Second,
			DialContext:           (&net.Dialer{Timeout: time.Second}).DialContext,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	logger.Info("elasticsearch client configured", zap.Strings("addrs", cfg.Addrs))

	return &Client{es: es, refresh: cfg.Refresh, logger: logger}, nil
}

// Ping checks cluster connectivity.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer drain(res)
	if res.IsError() {
		return fmt.Errorf("ping: %s", res.Status())
	}
	return nil
}

// Close is a no-op; the HTTP transport holds no resources that need releasing.
func (c *Client) Close() {}

// WaitForReady polls Ping until the cluster responds or timeout expires.
func (c *Client) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for elasticsearch: %w", ctx.Err())
		case <-ticker.C:
			if err := c.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// IndexExists reports whether the index exists.
func (c *Client) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := c.es.Indices.Exists([]string{name}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, &db.Error{Op: db.OpESExists, Err: err}
	}
	defer drain(res)
	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &db.Error{Op: db.OpESExists, Err: responseError(res)}
	}
}

// CreateIndex creates an index with the given settings and mappings body.
func (c *Client) CreateIndex(ctx context.Context, name string, body map[string]any) error {
	buf, err := encode(body)
	if err != nil {
		return err
	}
	res, err := c.es.Indices.Create(name,
		c.es.Indices.Create.WithBody(buf),
		c.es.Indices.Create.WithContext(ctx))
	if err != nil {
		return &db.Error{Op: db.OpESCreate, Err: err}
	}
	defer drain(res)
	if res.IsError() {
		e := responseError(res)
		if e.Type == "resource_already_exists_exception" {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpESCreate, Err: e}
	}
	return nil
}

// Put replaces the document with external versioning. A 409 means the
// stored version is equal or newer and is reported as db.Stale.
func (c *Client) Put(ctx context.Context, index, id string, version int64, doc any) (db.WriteResult, error) {
	buf, err := encode(doc)
	if err != nil {
		return 0, err
	}
	opts := []func(*esapi.IndexRequest){
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(id),
		c.es.Index.WithVersion(int(version)),
		c.es.Index.WithVersionType("external"),
	}
	if c.refresh != "" {
		opts = append(opts, c.es.Index.WithRefresh(c.refresh))
	}

	res, err := c.es.Index(index, buf, opts...)
	if err != nil {
		return 0, &db.Error{Op: db.OpESIndex, Err: err}
	}
	defer drain(res)
	switch {
	case res.StatusCode == http.StatusConflict:
		return db.Stale, nil
	case res.IsError():
		return 0, &db.Error{Op: db.OpESIndex, Err: responseError(res)}
	default:
		return db.Applied, nil
	}
}

// Delete removes the document on behalf of a tombstone with the given version.
func (c *Client) Delete(ctx context.Context, index, id string, version int64) (db.WriteResult, error) {
	opts := []func(*esapi.DeleteRequest){
		c.es.Delete.WithContext(ctx),
		c.es.Delete.WithVersion(int(version)),
		c.es.Delete.WithVersionType("external"),
	}
	if c.refresh != "" {
		opts = append(opts, c.es.Delete.WithRefresh(c.refresh))
	}

	res, err := c.es.Delete(index, id, opts...)
	if err != nil {
		return 0, &db.Error{Op: db.OpESDelete, Err: err}
	}
	defer drain(res)
	switch {
	case res.StatusCode == http.StatusConflict:
		return db.Stale, nil
	case res.StatusCode == http.StatusNotFound:
		return db.Missing, nil
	case res.IsError():
		return 0, &db.Error{Op: db.OpESDelete, Err: responseError(res)}
	default:
		return db.Applied, nil
	}
}

// Get fetches a document source. A missing document returns db.ErrKeyNotFound.
func (c *Client) Get(ctx context.Context, index, id string) (map[string]json.RawMessage, error) {
	res, err := c.es.Get(index, id, c.es.Get.WithContext(ctx))
	if err != nil {
		return nil, &db.Error{Op: db.OpESGet, Err: err}
	}
	defer drain(res)
	if res.StatusCode == http.StatusNotFound {
		return nil, db.ErrKeyNotFound
	}
	if res.IsError() {
		return nil, &db.Error{Op: db.OpESGet, Err: responseError(res)}
	}

	var body struct {
		Found  bool                       `json:"found"`
		Source map[string]json.RawMessage `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, &db.Error{Op: db.OpESGet, Err: fmt.Errorf("decode: %w", err)}
	}
	if !body.Found {
		return nil, db.ErrKeyNotFound
	}
	return body.Source, nil
}

// Hit is one search hit.
type Hit struct {
	ID     string                     `json:"_id"`
	Source map[string]json.RawMessage `json:"_source"`
	Sort   []any                      `json:"sort"`
}

// Hits is a decoded search response.
type Hits struct {
	Total int
	Hits  []Hit
}

// Search runs a search request with the given body.
func (c *Client) Search(ctx context.Context, index string, body map[string]any) (*Hits, error) {
	buf, err := encode(body)
	if err != nil {
		return nil, err
	}
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(buf),
		c.es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, &db.Error{Op: db.OpESSearch, Err: err}
	}
	defer drain(res)
	if res.IsError() {
		return nil, &db.Error{Op: db.OpESSearch, Err: responseError(res)}
	}

	var resp struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []Hit `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, &db.Error{Op: db.OpESSearch, Err: fmt.Errorf("decode: %w", err)}
	}
	return &Hits{Total: resp.Hits.Total.Value, Hits: resp.Hits.Hits}, nil
}

// Count returns the number of documents matching query.
func (c *Client) Count(ctx context.Context, index string, query map[string]any) (int, error) {
	buf, err := encode(map[string]any{"query": query})
	if err != nil {
		return 0, err
	}
	res, err := c.es.Count(
		c.es.Count.WithContext(ctx),
		c.es.Count.WithIndex(index),
		c.es.Count.WithBody(buf),
	)
	if err != nil {
		return 0, &db.Error{Op: db.OpESCount, Err: err}
	}
	defer drain(res)
	if res.IsError() {
		return 0, &db.Error{Op: db.OpESCount, Err: responseError(res)}
	}

	resp := struct {
		Count int `json:"count"`
	}{}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return 0, &db.Error{Op: db.OpESCount, Err: fmt.Errorf("decode: %w", err)}
	}
	return resp.Count, nil
}

// ResponseError is the error body returned by Elasticsearch.
type ResponseError struct {
	Status int
	Type   string
	Reason string
}

func (e *ResponseError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Type, e.Reason)
}

func responseError(res *esapi.Response) *ResponseError {
	e := &ResponseError{Status: res.StatusCode}
	var body struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err == nil {
		e.Type = body.Error.Type
		e.Reason = body.Error.Reason
	}
	return e
}

func encode(v any) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return &buf, nil
}

func drain(res *esapi.Response) {
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
}
