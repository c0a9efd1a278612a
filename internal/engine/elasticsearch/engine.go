// Package elasticsearch is an optional read index for catalog search. The
// primary store stays authoritative; the index is rebuilt from it with
// BulkIndex and kept current from listing events.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/shopspring/decimal"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	"github.com/GabrijelGordic/Suzeraj/internal/repository"
	"github.com/GabrijelGordic/Suzeraj/pkg/database"
)

const system = "elasticsearch"

// Engine is an Elasticsearch-backed repository.ListingSearcher.
type Engine struct {
	client    *elasticsearch.Client
	indexName string
	logger    *slog.Logger
}

var _ repository.ListingSearcher = (*Engine)(nil)

// document is the indexed form of a listing. Price travels as a fixed-point
// string so it decodes without float rounding.
type document struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Brand          string    `json:"brand"`
	Size           float64   `json:"size"`
	Price          string    `json:"price"`
	Currency       string    `json:"currency"`
	Condition      string    `json:"condition"`
	Description    string    `json:"description"`
	ContactInfo    string    `json:"contact_info"`
	IsSold         bool      `json:"is_sold"`
	SellerID       string    `json:"seller_id"`
	SellerUsername string    `json:"seller_username"`
	ViewCount      int64     `json:"view_count"`
	Images         []string  `json:"images"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toDocument(l *domain.Listing) document {
	return document{
		ID:             l.ID,
		Title:          l.Title,
		Brand:          l.Brand,
		Size:           l.Size,
		Price:          l.Price.StringFixed(domain.PriceScale),
		Currency:       string(l.Currency),
		Condition:      string(l.Condition),
		Description:    l.Description,
		ContactInfo:    l.ContactInfo,
		IsSold:         l.IsSold,
		SellerID:       l.SellerID,
		SellerUsername: l.SellerUsername,
		ViewCount:      l.ViewCount,
		Images:         l.Images,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

func (d document) listing() (domain.Listing, error) {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("parse price %q of %s: %w", d.Price, d.ID, err)
	}
	images := d.Images
	if images == nil {
		images = []string{}
	}
	return domain.Listing{
		ID:             d.ID,
		Title:          d.Title,
		Brand:          d.Brand,
		Size:           d.Size,
		Price:          price,
		Currency:       domain.Currency(d.Currency),
		Condition:      domain.Condition(d.Condition),
		Description:    d.Description,
		ContactInfo:    d.ContactInfo,
		IsSold:         d.IsSold,
		SellerID:       d.SellerID,
		SellerUsername: d.SellerUsername,
		ViewCount:      d.ViewCount,
		Images:         images,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}, nil
}

type esSearchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type esBulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID    string `json:"_id"`
			Error struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// New connects to the cluster at esURL and makes sure the index exists.
func New(ctx context.Context, esURL, indexName string, logger *slog.Logger) (*Engine, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{esURL},
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}

	e := NewWithClient(client, indexName, logger)
	if err := e.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("elasticsearch: ensure index: %w", err)
	}
	return e, nil
}

// NewWithClient wraps an existing client. It does not touch the cluster.
func NewWithClient(client *elasticsearch.Client, indexName string, logger *slog.Logger) *Engine {
	if indexName == "" {
		indexName = DefaultIndexName
	}
	return &Engine{client: client, indexName: indexName, logger: logger}
}

// responseError turns a failed response into an error naming op.
func responseError(op string, res *esapi.Response) error {
	var errResp esErrorResponse
	if err := json.NewDecoder(res.Body).Decode(&errResp); err == nil && errResp.Error.Type != "" {
		return fmt.Errorf("elasticsearch %s: %s: %s", op, errResp.Error.Type, errResp.Error.Reason)
	}
	return fmt.Errorf("elasticsearch %s: unexpected status %s", op, res.Status())
}

func closeBody(res *esapi.Response) {
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
}

// Ping checks whether the cluster is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

// EnsureIndex creates the index with its mapping unless it already exists.
func (e *Engine) EnsureIndex(ctx context.Context) error {
	res, err := e.client.Indices.Exists([]string{e.indexName}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	closeBody(res)

	if res.StatusCode == http.StatusOK {
		e.logger.Info("elasticsearch index already exists", "index", e.indexName)
		return nil
	}

	res, err = e.client.Indices.Create(
		e.indexName,
		e.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		e.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError("create index", res)
	}

	e.logger.Info("elasticsearch index created", "index", e.indexName)
	return nil
}

// Index adds or replaces one listing.
func (e *Engine) Index(ctx context.Context, l *domain.Listing) (err error) {
	ctx, end := database.TraceQuery(ctx, system, "IndexListing", "index "+e.indexName)
	defer func() { end(err) }()

	data, err := json.Marshal(toDocument(l))
	if err != nil {
		return fmt.Errorf("elasticsearch index: marshal listing: %w", err)
	}

	res, err := e.client.Index(
		e.indexName,
		bytes.NewReader(data),
		e.client.Index.WithDocumentID(l.ID),
		e.client.Index.WithRefresh("true"),
		e.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch index: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError("index", res)
	}

	e.logger.Debug("indexed listing", "id", l.ID)
	return nil
}

// Delete removes one listing. A missing document is not an error.
func (e *Engine) Delete(ctx context.Context, id string) (err error) {
	ctx, end := database.TraceQuery(ctx, system, "DeleteListing", "delete "+e.indexName)
	defer func() { end(err) }()

	res, err := e.client.Delete(
		e.indexName,
		id,
		e.client.Delete.WithRefresh("true"),
		e.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete: %w", err)
	}
	defer closeBody(res)

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete", res)
	}
	return nil
}

// BulkIndex adds or replaces many listings in one request.
func (e *Engine) BulkIndex(ctx context.Context, listings []domain.Listing) (err error) {
	if len(listings) == 0 {
		return nil
	}

	ctx, end := database.TraceQuery(ctx, system, "BulkIndexListings", "bulk "+e.indexName)
	defer func() { end(err) }()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range listings {
		action := map[string]any{
			"index": map[string]any{"_index": e.indexName, "_id": listings[i].ID},
		}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("elasticsearch bulk: encode action: %w", err)
		}
		if err := enc.Encode(toDocument(&listings[i])); err != nil {
			return fmt.Errorf("elasticsearch bulk: encode document: %w", err)
		}
	}

	res, err := e.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		e.client.Bulk.WithIndex(e.indexName),
		e.client.Bulk.WithRefresh("true"),
		e.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError("bulk", res)
	}

	var bulkResp esBulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("elasticsearch bulk: decode response: %w", err)
	}
	if bulkResp.Errors {
		var msgs []string
		for _, item := range bulkResp.Items {
			if item.Index.Error.Type != "" {
				msgs = append(msgs, fmt.Sprintf("id=%s: %s: %s", item.Index.ID, item.Index.Error.Type, item.Index.Error.Reason))
			}
		}
		return fmt.Errorf("elasticsearch bulk: partial errors: %s", strings.Join(msgs, "; "))
	}

	e.logger.Info("bulk indexed listings", "count", len(listings))
	return nil
}

// Search runs q against the index and returns the page with the total
// number of matching listings.
func (e *Engine) Search(ctx context.Context, q repository.ListingQuery) (out []domain.Listing, total int, err error) {
	ctx, end := database.TraceQuery(ctx, system, "SearchListings", "search "+e.indexName)
	defer func() { end(err) }()

	data, err := json.Marshal(buildSearchQuery(q))
	if err != nil {
		return nil, 0, fmt.Errorf("elasticsearch search: marshal query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(bytes.NewReader(data)),
		e.client.Search.WithTrackTotalHits(true),
		e.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("elasticsearch search: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, 0, responseError("search", res)
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, 0, fmt.Errorf("elasticsearch search: decode response: %w", err)
	}

	out = make([]domain.Listing, 0, len(esResp.Hits.Hits))
	for _, hit := range esResp.Hits.Hits {
		l, err := hit.Source.listing()
		if err != nil {
			return nil, 0, fmt.Errorf("elasticsearch search: %w", err)
		}
		out = append(out, l)
	}
	return out, esResp.Hits.Total.Value, nil
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

func buildSearchQuery(q repository.ListingQuery) map[string]any {
	filters := buildFilters(q.Filter)

	var query map[string]any
	if len(filters) == 0 {
		query = map[string]any{"match_all": map[string]any{}}
	} else {
		query = map[string]any{"bool": map[string]any{"filter": filters}}
	}

	return map[string]any{
		"query":            query,
		"sort":             buildSort(q.Ordering),
		"from":             q.Page.Offset,
		"size":             q.Page.PageSize,
		"track_total_hits": true,
	}
}

func buildFilters(f domain.ListingFilter) []any {
	var filters []any
	term := func(field string, value any) {
		filters = append(filters, map[string]any{"term": map[string]any{field: value}})
	}

	if f.Search != "" {
		pattern := "*" + wildcardEscaper.Replace(f.Search) + "*"
		wildcard := func(field string) map[string]any {
			return map[string]any{"wildcard": map[string]any{
				field: map[string]any{"value": pattern, "case_insensitive": true},
			}}
		}
		filters = append(filters, map[string]any{"bool": map[string]any{
			"should":               []any{wildcard("title"), wildcard("brand")},
			"minimum_should_match": 1,
		}})
	}
	if f.Brand != "" {
		term("brand", f.Brand)
	}
	if f.Size != nil {
		term("size", *f.Size)
	}
	if f.Condition != "" {
		term("condition", string(f.Condition))
	}
	if f.Currency != "" {
		term("currency", string(f.Currency))
	}
	if f.SellerUsername != "" {
		term("seller_username", f.SellerUsername)
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		bounds := map[string]any{}
		if f.MinPrice != nil {
			bounds["gte"] = f.MinPrice.String()
		}
		if f.MaxPrice != nil {
			bounds["lte"] = f.MaxPrice.String()
		}
		filters = append(filters, map[string]any{"range": map[string]any{"price": bounds}})
	}
	return filters
}

func buildSort(o domain.Ordering) []any {
	dir := "asc"
	if o.Descending() {
		dir = "desc"
	}
	field := o.Field()
	if field == "" {
		field, dir = "created_at", "desc"
	}
	return []any{
		map[string]any{field: dir},
		map[string]any{"id": "asc"},
	}
}
