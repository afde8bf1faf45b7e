package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/roach88/backstock/internal/config"
)

const (
	// productPageSize is the Admin API maximum page size.
	productPageSize = 250

	defaultHTTPTimeout = 30 * time.Second
)

// Client talks to the Shopify Admin GraphQL API.
type Client struct {
	shop       string // e.g. "example.myshopify.com"
	token      string
	apiVersion string // e.g. "2026-07"
	endpoint   string // overrides shop/apiVersion when set (tests)
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoint points the client at an explicit URL instead of the
// shop's graphql.json endpoint. Used by tests against httptest servers.
func WithEndpoint(url string) ClientOption {
	return func(c *Client) { c.endpoint = url }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient builds an Admin API client for one shop.
func NewClient(shop, token, apiVersion string, opts ...ClientOption) *Client {
	c := &Client{
		shop:       shop,
		token:      token,
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// gqlRequest is the Admin API GraphQL request envelope.
type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlUserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// do posts one GraphQL request and decodes the data payload into out.
// Top-level GraphQL errors are returned as plain errors (transient from
// the caller's point of view); userErrors are handled per-operation.
func (c *Client) do(ctx context.Context, req gqlRequest, out any) error {
	endpoint := c.endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s/admin/api/%s/graphql.json", c.shop, c.apiVersion)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal graphql request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create graphql request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Shopify-Access-Token", c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("graphql request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read graphql response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("graphql status %d: %s", resp.StatusCode, raw)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []gqlError      `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("parse graphql response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("parse graphql data: %w", err)
		}
	}
	return nil
}

// userErrorsToErr converts a userErrors payload into a *UserError, or
// nil when the payload is empty.
func userErrorsToErr(ues []gqlUserError) error {
	if len(ues) == 0 {
		return nil
	}
	msgs := make([]string, len(ues))
	for i, ue := range ues {
		msgs[i] = ue.Message
	}
	return &UserError{Messages: msgs}
}

const fetchProductsQuery = `query($id: ID!, $first: Int!, $after: String, $sortKey: ProductCollectionSortKeys!, $reverse: Boolean!) {
	collection(id: $id) {
		products(first: $first, after: $after, sortKey: $sortKey, reverse: $reverse) {
			pageInfo {
				hasNextPage
				endCursor
			}
			nodes {
				id
				title
				tags
				availableForSale
			}
		}
	}
}`

// FetchProducts pages through the whole collection in catalog order.
func (c *Client) FetchProducts(ctx context.Context, collectionID string, sortKey config.SortKey, reverse bool) ([]Product, error) {
	gqlKey, _, err := SortSpec(sortKey)
	if err != nil {
		return nil, err
	}

	var (
		products []Product
		cursor   *string
	)
	for {
		vars := map[string]any{
			"id":      collectionID,
			"first":   productPageSize,
			"sortKey": gqlKey,
			"reverse": reverse,
		}
		if cursor != nil {
			vars["after"] = *cursor
		}

		var data struct {
			Collection *struct {
				Products struct {
					PageInfo struct {
						HasNextPage bool   `json:"hasNextPage"`
						EndCursor   string `json:"endCursor"`
					} `json:"pageInfo"`
					Nodes []struct {
						ID               string   `json:"id"`
						Title            string   `json:"title"`
						Tags             []string `json:"tags"`
						AvailableForSale bool     `json:"availableForSale"`
					} `json:"nodes"`
				} `json:"products"`
			} `json:"collection"`
		}
		if err := c.do(ctx, gqlRequest{Query: fetchProductsQuery, Variables: vars}, &data); err != nil {
			return nil, fmt.Errorf("fetch products for %s: %w", collectionID, err)
		}
		if data.Collection == nil {
			return nil, fmt.Errorf("collection %s not found", collectionID)
		}

		for _, n := range data.Collection.Products.Nodes {
			products = append(products, Product{
				ID:               n.ID,
				Title:            n.Title,
				Tags:             n.Tags,
				AvailableForSale: n.AvailableForSale,
			})
		}
		if !data.Collection.Products.PageInfo.HasNextPage {
			break
		}
		end := data.Collection.Products.PageInfo.EndCursor
		cursor = &end
	}

	c.logger.Debug("fetched collection products",
		"collection_id", collectionID, "count", len(products), "sort_key", sortKey)
	return products, nil
}

const setOrderingModeMutation = `mutation($input: CollectionInput!) {
	collectionUpdate(input: $input) {
		collection { id sortOrder }
		userErrors { field message }
	}
}`

// SetOrderingMode switches the collection's sort order driver.
func (c *Client) SetOrderingMode(ctx context.Context, collectionID string, mode OrderingMode) error {
	vars := map[string]any{
		"input": map[string]any{
			"id":        collectionID,
			"sortOrder": string(mode),
		},
	}

	var data struct {
		CollectionUpdate struct {
			UserErrors []gqlUserError `json:"userErrors"`
		} `json:"collectionUpdate"`
	}
	if err := c.do(ctx, gqlRequest{Query: setOrderingModeMutation, Variables: vars}, &data); err != nil {
		return fmt.Errorf("set ordering mode for %s: %w", collectionID, err)
	}
	if err := userErrorsToErr(data.CollectionUpdate.UserErrors); err != nil {
		return fmt.Errorf("set ordering mode for %s: %w", collectionID, err)
	}
	return nil
}

const reorderMutation = `mutation($id: ID!, $moves: [MoveInput!]!) {
	collectionReorderProducts(id: $id, moves: $moves) {
		job { id done }
		userErrors { field message }
	}
}`

// Reorder submits a move list and returns the remote job handle.
func (c *Client) Reorder(ctx context.Context, collectionID string, moves []Move) (ReorderJob, error) {
	moveInputs := make([]map[string]any, len(moves))
	for i, m := range moves {
		moveInputs[i] = map[string]any{
			"id":          m.ID,
			"newPosition": fmt.Sprintf("%d", m.NewPosition),
		}
	}
	vars := map[string]any{"id": collectionID, "moves": moveInputs}

	var data struct {
		CollectionReorderProducts struct {
			Job *struct {
				ID   string `json:"id"`
				Done bool   `json:"done"`
			} `json:"job"`
			UserErrors []gqlUserError `json:"userErrors"`
		} `json:"collectionReorderProducts"`
	}
	if err := c.do(ctx, gqlRequest{Query: reorderMutation, Variables: vars}, &data); err != nil {
		return ReorderJob{}, fmt.Errorf("reorder %s: %w", collectionID, err)
	}
	if err := userErrorsToErr(data.CollectionReorderProducts.UserErrors); err != nil {
		return ReorderJob{}, fmt.Errorf("reorder %s: %w", collectionID, err)
	}
	if data.CollectionReorderProducts.Job == nil {
		// No job handle means the reorder was applied synchronously.
		return ReorderJob{Done: true}, nil
	}
	j := data.CollectionReorderProducts.Job
	return ReorderJob{ID: j.ID, Done: j.Done}, nil
}

const jobStatusQuery = `query($id: ID!) {
	job(id: $id) { id done }
}`

// GetJobStatus polls a reorder job.
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (ReorderJob, error) {
	var data struct {
		Job *struct {
			ID   string `json:"id"`
			Done bool   `json:"done"`
		} `json:"job"`
	}
	if err := c.do(ctx, gqlRequest{Query: jobStatusQuery, Variables: map[string]any{"id": jobID}}, &data); err != nil {
		return ReorderJob{}, fmt.Errorf("job status %s: %w", jobID, err)
	}
	if data.Job == nil {
		// The catalog garbage-collects finished jobs; treat missing as done.
		return ReorderJob{ID: jobID, Done: true}, nil
	}
	return ReorderJob{ID: data.Job.ID, Done: data.Job.Done}, nil
}
