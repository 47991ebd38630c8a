package quickbooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
	"github.com/custodia-labs/ledgersync/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.AccountingClient = (*Client)(nil)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// maxBodySize caps how much of a response body is read.
	maxBodySize = 32 << 20
)

// Client reads entities and reports from the accounting API.
type Client struct {
	http    *http.Client
	baseURL string
	tenant  func() string
	now     func() time.Time
}

// NewClient creates an API client. httpClient must add the bearer token,
// e.g. one returned by oauth2.NewClient. tenant returns the company id at
// call time, since it may only become known during authorization.
func NewClient(httpClient *http.Client, baseURL string, tenant func() string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		tenant:  tenant,
		now:     time.Now,
	}
}

// QueryPage fetches up to size records of entity starting at the 1-based position start.
// Rows without an Id are dropped from Records but still counted in Received.
func (c *Client) QueryPage(ctx context.Context, entity domain.EntityType, start, size int) (domain.RecordPage, error) {
	name := entity.RemoteName()
	if name == "" || !entity.Paginated() {
		return domain.RecordPage{}, fmt.Errorf("%w: %q is not queryable", domain.ErrUnsupportedType, entity)
	}

	params := url.Values{}
	params.Set("query", fmt.Sprintf("SELECT * FROM %s STARTPOSITION %d MAXRESULTS %d", name, start, size))
	params.Set("minorversion", MinorVersion)

	var body struct {
		QueryResponse map[string]json.RawMessage `json:"QueryResponse"`
	}
	if err := c.get(ctx, "query", params, &body); err != nil {
		return domain.RecordPage{}, fmt.Errorf("query %s: %w", name, err)
	}

	raw, ok := body.QueryResponse[name]
	if !ok {
		return domain.RecordPage{}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return domain.RecordPage{}, fmt.Errorf("decode %s page: %w", name, err)
	}

	fetched := c.now().UTC()
	page := domain.RecordPage{
		Records:  make([]domain.Record, 0, len(items)),
		Received: len(items),
	}
	for i, item := range items {
		rec, err := decodeRecord(entity, item, fetched)
		if err != nil {
			logger.Warn("Skipping malformed %s at position %d: %v", name, start+i, err)
			continue
		}
		page.Records = append(page.Records, rec)
	}
	return page, nil
}

// BudgetReport fetches the budget overview report.
func (c *Client) BudgetReport(ctx context.Context) ([]domain.Record, error) {
	params := url.Values{}
	params.Set("minorversion", MinorVersion)

	var report Report
	if err := c.get(ctx, "reports/BudgetOverview", params, &report); err != nil {
		return nil, fmt.Errorf("budget report: %w", err)
	}

	lines := ParseBudgetReport(report)
	fetched := c.now().UTC()
	records := make([]domain.Record, 0, len(lines))
	for _, line := range lines {
		rec, err := budgetRecord(line, fetched)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// get issues a GET against the company's API path and decodes JSON into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	realm := ""
	if c.tenant != nil {
		realm = strings.TrimSpace(c.tenant())
	}
	if realm == "" {
		return ErrNoTenant
	}

	endpoint := fmt.Sprintf("%s/v3/company/%s/%s", c.baseURL, url.PathEscape(realm), path)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, body, req.URL.Path)
	}

	// Some errors arrive with a 200 status and a fault envelope.
	var fault faultBody
	if json.Unmarshal(body, &fault) == nil && fault.Fault != nil {
		return newAPIError(http.StatusBadRequest, body, req.URL.Path)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// entityFields are the fields pulled out of an entity payload.
type entityFields struct {
	ID                 string `json:"Id"`
	DisplayName        string `json:"DisplayName"`
	FullyQualifiedName string `json:"FullyQualifiedName"`
	Name               string `json:"Name"`
	DocNumber          string `json:"DocNumber"`
	MetaData           struct {
		LastUpdatedTime string `json:"LastUpdatedTime"`
	} `json:"MetaData"`
}

func decodeRecord(entity domain.EntityType, raw json.RawMessage, fetched time.Time) (domain.Record, error) {
	var f entityFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return domain.Record{}, err
	}
	if f.ID == "" {
		return domain.Record{}, fmt.Errorf("%w: missing Id", domain.ErrInvalidInput)
	}

	rec := domain.Record{
		EntityType:  entity,
		RemoteID:    f.ID,
		DisplayName: firstNonEmpty(f.DisplayName, f.FullyQualifiedName, f.Name, f.DocNumber),
		Payload:     raw,
		FetchedAt:   fetched,
	}
	if f.MetaData.LastUpdatedTime != "" {
		if t, err := time.Parse(time.RFC3339, f.MetaData.LastUpdatedTime); err == nil {
			rec.UpdatedAt = t.UTC()
		}
	}
	return rec, nil
}

func budgetRecord(line domain.BudgetLine, fetched time.Time) (domain.Record, error) {
	payload, err := json.Marshal(line)
	if err != nil {
		return domain.Record{}, fmt.Errorf("encode budget line: %w", err)
	}
	account := line.AccountID
	if account == "" {
		account = line.Account
	}
	return domain.Record{
		EntityType:  domain.EntityBudgets,
		RemoteID:    strings.Join([]string{line.Budget, account, line.Period}, ":"),
		DisplayName: strings.TrimSpace(line.Account + " " + line.Period),
		Payload:     payload,
		FetchedAt:   fetched,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
