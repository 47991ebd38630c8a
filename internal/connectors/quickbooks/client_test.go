package quickbooks

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/pagination"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})
	httpClient := oauth2.NewClient(context.Background(), ts)
	return NewClient(httpClient, server.URL, func() string { return "4620816365" })
}

func TestClient_QueryPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/company/4620816365/query", r.URL.Path)
		assert.Equal(t, "SELECT * FROM Customer STARTPOSITION 501 MAXRESULTS 500", r.URL.Query().Get("query"))
		assert.Equal(t, MinorVersion, r.URL.Query().Get("minorversion"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"QueryResponse": {
				"Customer": [
					{"Id": "1", "DisplayName": "Amy's Bird Sanctuary", "MetaData": {"LastUpdatedTime": "2025-01-07T10:33:39-08:00"}},
					{"Id": "2", "FullyQualifiedName": "Bill's Windsurf Shop"},
					{"DisplayName": "no id"}
				],
				"startPosition": 501,
				"maxResults": 3
			},
			"time": "2025-01-08T12:00:00.000-08:00"
		}`)
	})

	page, err := c.QueryPage(context.Background(), domain.EntityCustomers, 501, 500)

	require.NoError(t, err)
	assert.Equal(t, 3, page.Received)
	assert.Equal(t, 1, page.Malformed())
	records := page.Records
	require.Len(t, records, 2, "records without an Id are skipped")
	assert.Equal(t, domain.EntityCustomers, records[0].EntityType)
	assert.Equal(t, "1", records[0].RemoteID)
	assert.Equal(t, "Amy's Bird Sanctuary", records[0].DisplayName)
	assert.Equal(t, "2025-01-07T18:33:39Z", records[0].UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
	assert.Contains(t, string(records[0].Payload), `"MetaData"`)
	assert.False(t, records[0].FetchedAt.IsZero())
	assert.Equal(t, "Bill's Windsurf Shop", records[1].DisplayName)
}

func TestClient_QueryPage_EmptyResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"QueryResponse": {}, "time": "2025-01-08T12:00:00.000-08:00"}`)
	})

	page, err := c.QueryPage(context.Background(), domain.EntityInvoices, 1, 500)

	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Zero(t, page.Received)
}

func TestClient_QueryPage_MalformedRowKeepsPaging(t *testing.T) {
	var (
		mu     sync.Mutex
		starts []int
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var start, size int
		_, err := fmt.Sscanf(r.URL.Query().Get("query"), "SELECT * FROM Customer STARTPOSITION %d MAXRESULTS %d", &start, &size)
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		starts = append(starts, start)
		mu.Unlock()

		var rows []string
		for i := start; i < start+size && i <= 9; i++ {
			if i == 2 {
				rows = append(rows, `{"DisplayName": "no id"}`)
				continue
			}
			rows = append(rows, fmt.Sprintf(`{"Id": "%d"}`, i))
		}
		fmt.Fprintf(w, `{"QueryResponse": {"Customer": [%s]}}`, strings.Join(rows, ","))
	})

	fetch := func(ctx context.Context, start, size int) (pagination.Page[domain.Record], error) {
		page, err := c.QueryPage(ctx, domain.EntityCustomers, start, size)
		return pagination.Page[domain.Record]{Items: page.Records, Received: page.Received}, err
	}
	records, err := pagination.FetchAll(context.Background(), fetch, pagination.Options{PageSize: 3})

	require.NoError(t, err)
	assert.Len(t, records, 8)
	assert.Equal(t, "9", records[len(records)-1].RemoteID)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 4, 7, 10}, starts)
}

func TestClient_QueryPage_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		target error
	}{
		{"unauthorized", http.StatusUnauthorized, domain.ErrAuthorizationRequired},
		{"not found", http.StatusNotFound, domain.ErrNotFound},
		{"throttled", http.StatusTooManyRequests, domain.ErrRateLimitExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"Fault":{"Error":[{"Message":"denied","Detail":"because","code":"3200"}],"type":"AUTHENTICATION"}}`)
			})

			_, err := c.QueryPage(context.Background(), domain.EntityAccounts, 1, 500)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Contains(t, apiErr.Message, "denied: because (code 3200)")
		})
	}
}

func TestClient_QueryPage_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.QueryPage(context.Background(), domain.EntityVendors, 1, 500)

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Internal Server Error", apiErr.Message)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrAuthorizationRequired)
}

func TestClient_QueryPage_FaultWithOKStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"Fault":{"Error":[{"Message":"Error parsing query"}],"type":"ValidationFault"}}`)
	})

	_, err := c.QueryPage(context.Background(), domain.EntityVendors, 1, 500)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error parsing query")
}

func TestClient_QueryPage_UnsupportedType(t *testing.T) {
	c := NewClient(nil, "http://unused.test", func() string { return "1" })

	_, err := c.QueryPage(context.Background(), domain.EntityBudgets, 1, 500)

	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestClient_NoTenant(t *testing.T) {
	c := NewClient(nil, "http://unused.test", func() string { return " " })

	_, err := c.QueryPage(context.Background(), domain.EntityCustomers, 1, 500)

	assert.ErrorIs(t, err, ErrNoTenant)
}

func TestClient_BudgetReport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/reports/BudgetOverview"))
		fmt.Fprint(w, sampleBudgetReport)
	})

	records, err := c.BudgetReport(context.Background())

	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, domain.EntityBudgets, records[0].EntityType)
	assert.Equal(t, "FY2025:33:Jan 2025", records[0].RemoteID)
	assert.Equal(t, "Design income Jan 2025", records[0].DisplayName)
	assert.JSONEq(t, `{"budget":"FY2025","account_id":"33","account":"Design income","period":"Jan 2025","amount":1000}`,
		string(records[0].Payload))
}

func TestClient_BudgetReport_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.BudgetReport(context.Background())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEndpoints(t *testing.T) {
	ep := Endpoint()
	assert.Equal(t, AuthURL, ep.AuthURL)
	assert.Equal(t, TokenURL, ep.TokenURL)
	assert.Equal(t, oauth2.AuthStyleInHeader, ep.AuthStyle)
	assert.Equal(t, []string{ScopeAccounting}, Scopes())
	assert.Equal(t, SandboxBaseURL, BaseURL(domain.EnvironmentSandbox))
	assert.Equal(t, ProductionBaseURL, BaseURL(domain.EnvironmentProduction))
}
