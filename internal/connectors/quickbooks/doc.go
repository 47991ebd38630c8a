// Package quickbooks implements the accounting service client.
//
// The client reads entity collections through the query endpoint and
// budgets through the reporting endpoint. It holds no token logic of its
// own: requests are authenticated by the *http.Client it is given, normally
// one built with oauth2.NewClient over the token manager's TokenSource.
//
// # Endpoints
//
// Authorization and token exchange use the same hosts for both environments
// (see [Endpoint]). API calls go to the sandbox or production base URL
// (see [BaseURL]):
//
//   - Query: GET /v3/company/{realm}/query?query=SELECT * FROM {Entity} STARTPOSITION n MAXRESULTS m
//   - Budgets: GET /v3/company/{realm}/reports/BudgetOverview
//
// # Records
//
// Entities are kept as opaque JSON payloads. Only the Id, a display name and
// MetaData.LastUpdatedTime are extracted. The display name is taken from the
// first non-empty of DisplayName, FullyQualifiedName, Name and DocNumber.
//
// # Budget reports
//
// The budget report is a table. Columns are located by title and type rather
// than position, falling back to the first column for account names when no
// column is labelled. Section and summary rows are flattened; total columns
// and amounts that do not parse are skipped. A tenant without budgets gets an
// empty report, which yields no records.
//
// # Error Handling
//
// Non-2xx responses become *APIError values that unwrap to domain sentinels:
//
//   - 401: [domain.ErrAuthorizationRequired]
//   - 404: [domain.ErrNotFound]
//   - 429: [domain.ErrRateLimitExceeded]
package quickbooks
