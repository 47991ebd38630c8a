package domain

import (
	"fmt"
	"strings"
)

// EntityType identifies a record collection on the accounting service.
type EntityType string

const (
	EntityCustomers      EntityType = "customers"
	EntityInvoices       EntityType = "invoices"
	EntityAccounts       EntityType = "accounts"
	EntityVendors        EntityType = "vendors"
	EntityJournalEntries EntityType = "journal_entries"
	EntityBudgets        EntityType = "budgets"
)

// SyncOrder is the fixed order in which a full sync processes entity types.
var SyncOrder = []EntityType{
	EntityCustomers,
	EntityInvoices,
	EntityAccounts,
	EntityVendors,
	EntityJournalEntries,
	EntityBudgets,
}

// entityInfo describes how an entity type maps onto the remote service.
type entityInfo struct {
	remoteName string
	paginated  bool
	pullOnly   bool
}

var entities = map[EntityType]entityInfo{
	EntityCustomers:      {remoteName: "Customer", paginated: true},
	EntityInvoices:       {remoteName: "Invoice", paginated: true},
	EntityAccounts:       {remoteName: "Account", paginated: true},
	EntityVendors:        {remoteName: "Vendor", paginated: true},
	EntityJournalEntries: {remoteName: "JournalEntry", paginated: true},
	EntityBudgets:        {remoteName: "Budget", pullOnly: true},
}

// ParseEntityType parses an entity type name such as "invoices".
// Dashes are accepted in place of underscores.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if _, ok := entities[t]; !ok {
		return "", fmt.Errorf("%w: unknown entity type %q", ErrUnsupportedType, s)
	}
	return t, nil
}

// IsValid reports whether the entity type is known.
func (t EntityType) IsValid() bool {
	_, ok := entities[t]
	return ok
}

// RemoteName returns the entity name used in remote queries.
func (t EntityType) RemoteName() string {
	return entities[t].remoteName
}

// Paginated reports whether the type is fetched through the paginated query endpoint.
func (t EntityType) Paginated() bool {
	return entities[t].paginated
}

// PullOnly reports whether the remote service refuses programmatic writes for this type.
func (t EntityType) PullOnly() bool {
	return entities[t].pullOnly
}

// String implements fmt.Stringer.
func (t EntityType) String() string {
	return string(t)
}
