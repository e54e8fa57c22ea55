package store

import (
	"context"
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
)

// ErrDuplicate is returned by Insert when a record with the same email exists.
var ErrDuplicate = eris.New("store: duplicate email")

// Filter selects stored customer records. Zero value matches everything.
// A field is "present" when it is neither null nor empty.
type Filter struct {
	WithStoreID      bool   `json:"with_store_id,omitempty"`
	WithStoreName    bool   `json:"with_store_name,omitempty"`
	MissingStoreInfo bool   `json:"missing_store_info,omitempty"` // either store field absent
	ExternalStoreID  string `json:"external_store_id,omitempty"`  // restrict to one store
}

// Reader is the read-only side of the customer store.
type Reader interface {
	// FindByEmail returns the record keyed by the normalized email, or nil when absent.
	FindByEmail(ctx context.Context, email string) (*model.StoredRecord, error)
	Count(ctx context.Context, f Filter) (int64, error)
	// Find returns matching records in storage order. A limit <= 0 returns all.
	Find(ctx context.Context, f Filter, limit int) ([]model.StoredRecord, error)
	// TopStores groups records with a store name by (storeName, externalStoreId)
	// and returns the largest groups first.
	TopStores(ctx context.Context, f Filter, limit int) ([]model.StoreCount, error)
}

// Writer mutates customer records. Fields are only ever set, never removed.
type Writer interface {
	UpdateStoreInfo(ctx context.Context, email string, patch model.StoreInfoPatch) error
	Insert(ctx context.Context, rec model.StoredRecord) error
}

// Store defines the persistence interface for the customer jobs.
type Store interface {
	Reader
	Writer

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateIdent(name string) error {
	if !identRe.MatchString(name) {
		return eris.Errorf("store: invalid table name %q", name)
	}
	return nil
}
