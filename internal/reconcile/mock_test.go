package reconcile

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/pkg/fullcontact"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindByEmail(ctx context.Context, email string) (*model.StoredRecord, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StoredRecord), args.Error(1)
}

func (m *mockStore) UpdateStoreInfo(ctx context.Context, email string, patch model.StoreInfoPatch) error {
	args := m.Called(ctx, email, patch)
	return args.Error(0)
}

func (m *mockStore) Insert(ctx context.Context, rec model.StoredRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// --- Matcher Mock ---

type mockMatcher struct {
	mock.Mock
}

func (m *mockMatcher) Match(ctx context.Context, email string) (map[string]any, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

// --- FullContact Mock ---

type mockFullContact struct {
	mock.Mock
}

func (m *mockFullContact) Enrich(ctx context.Context, req fullcontact.EnrichRequest) (map[string]any, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

// countingDelayer records how many waits were requested.
type countingDelayer struct {
	calls int
}

func (d *countingDelayer) Wait(context.Context) error {
	d.calls++
	return nil
}
