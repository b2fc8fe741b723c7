package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/treasurehunt/backend/internal/audit"
	"github.com/treasurehunt/backend/internal/database"
	"github.com/treasurehunt/backend/internal/events"
	"github.com/treasurehunt/backend/internal/models"
	"github.com/treasurehunt/backend/internal/store"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) all() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

type testEnv struct {
	db        *sql.DB
	store     *store.Store
	users     *UserService
	accounts  *AccountService
	ledger    *LedgerService
	history   *HistoryService
	publisher *recordingPublisher
}

func newTestStore(t *testing.T) (*store.Store, *sql.DB) {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := store.New(db, store.SQLite)
	require.NoError(t, st.Migrate(context.Background()))
	return st, db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, db := newTestStore(t)
	logger := zap.NewNop()
	publisher := &recordingPublisher{}
	return &testEnv{
		db:        db,
		store:     st,
		users:     NewUserService(st, logger),
		accounts:  NewAccountService(st, logger),
		ledger:    NewLedgerService(st, publisher, audit.NewLogger(logger), logger),
		history:   NewHistoryService(st),
		publisher: publisher,
	}
}

func (e *testEnv) createUser(t *testing.T, id, name string) *models.UserWithAccounts {
	t.Helper()
	user, err := e.users.Create(context.Background(), id, name)
	require.NoError(t, err)
	return user
}

func (e *testEnv) account(t *testing.T, userID string, accountType models.AccountType) *models.Account {
	t.Helper()
	account, err := e.accounts.GetByUserAndType(context.Background(), userID, accountType)
	require.NoError(t, err)
	return account
}

func (e *testEnv) balance(t *testing.T, userID string, accountType models.AccountType) decimal.Decimal {
	t.Helper()
	return e.account(t, userID, accountType).Balance
}

func (e *testEnv) transactionCount(t *testing.T, userID string) int {
	t.Helper()
	txns, err := e.history.ForUser(context.Background(), userID, MaxHistoryLimit)
	require.NoError(t, err)
	return len(txns)
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func assertBalance(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.Equal(t, decimal.NewFromInt(want).String(), got.String())
}
