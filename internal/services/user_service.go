package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/treasurehunt/backend/internal/apperr"
	"github.com/treasurehunt/backend/internal/models"
	"github.com/treasurehunt/backend/internal/store"
)

type UserService struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewUserService(st *store.Store, logger *zap.Logger) *UserService {
	return &UserService{
		store:  st,
		logger: logger.Named("users"),
		now:    time.Now,
	}
}

// DefaultPlayerName is the name given to users created without one.
func DefaultPlayerName(id string) string {
	if r := []rune(id); len(r) > 8 {
		id = string(r[:8])
	}
	return "Player " + id
}

// Create registers a user and provisions the default accounts in the same
// unit of work.
func (s *UserService) Create(ctx context.Context, id, name string) (*models.UserWithAccounts, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.InvalidOperation("user id is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultPlayerName(id)
	}

	result := &models.UserWithAccounts{}
	err := s.store.InTx(ctx, func(q *store.Queries) error {
		_, err := q.GetUser(ctx, id)
		if err == nil {
			return apperr.Conflict("user %s already exists", id)
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}

		now := s.now()
		result.User = models.User{ID: id, Name: name, CreatedAt: now.UTC()}
		if err := q.InsertUser(ctx, &result.User); err != nil {
			return err
		}

		result.Accounts = make([]models.Account, 0, len(models.DefaultAccounts))
		for _, d := range models.DefaultAccounts {
			account, err := q.InsertAccount(ctx, id, d.Type, d.Balance, now)
			if err != nil {
				return err
			}
			result.Accounts = append(result.Accounts, *account)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created", zap.String("user_id", id))
	return result, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *UserService) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.store.GetUser(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *UserService) GetWithAccounts(ctx context.Context, id string) (*models.UserWithAccounts, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	accounts, err := s.store.ListAccountsByUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.UserWithAccounts{User: *user, Accounts: accounts}, nil
}

// GetOrCreate returns the user, creating it when missing. Existing users are
// reconciled: any default account type they lack is added with its seed
// balance and existing balances are left alone.
func (s *UserService) GetOrCreate(ctx context.Context, id, name string) (*models.UserWithAccounts, bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false, apperr.InvalidOperation("user id is required")
	}

	user, err := s.reconcile(ctx, id)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, err
	}

	created, err := s.Create(ctx, id, name)
	if errors.Is(err, apperr.ErrConflict) {
		// Lost a race with a concurrent create.
		user, err := s.reconcile(ctx, id)
		return user, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (s *UserService) reconcile(ctx context.Context, id string) (*models.UserWithAccounts, error) {
	result := &models.UserWithAccounts{}
	var added []models.AccountType
	err := s.store.InTx(ctx, func(q *store.Queries) error {
		user, err := q.LockUser(ctx, id)
		if err != nil {
			return err
		}
		accounts, err := q.ListAccountsByUser(ctx, id)
		if err != nil {
			return err
		}

		have := make(map[models.AccountType]bool, len(accounts))
		for _, acc := range accounts {
			have[acc.Type] = true
		}
		now := s.now()
		for _, d := range models.DefaultAccounts {
			if have[d.Type] {
				continue
			}
			account, err := q.InsertAccount(ctx, id, d.Type, d.Balance, now)
			if err != nil {
				return err
			}
			accounts = append(accounts, *account)
			added = append(added, d.Type)
		}

		result.User = *user
		result.Accounts = accounts
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(added) > 0 {
		s.logger.Info("provisioned missing accounts", zap.String("user_id", id), zap.Any("types", added))
	}
	return result, nil
}

func (s *UserService) Rename(ctx context.Context, id, name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.InvalidOperation("name is required")
	}
	if err := s.store.UpdateUserName(ctx, id, name); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, id)
}

// Delete removes the user and its accounts. Transactions that reference
// those accounts are kept.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("user_id", id))
	return nil
}

func (s *UserService) Search(ctx context.Context, term string) ([]models.User, error) {
	return s.store.SearchUsers(ctx, strings.TrimSpace(term))
}
