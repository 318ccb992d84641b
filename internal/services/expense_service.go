// Package services declares the remote operations as cached queries and
// tag-invalidating mutations.
package services

import (
	"context"
	"fmt"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

// Tag types provided by queries and invalidated by mutations.
const (
	TagExpense     = "Expense"
	TagStats       = "Stats"
	TagLeaderboard = "Leaderboard"
)

// ExpenseAPI is the part of the remote service the expense service needs.
type ExpenseAPI interface {
	ListExpenses(ctx context.Context, userID string, filters core.ExpenseFilters, page, limit int) (core.ExpensePage, error)
	Stats(ctx context.Context, userID string) (core.ExpenseStats, error)
	CreateExpense(ctx context.Context, req core.CreateExpenseRequest) (core.Expense, error)
	UpdateExpense(ctx context.Context, req core.UpdateExpenseRequest) (core.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
	ParseExpense(ctx context.Context, req core.ParseExpenseRequest) (core.Expense, error)
	Leaderboard(ctx context.Context) ([]core.LeaderboardEntry, error)
	PremiumStats(ctx context.Context) (core.PremiumStats, error)
}

// ListQuery identifies one page of a filtered expense list.
type ListQuery struct {
	UserID  string
	Filters core.ExpenseFilters
	Page    int
	Limit   int
}

// Key is the cache key; filters that render no parameters share the key of
// the unfiltered list.
func (q ListQuery) Key() string {
	return cache.Key("listExpenses", map[string]any{
		"userId":  q.UserID,
		"filters": q.Filters,
		"page":    q.Page,
		"limit":   q.Limit,
	})
}

func (q ListQuery) tags() []cache.Tag {
	return []cache.Tag{cache.T(TagExpense), cache.T(TagExpense, q.UserID)}
}

// ExpenseService runs expense operations through the data cache.
type ExpenseService struct {
	api    ExpenseAPI
	cache  *cache.Store
	logger *log.Logger
}

func NewExpenseService(api ExpenseAPI, store *cache.Store, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExpenseService{
		api:    api,
		cache:  store,
		logger: logger.WithComponent(log.ComponentExpense),
	}
}

func (s *ExpenseService) listFetch(q ListQuery) func(context.Context) (core.ExpensePage, error) {
	return func(ctx context.Context) (core.ExpensePage, error) {
		return s.api.ListExpenses(ctx, q.UserID, q.Filters, q.Page, q.Limit)
	}
}

// ListExpenses returns one page of the user's expenses.
func (s *ExpenseService) ListExpenses(ctx context.Context, q ListQuery) (core.ExpensePage, error) {
	if q.UserID == "" {
		return core.ExpensePage{}, core.ErrMissingUser
	}
	return cache.Query(ctx, s.cache, q.Key(), q.tags(), s.listFetch(q))
}

// WatchExpenses subscribes fn to a list page.
func (s *ExpenseService) WatchExpenses(q ListQuery, fn func(cache.State[core.ExpensePage])) *cache.Subscription {
	return cache.Watch(s.cache, q.Key(), q.tags(), s.listFetch(q), fn)
}

func statsKey(userID string) string {
	return cache.Key("getExpenseStats", userID)
}

func (s *ExpenseService) statsFetch(userID string) func(context.Context) (core.ExpenseStats, error) {
	return func(ctx context.Context) (core.ExpenseStats, error) {
		return s.api.Stats(ctx, userID)
	}
}

func (s *ExpenseService) Stats(ctx context.Context, userID string) (core.ExpenseStats, error) {
	if userID == "" {
		return core.ExpenseStats{}, core.ErrMissingUser
	}
	return cache.Query(ctx, s.cache, statsKey(userID), []cache.Tag{cache.T(TagStats)}, s.statsFetch(userID))
}

func (s *ExpenseService) WatchStats(userID string, fn func(cache.State[core.ExpenseStats])) *cache.Subscription {
	return cache.Watch(s.cache, statsKey(userID), []cache.Tag{cache.T(TagStats)}, s.statsFetch(userID), fn)
}

// CreateExpense stores a new expense; lists and stats refresh afterwards.
func (s *ExpenseService) CreateExpense(ctx context.Context, req core.CreateExpenseRequest) (core.Expense, error) {
	if err := req.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("invalid expense: %w", err)
	}
	e, err := cache.Mutate(ctx, s.cache, []cache.Tag{cache.T(TagExpense), cache.T(TagStats)},
		func(ctx context.Context) (core.Expense, error) {
			return s.api.CreateExpense(ctx, req)
		})
	if err != nil {
		s.logger.WarnContext(ctx, "Create expense failed", log.FieldOperation, log.OpCreate, log.FieldError, err.Error())
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense created",
		log.FieldOperation, log.OpCreate,
		log.FieldExpenseID, e.ID,
		log.FieldAmount, req.Amount.String(),
		log.FieldCategory, req.Category)
	return e, nil
}

// UpdateExpense invalidates the expense's own tag, which also refreshes the
// lists carrying the general tag, and stats.
func (s *ExpenseService) UpdateExpense(ctx context.Context, req core.UpdateExpenseRequest) (core.Expense, error) {
	if err := req.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("invalid expense: %w", err)
	}
	e, err := cache.Mutate(ctx, s.cache, []cache.Tag{cache.T(TagExpense, req.ID), cache.T(TagStats)},
		func(ctx context.Context) (core.Expense, error) {
			return s.api.UpdateExpense(ctx, req)
		})
	if err != nil {
		s.logger.WarnContext(ctx, "Update expense failed",
			log.FieldOperation, log.OpUpdate,
			log.FieldExpenseID, req.ID,
			log.FieldError, err.Error())
		return core.Expense{}, fmt.Errorf("update expense %s: %w", req.ID, err)
	}
	s.logger.InfoContext(ctx, "Expense updated", log.FieldOperation, log.OpUpdate, log.FieldExpenseID, req.ID)
	return e, nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) error {
	if id == "" {
		return core.ErrMissingID
	}
	_, err := s.cache.Mutate(ctx, []cache.Tag{cache.T(TagExpense), cache.T(TagStats)},
		func(ctx context.Context) (any, error) {
			return nil, s.api.DeleteExpense(ctx, id)
		})
	if err != nil {
		s.logger.WarnContext(ctx, "Delete expense failed",
			log.FieldOperation, log.OpDelete,
			log.FieldExpenseID, id,
			log.FieldError, err.Error())
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Expense deleted", log.FieldOperation, log.OpDelete, log.FieldExpenseID, id)
	return nil
}

// ParseExpense has the service create an expense from free text. The result
// is stored server-side, so it invalidates exactly like CreateExpense.
func (s *ExpenseService) ParseExpense(ctx context.Context, userID, text string) (core.Expense, error) {
	req := core.ParseExpenseRequest{UserID: userID, Text: text}
	if err := req.Validate(); err != nil {
		return core.Expense{}, err
	}
	e, err := cache.Mutate(ctx, s.cache, []cache.Tag{cache.T(TagExpense), cache.T(TagStats)},
		func(ctx context.Context) (core.Expense, error) {
			return s.api.ParseExpense(ctx, req)
		})
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense parsed from text",
		log.FieldOperation, log.OpParse,
		log.FieldExpenseID, e.ID,
		log.FieldAmount, e.Amount.String(),
		log.FieldCategory, e.Category)
	return e, nil
}

const leaderboardKey = "getLeaderboard"

func (s *ExpenseService) Leaderboard(ctx context.Context) ([]core.LeaderboardEntry, error) {
	return cache.Query(ctx, s.cache, leaderboardKey, []cache.Tag{cache.T(TagLeaderboard)}, s.api.Leaderboard)
}

func (s *ExpenseService) WatchLeaderboard(fn func(cache.State[[]core.LeaderboardEntry])) *cache.Subscription {
	return cache.Watch(s.cache, leaderboardKey, []cache.Tag{cache.T(TagLeaderboard)}, s.api.Leaderboard, fn)
}

const premiumStatsKey = "getPremiumStats"

func (s *ExpenseService) PremiumStats(ctx context.Context) (core.PremiumStats, error) {
	return cache.Query(ctx, s.cache, premiumStatsKey, []cache.Tag{cache.T(TagStats)}, s.api.PremiumStats)
}

func (s *ExpenseService) WatchPremiumStats(fn func(cache.State[core.PremiumStats])) *cache.Subscription {
	return cache.Watch(s.cache, premiumStatsKey, []cache.Tag{cache.T(TagStats)}, s.api.PremiumStats, fn)
}
