package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"connectrpc.com/connect"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/events"
	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/internal/validation"
	"github.com/mmynk/settleup/pkg/api"
)

// ExpenseService implements the Connect ExpenseService.
type ExpenseService struct {
	store   storage.Store
	notify  *notifier
	metrics *metrics.Metrics
	logger  *slog.Logger
}

var _ api.ExpenseServiceHandler = (*ExpenseService)(nil)

// NewExpenseService creates a new ExpenseService. publisher and m may be nil.
func NewExpenseService(store storage.Store, publisher events.Publisher, m *metrics.Metrics, logger *slog.Logger) *ExpenseService {
	return &ExpenseService{
		store: store,
		notify: &notifier{
			activity:  store,
			publisher: publisher,
			metrics:   m,
			logger:    logger,
		},
		metrics: m,
		logger:  logger,
	}
}

// PreviewSplit allocates a candidate expense without storing it.
func (s *ExpenseService) PreviewSplit(ctx context.Context, req *connect.Request[api.PreviewSplitRequest]) (*connect.Response[api.PreviewSplitResponse], error) {
	userID, err := middleware.RequireUserID(ctx)
	if err != nil {
		return nil, err
	}

	expense, users, err := s.candidate(ctx, userID, req.Msg.Expense)
	if err != nil {
		return nil, s.rejected(err)
	}

	return connect.NewResponse(&api.PreviewSplitResponse{
		PayerShare: expense.PayerShare,
		Splits:     toAPISplits(expense.Splits, users),
	}), nil
}

// CreateExpense allocates and stores a new expense.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	userID, err := middleware.RequireUserID(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("CreateExpense request received",
		"user_id", userID,
		"type", req.Msg.Expense.Type,
		"participants", len(req.Msg.Expense.Participants),
	)

	expense, users, err := s.create(ctx, userID, req.Msg.Expense)
	if err != nil {
		return nil, s.rejected(err)
	}

	s.logger.Info("Expense created", "expense_id", expense.ID, "amount", expense.Amount.String())
	return connect.NewResponse(&api.CreateExpenseResponse{Expense: toAPIExpense(expense, users)}), nil
}

// GetExpense returns an expense the caller paid or shares.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	userID, err := middleware.RequireUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req.Msg); err != nil {
		return nil, toConnectError(err)
	}

	expense, err := s.store.GetExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if !expense.Involves(userID) {
		return nil, permissionDenied(errNotInvolved)
	}

	users, err := resolveUsers(ctx, s.store, expenseUserIDs(expense)...)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.GetExpenseResponse{Expense: toAPIExpense(expense, users)}), nil
}

// ListExpenses returns the caller's expenses, newest date first.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	userID, err := middleware.RequireUserID(ctx)
	if err != nil {
		return nil, err
	}

	filter := storage.ExpenseFilter{UserID: userID, GroupID: req.Msg.GroupID}
	if req.Msg.Label != "" {
		label, err := models.ParseLabel(req.Msg.Label)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		filter.Label = label
	}

	expenses, err := s.store.ListExpenses(ctx, filter)
	if err != nil {
		s.logger.Error("ListExpenses failed", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}
	users, err := resolveUsers(ctx, s.store, expenseUserIDs(expenses...)...)
	if err != nil {
		return nil, toConnectError(err)
	}

	out := make([]api.Expense, len(expenses))
	for i, e := range expenses {
		out[i] = toAPIExpense(e, users)
	}

	s.logger.Info("ListExpenses successful", "user_id", userID, "count", len(out))
	return connect.NewResponse(&api.ListExpensesResponse{Expenses: out}), nil
}

// UpdateExpense replaces an expense's fields and splits. Only the payer may
// edit it. A split that keeps its participant and amount keeps its settled flag.
func (s *ExpenseService) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	userID, err := middleware.RequireUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req.Msg); err != nil {
		return nil, toConnectError(err)
	}
	s.logger.Info("UpdateExpense request received", "user_id", userID, "expense_id", req.Msg.ExpenseID)

	existing, err := s.store.GetExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if existing.PayerID != userID {
		return nil, permissionDenied(errNotPayer)
	}
	if existing.Type == models.ExpenseSettlement {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errSettledExpense)
	}
	updated, users, err := s.candidate(ctx, userID, req.Msg.Expense)
	if err != nil {
		return nil, s.rejected(err)
	}
	if updated.Type == models.ExpenseSettlement {
		return nil, invalidArgument("an expense cannot become a settlement")
	}

	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	if req.Msg.Expense.Date == nil {
		updated.Date = existing.Date
	}
	for i := range updated.Splits {
		split := &updated.Splits[i]
		if old, ok := existing.SplitFor(split.UserID); ok && old.Settled && old.Amount == split.Amount {
			split.Settled = true
		}
	}
	if err := calculator.Validate(updated); err != nil {
		return nil, s.rejected(err)
	}

	if err := s.store.UpdateExpense(ctx, updated); err != nil {
		s.logger.Error("UpdateExpense failed", "expense_id", updated.ID, "error", err)
		return nil, toConnectError(err)
	}

	s.notify.record(ctx, &models.Activity{
		Type:         models.ActivityExpenseUpdated,
		ExpenseID:    updated.ID,
		ActorID:      userID,
		ActorName:    models.DisplayName(models.Resolve(userID, users)),
		Description:  "Updated expense: " + updated.Description,
		Amount:       updated.Amount,
		Participants: append(existing.ParticipantIDs(), updated.ParticipantIDs()...),
	})

	s.logger.Info("Expense updated", "expense_id", updated.ID)
	return connect.NewResponse(&api.UpdateExpenseResponse{Expense: toAPIExpense(updated, users)}), nil
}

// DeleteExpense removes an expense the caller paid. Deleting an expense that
// does not exist succeeds.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	userID, err := middleware.RequireUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req.Msg); err != nil {
		return nil, toConnectError(err)
	}
	expenseID := req.Msg.ExpenseID

	existing, err := s.store.GetExpense(ctx, expenseID)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("Expense not found or already deleted", "expense_id", expenseID)
		return connect.NewResponse(&api.DeleteExpenseResponse{}), nil
	}
	if err != nil {
		return nil, toConnectError(err)
	}
	if existing.PayerID != userID {
		return nil, permissionDenied(errNotPayer)
	}

	deleted, err := s.store.DeleteExpense(ctx, expenseID)
	if err != nil {
		s.logger.Error("DeleteExpense failed", "expense_id", expenseID, "error", err)
		return nil, toConnectError(err)
	}

	if deleted {
		s.notify.record(ctx, &models.Activity{
			Type:         models.ActivityExpenseDeleted,
			ExpenseID:    expenseID,
			ActorID:      userID,
			ActorName:    s.actorName(ctx, userID),
			Description:  "Deleted expense: " + existing.Description,
			Amount:       existing.Amount,
			Participants: existing.ParticipantIDs(),
		})
	}

	s.logger.Info("Expense deleted", "expense_id", expenseID, "user_id", userID)
	return connect.NewResponse(&api.DeleteExpenseResponse{Deleted: deleted}), nil
}

// SettleSplit marks the caller's own share of an expense as paid.
func (s *ExpenseService) SettleSplit(ctx context.Context, req *connect.Request[api.SettleSplitRequest]) (*connect.Response[api.SettleSplitResponse], error) {
	userID, err := middleware.RequireUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req.Msg); err != nil {
		return nil, toConnectError(err)
	}

	expense, err := s.store.GetExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, toConnectError(err)
	}
	split, ok := expense.SplitFor(userID)
	if !ok {
		return nil, permissionDenied(errNotInvolved)
	}
	if split.Settled {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errNothingToSettle)
	}

	activity := &models.Activity{
		Type:         models.ActivitySplitSettled,
		ExpenseID:    expense.ID,
		ActorID:      userID,
		ActorName:    s.actorName(ctx, userID),
		Description:  "Settled share of: " + expense.Description,
		Amount:       split.Amount,
		Participants: []string{expense.PayerID},
	}
	err = s.store.SettleSplit(ctx, expense.ID, userID, activity)
	if errors.Is(err, storage.ErrAlreadySettled) {
		// Settled by a concurrent request since the expense was read.
		return nil, connect.NewError(connect.CodeFailedPrecondition, errNothingToSettle)
	}
	if err != nil {
		s.logger.Error("SettleSplit failed", "expense_id", expense.ID, "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}
	split.Settled = true
	s.metrics.SplitsSettled(1)
	s.notify.publish(ctx, activity)

	users, err := resolveUsers(ctx, s.store, expenseUserIDs(expense)...)
	if err != nil {
		return nil, toConnectError(err)
	}

	s.logger.Info("Split settled", "expense_id", expense.ID, "user_id", userID)
	return connect.NewResponse(&api.SettleSplitResponse{Expense: toAPIExpense(expense, users)}), nil
}

// SettleUp clears every open split between the caller and a friend and
// records the net payment as a settlement expense.
func (s *ExpenseService) SettleUp(ctx context.Context, req *connect.Request[api.SettleUpRequest]) (*connect.Response[api.SettleUpResponse], error) {
	userID, err := middleware.RequireUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req.Msg); err != nil {
		return nil, toConnectError(err)
	}
	friendID := req.Msg.FriendID
	if friendID == userID {
		return nil, invalidArgument("cannot settle up with yourself")
	}
	s.logger.Info("SettleUp request received", "user_id", userID, "friend_id", friendID)

	users, err := resolveUsers(ctx, s.store, userID, friendID)
	if err != nil {
		return nil, toConnectError(err)
	}
	friend, ok := users[friendID]
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("user %s: %w", friendID, storage.ErrNotFound))
	}
	actorName := models.DisplayName(models.Resolve(userID, users))

	var (
		settlement *models.Expense
		activity   *models.Activity
	)
	result, err := s.store.SettleUp(ctx, userID, friendID, func(r storage.SettleUpResult) (*models.Expense, *models.Activity) {
		net := r.OwedToUser - r.OwedByUser
		activity = &models.Activity{
			Type:         models.ActivitySettledUp,
			ActorID:      userID,
			ActorName:    actorName,
			Description:  "Settled up with " + friend.Name,
			Amount:       net.Abs(),
			Participants: []string{friendID},
		}
		if net == 0 {
			return nil, activity
		}
		settlement = &models.Expense{
			Description: "Settlement",
			Amount:      net.Abs(),
			PayerID:     userID,
			Type:        models.ExpenseSettlement,
			Label:       models.DefaultLabel,
			Splits:      []models.Split{{UserID: friendID, Amount: net.Abs(), Settled: true}},
		}
		if net > 0 {
			// The friend paid the caller.
			settlement.PayerID = friendID
			settlement.Splits[0].UserID = userID
		}
		return settlement, activity
	})
	if err != nil {
		s.logger.Error("SettleUp failed", "user_id", userID, "friend_id", friendID, "error", err)
		return nil, toConnectError(err)
	}

	resp := &api.SettleUpResponse{
		SettledSplits: result.Settled,
		Amount:        result.OwedToUser - result.OwedByUser,
	}
	if result.Settled == 0 {
		s.logger.Info("SettleUp found nothing open", "user_id", userID, "friend_id", friendID)
		return connect.NewResponse(resp), nil
	}

	s.metrics.SplitsSettled(result.Settled)
	if activity != nil {
		s.notify.publish(ctx, activity)
	}
	if settlement != nil {
		s.metrics.ExpenseCreated(string(models.ExpenseSettlement))
		out := toAPIExpense(settlement, users)
		resp.Settlement = &out
	}

	s.logger.Info("Settled up", "user_id", userID, "friend_id", friendID, "splits", result.Settled, "amount", resp.Amount.String())
	return connect.NewResponse(resp), nil
}

// ImportExpenses creates each candidate independently. A rejected candidate
// is reported in its result and does not stop the rest.
func (s *ExpenseService) ImportExpenses(ctx context.Context, req *connect.Request[api.ImportExpensesRequest]) (*connect.Response[api.ImportExpensesResponse], error) {
	userID, err := middleware.RequireUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req.Msg); err != nil {
		return nil, toConnectError(err)
	}
	s.logger.Info("ImportExpenses request received", "user_id", userID, "count", len(req.Msg.Expenses))

	resp := &api.ImportExpensesResponse{Results: make([]api.ImportResult, 0, len(req.Msg.Expenses))}
	for i, in := range req.Msg.Expenses {
		result := api.ImportResult{Index: i}

		expense, _, err := s.create(ctx, userID, in)
		if err != nil {
			cerr := s.rejected(err)
			switch connect.CodeOf(cerr) {
			case connect.CodeInternal, connect.CodeCanceled, connect.CodeDeadlineExceeded:
				s.logger.Error("ImportExpenses aborted", "index", i, "error", err)
				return nil, cerr
			}
			result.Error = errorMessage(err)
			if se, ok := calculator.AsSplitError(err); ok {
				result.SplitError = toAPISplitError(se)
			}
			resp.Failed++
		} else {
			result.ExpenseID = expense.ID
			resp.Imported++
		}
		resp.Results = append(resp.Results, result)
	}

	s.logger.Info("ImportExpenses finished", "user_id", userID, "imported", resp.Imported, "failed", resp.Failed)
	return connect.NewResponse(resp), nil
}

// GetBalances returns the caller's dashboard figures: what others owe, what
// the caller owes and one row per counterparty. Friends without open splits
// are listed with zero amounts.
func (s *ExpenseService) GetBalances(ctx context.Context, req *connect.Request[api.GetBalancesRequest]) (*connect.Response[api.GetBalancesResponse], error) {
	userID, err := middleware.RequireUserID(ctx)
	if err != nil {
		return nil, err
	}

	var (
		expenses  []*models.Expense
		friendIDs []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = s.store.ListExpenses(gctx, storage.ExpenseFilter{
			UserID: userID,
			Types:  []models.ExpenseType{models.ExpenseSplit},
		})
		return err
	})
	g.Go(func() error {
		var err error
		friendIDs, err = s.store.ListFriendIDs(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("GetBalances failed", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	balances := calculator.ComputeBalances(expenses, userID)
	rows := balances.Sorted()
	for _, id := range friendIDs {
		if _, ok := balances.Counterparties[id]; !ok {
			rows = append(rows, calculator.CounterpartyBalance{UserID: id})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		ai, aj := rows[i].NetAmount.Abs(), rows[j].NetAmount.Abs()
		if ai != aj {
			return ai > aj
		}
		return rows[i].UserID < rows[j].UserID
	})

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.UserID
	}
	users, err := resolveUsers(ctx, s.store, ids...)
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &api.GetBalancesResponse{
		TotalOwed:  balances.TotalOwed,
		TotalOwe:   balances.TotalOwe,
		NetBalance: balances.NetBalance,
		Balances:   make([]api.Balance, len(rows)),
	}
	for i, r := range rows {
		resp.Balances[i] = api.Balance{
			User:      refFor(r.UserID, users),
			YouOwe:    r.YouOwe,
			TheyOwe:   r.TheyOwe,
			NetAmount: r.NetAmount,
		}
	}
	return connect.NewResponse(resp), nil
}

// ListActivity returns the caller's feed, newest first.
func (s *ExpenseService) ListActivity(ctx context.Context, req *connect.Request[api.ListActivityRequest]) (*connect.Response[api.ListActivityResponse], error) {
	userID, err := middleware.RequireUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req.Msg); err != nil {
		return nil, toConnectError(err)
	}

	activities, err := s.store.ListActivity(ctx, userID, req.Msg.Limit)
	if err != nil {
		s.logger.Error("ListActivity failed", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	ids := make([]string, len(activities))
	for i, a := range activities {
		ids[i] = a.ActorID
	}
	users, err := resolveUsers(ctx, s.store, ids...)
	if err != nil {
		return nil, toConnectError(err)
	}

	out := make([]api.Activity, len(activities))
	for i, a := range activities {
		out[i] = toAPIActivity(a, users)
	}
	return connect.NewResponse(&api.ListActivityResponse{Activities: out}), nil
}

// create allocates, stores and announces a new expense.
func (s *ExpenseService) create(ctx context.Context, userID string, in api.ExpenseInput) (*models.Expense, map[string]*models.User, error) {
	expense, users, err := s.candidate(ctx, userID, in)
	if err != nil {
		return nil, nil, err
	}
	if err := calculator.Validate(expense); err != nil {
		return nil, nil, err
	}

	if err := s.store.CreateExpense(ctx, expense); err != nil {
		s.logger.Error("CreateExpense failed", "error", err)
		return nil, nil, err
	}
	s.metrics.ExpenseCreated(string(expense.Type))

	s.notify.record(ctx, &models.Activity{
		Type:         models.ActivityExpenseCreated,
		ExpenseID:    expense.ID,
		ActorID:      userID,
		ActorName:    models.DisplayName(models.Resolve(userID, users)),
		Description:  "Created a new expense: " + expense.Description,
		Amount:       expense.Amount,
		Participants: append(expense.ParticipantIDs(), expense.PayerID),
	})
	return expense, users, nil
}

// candidate checks an input expense and allocates it with the caller as payer.
// Every participant must exist and, for a group expense, belong to the group.
func (s *ExpenseService) candidate(ctx context.Context, userID string, in api.ExpenseInput) (*models.Expense, map[string]*models.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, nil, err
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, nil, invalidArgument("description is required")
	}

	expenseType, err := models.ParseExpenseType(in.Type)
	if err != nil {
		return nil, nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	var splitType models.SplitType
	if expenseType == models.ExpenseSplit {
		if splitType, err = models.ParseSplitType(in.SplitType); err != nil {
			return nil, nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
	}
	label, err := models.ParseLabel(in.Label)
	if err != nil {
		return nil, nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	participants := make([]calculator.Participant, len(in.Participants))
	for i, p := range in.Participants {
		participants[i] = calculator.Participant{UserID: p.UserID, Percent: p.Percent, Amount: p.Amount}
	}
	alloc, err := calculator.Allocate(calculator.Request{
		Total:        in.Amount,
		PayerID:      userID,
		Type:         expenseType,
		SplitType:    splitType,
		Participants: participants,
	})
	if err != nil {
		return nil, nil, err
	}

	expense := &models.Expense{
		Description: description,
		Amount:      in.Amount,
		PayerID:     userID,
		GroupID:     in.GroupID,
		Type:        expenseType,
		SplitType:   splitType,
		PayerShare:  alloc.PayerShare,
		Label:       label,
		Splits:      alloc.Splits,
	}
	if in.Date != nil {
		expense.Date = in.Date.UTC()
	}
	ids := expenseUserIDs(expense)
	users, err := resolveUsers(ctx, s.store, ids...)
	if err != nil {
		return nil, nil, err
	}
	for _, id := range ids {
		if _, ok := users[id]; !ok {
			return nil, nil, invalidArgument("unknown user %s", id)
		}
	}

	if expense.GroupID != "" {
		group, err := s.store.GetGroup(ctx, expense.GroupID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, invalidArgument("unknown group %s", expense.GroupID)
		}
		if err != nil {
			return nil, nil, err
		}
		if !group.HasMember(userID) {
			return nil, nil, permissionDenied(errNotGroupMember)
		}
		for _, id := range ids {
			if !group.HasMember(id) {
				return nil, nil, invalidArgument("%s is not a member of group %s", models.DisplayName(models.Resolve(id, users)), group.Name)
			}
		}
	}

	return expense, users, nil
}

// rejected converts a candidate failure into a Connect error and counts
// split rule rejections.
func (s *ExpenseService) rejected(err error) error {
	if se, ok := calculator.AsSplitError(err); ok {
		s.metrics.SplitRejected(string(se.Kind))
		s.logger.Warn("Expense rejected", "kind", se.Kind, "reason", se.Reason)
	}
	return toConnectError(err)
}

// actorName looks up the caller's display name for an activity record.
func (s *ExpenseService) actorName(ctx context.Context, userID string) string {
	users, err := resolveUsers(ctx, s.store, userID)
	if err != nil {
		s.logger.Warn("Failed to resolve actor", "user_id", userID, "error", err)
	}
	return models.DisplayName(models.Resolve(userID, users))
}
