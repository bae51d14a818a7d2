// Package service implements the settleup.v1 Connect services on top of a
// storage.Store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/auth"
	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/events"
	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/internal/validation"
	"github.com/mmynk/settleup/pkg/api"
)

// SplitErrorKindKey is the error metadata key carrying the calculator error
// kind of a rejected expense.
const SplitErrorKindKey = "Split-Error-Kind"

var (
	errNotPayer        = errors.New("only the payer can change this expense")
	errNotGroupOwner   = errors.New("only the group owner can delete it")
	errNotGroupMember  = errors.New("not a member of this group")
	errNotInvolved     = errors.New("not involved in this expense")
	errSelfFriend      = errors.New("cannot befriend yourself")
	errAlreadyFriends  = errors.New("user is already your friend")
	errNotFriends      = errors.New("user is not your friend")
	errSettledExpense  = errors.New("settlement records cannot be edited")
	errNothingToSettle = errors.New("no open split to settle")
)

// toConnectError maps domain errors onto Connect codes. Errors that already
// carry a code pass through.
func toConnectError(err error) error {
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return cerr
	}

	if se, ok := calculator.AsSplitError(err); ok {
		out := connect.NewError(connect.CodeInvalidArgument, se)
		out.Meta().Set(SplitErrorKindKey, string(se.Kind))
		return out
	}

	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return connect.NewError(connect.CodeInvalidArgument, verr)
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, storage.ErrConflict), errors.Is(err, auth.ErrEmailExists):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, storage.ErrAlreadySettled):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

// errorMessage drops the code prefix Connect errors add to Error().
func errorMessage(err error) string {
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return cerr.Message()
	}
	return err.Error()
}

func invalidArgument(format string, args ...any) error {
	return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf(format, args...))
}

func permissionDenied(err error) error {
	return connect.NewError(connect.CodePermissionDenied, err)
}

// resolveUsers loads every user referenced by ids. Missing users are simply
// absent from the result.
func resolveUsers(ctx context.Context, users storage.UserStore, ids ...string) (map[string]*models.User, error) {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return map[string]*models.User{}, nil
	}
	return users.GetUsersByIDs(ctx, unique)
}

func expenseUserIDs(expenses ...*models.Expense) []string {
	var ids []string
	for _, e := range expenses {
		ids = append(ids, e.PayerID)
		ids = append(ids, e.ParticipantIDs()...)
	}
	return ids
}

func toAPIUser(u *models.User) api.User {
	return api.User{ID: u.ID, Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt}
}

func toAPIRef(ref models.UserRef) api.UserRef {
	switch r := ref.(type) {
	case models.ResolvedUser:
		return api.UserRef{ID: r.ID, Name: models.DisplayName(r), Email: r.Email, Resolved: true}
	default:
		return api.UserRef{ID: ref.RefID(), Name: models.DisplayName(ref)}
	}
}

func refFor(id string, users map[string]*models.User) api.UserRef {
	return toAPIRef(models.Resolve(id, users))
}

func toAPISplits(splits []models.Split, users map[string]*models.User) []api.Split {
	out := make([]api.Split, len(splits))
	for i, s := range splits {
		out[i] = api.Split{
			User:       refFor(s.UserID, users),
			Amount:     s.Amount,
			Percentage: s.Percentage,
			Settled:    s.Settled,
		}
	}
	return out
}

func toAPIExpense(e *models.Expense, users map[string]*models.User) api.Expense {
	return api.Expense{
		ID:          e.ID,
		Description: e.Description,
		Amount:      e.Amount,
		Payer:       refFor(e.PayerID, users),
		GroupID:     e.GroupID,
		Type:        string(e.Type),
		SplitType:   string(e.SplitType),
		PayerShare:  e.PayerShare,
		Label:       string(e.Label),
		Splits:      toAPISplits(e.Splits, users),
		Date:        e.Date,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func toAPIGroup(g *models.Group, users map[string]*models.User) api.Group {
	members := make([]api.UserRef, len(g.Members))
	for i, id := range g.Members {
		members[i] = refFor(id, users)
	}
	return api.Group{ID: g.ID, Name: g.Name, OwnerID: g.OwnerID, Members: members, CreatedAt: g.CreatedAt}
}

// toAPIActivity falls back to the name captured when the activity was
// written if the actor no longer exists.
func toAPIActivity(a *models.Activity, users map[string]*models.User) api.Activity {
	actor := refFor(a.ActorID, users)
	if !actor.Resolved && a.ActorName != "" {
		actor.Name = a.ActorName
	}
	return api.Activity{
		ID:          a.ID,
		Type:        string(a.Type),
		ExpenseID:   a.ExpenseID,
		Actor:       actor,
		Description: a.Description,
		Amount:      a.Amount,
		CreatedAt:   time.UnixMilli(a.CreatedAt).UTC(),
	}
}

func toAPISplitError(se *calculator.SplitError) *api.SplitError {
	out := &api.SplitError{Kind: string(se.Kind), Reason: se.Reason, UserID: se.UserID}
	switch se.Kind {
	case calculator.KindInvalidAmount:
		actual := se.Actual
		out.Actual = &actual
		if se.Expected != 0 {
			expected := se.Expected
			out.Expected = &expected
		}
	case calculator.KindSplitSumMismatch, calculator.KindUnequalShares:
		expected, actual := se.Expected, se.Actual
		out.Expected, out.Actual = &expected, &actual
	case calculator.KindPercentageSumMismatch:
		expected, actual := se.ExpectedPercent, se.ActualPercent
		out.ExpectedPercent, out.ActualPercent = &expected, &actual
	}
	return out
}

// notifier records activities and forwards them to the event stream. Neither
// step may fail the request that caused it.
type notifier struct {
	activity  storage.ActivityStore
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// record stores the activity, then publishes it.
func (n *notifier) record(ctx context.Context, a *models.Activity) {
	if err := n.activity.RecordActivity(ctx, a); err != nil {
		n.logger.Error("Failed to record activity", "type", a.Type, "expense_id", a.ExpenseID, "error", err)
		return
	}
	n.publish(ctx, a)
}

// publish forwards an activity that is already stored.
func (n *notifier) publish(ctx context.Context, a *models.Activity) {
	if n.publisher == nil {
		return
	}
	err := n.publisher.Publish(ctx, events.FromActivity(a))
	n.metrics.EventPublished(err)
	if err != nil {
		n.logger.Warn("Failed to publish event", "type", a.Type, "activity_id", a.ID, "error", err)
	}
}
