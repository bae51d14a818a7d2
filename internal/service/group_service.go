package service

import (
	"context"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/internal/validation"
	"github.com/mmynk/settleup/pkg/api"
)

// GroupService implements the Connect GroupService
type GroupService struct {
	store  storage.Store
	logger *slog.Logger
}

var _ api.GroupServiceHandler = (*GroupService)(nil)

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store, logger *slog.Logger) *GroupService {
	return &GroupService{store: store, logger: logger}
}

// CreateGroup creates a new group owned by the caller.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	userID, err := middleware.RequireUserID(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"members_count", len(req.Msg.MemberIDs),
	)

	if err := validation.Struct(req.Msg); err != nil {
		return nil, toConnectError(err)
	}
	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, invalidArgument("group name is required")
	}

	members := []string{userID}
	seen := map[string]bool{userID: true}
	for _, id := range req.Msg.MemberIDs {
		if !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}
	users, err := resolveUsers(ctx, s.store, members...)
	if err != nil {
		return nil, toConnectError(err)
	}
	for _, id := range members {
		if _, ok := users[id]; !ok {
			return nil, invalidArgument("unknown member %s", id)
		}
	}

	group := &models.Group{Name: name, OwnerID: userID, Members: members}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		s.logger.Error("CreateGroup failed", "error", err)
		return nil, toConnectError(err)
	}

	s.logger.Info("Group created", "group_id", group.ID)
	return connect.NewResponse(&api.CreateGroupResponse{Group: toAPIGroup(group, users)}), nil
}

// GetGroup retrieves a group the caller belongs to.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	group, err := s.memberGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, err
	}
	users, err := resolveUsers(ctx, s.store, group.Members...)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.GetGroupResponse{Group: toAPIGroup(group, users)}), nil
}

// ListGroups returns the groups the caller belongs to.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	userID, err := middleware.RequireUserID(ctx)
	if err != nil {
		return nil, err
	}

	groups, err := s.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		s.logger.Error("ListGroups failed", "error", err)
		return nil, toConnectError(err)
	}

	var ids []string
	for _, g := range groups {
		ids = append(ids, g.Members...)
	}
	users, err := resolveUsers(ctx, s.store, ids...)
	if err != nil {
		return nil, toConnectError(err)
	}

	out := make([]api.Group, len(groups))
	for i, g := range groups {
		out[i] = toAPIGroup(g, users)
	}

	s.logger.Info("ListGroups successful", "count", len(groups))
	return connect.NewResponse(&api.ListGroupsResponse{Groups: out}), nil
}

// DeleteGroup removes a group. Only its owner may do so.
func (s *GroupService) DeleteGroup(ctx context.Context, req *connect.Request[api.DeleteGroupRequest]) (*connect.Response[api.DeleteGroupResponse], error) {
	userID, err := middleware.RequireUserID(ctx)
	if err != nil {
		return nil, err
	}
	group, err := s.memberGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, err
	}
	if group.OwnerID != userID {
		return nil, permissionDenied(errNotGroupOwner)
	}

	if err := s.store.DeleteGroup(ctx, group.ID); err != nil {
		s.logger.Error("DeleteGroup failed", "error", err)
		return nil, toConnectError(err)
	}

	s.logger.Info("Group deleted", "group_id", group.ID)
	return connect.NewResponse(&api.DeleteGroupResponse{}), nil
}

// GetGroupBalances nets the open splits of every expense in the group and
// suggests the payments that would clear them.
func (s *GroupService) GetGroupBalances(ctx context.Context, req *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error) {
	group, err := s.memberGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, err
	}

	expenses, err := s.store.ListGroupExpenses(ctx, group.ID)
	if err != nil {
		s.logger.Error("GetGroupBalances failed - could not list expenses", "group_id", group.ID, "error", err)
		return nil, toConnectError(err)
	}
	members, debts := calculator.ComputeGroupBalances(expenses)

	users, err := resolveUsers(ctx, s.store, append(expenseUserIDs(expenses...), group.Members...)...)
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &api.GetGroupBalancesResponse{
		Members: make([]api.MemberBalance, len(members)),
		Debts:   make([]api.Debt, len(debts)),
	}
	for i, m := range members {
		resp.Members[i] = api.MemberBalance{
			User:       refFor(m.UserID, users),
			NetBalance: m.NetBalance,
			TotalPaid:  m.TotalPaid,
			TotalOwed:  m.TotalOwed,
		}
	}
	for i, d := range debts {
		resp.Debts[i] = api.Debt{From: refFor(d.From, users), To: refFor(d.To, users), Amount: d.Amount}
	}

	s.logger.Info("GetGroupBalances successful", "group_id", group.ID, "expenses", len(expenses), "debts", len(debts))
	return connect.NewResponse(resp), nil
}

// memberGroup loads a group and checks that the caller belongs to it.
func (s *GroupService) memberGroup(ctx context.Context, groupID string) (*models.Group, error) {
	userID, err := middleware.RequireUserID(ctx)
	if err != nil {
		return nil, err
	}
	if groupID == "" {
		return nil, invalidArgument("group_id is required")
	}

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if !group.HasMember(userID) {
		return nil, permissionDenied(errNotGroupMember)
	}
	return group, nil
}
