package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/internal/validation"
	"github.com/mmynk/settleup/pkg/api"
)

// FriendService implements the Connect FriendService.
type FriendService struct {
	store  storage.Store
	logger *slog.Logger
}

var _ api.FriendServiceHandler = (*FriendService)(nil)

// NewFriendService creates a new FriendService with the given storage backend.
func NewFriendService(store storage.Store, logger *slog.Logger) *FriendService {
	return &FriendService{store: store, logger: logger}
}

// ListFriends returns the caller's friends with the open balance against each.
func (s *FriendService) ListFriends(ctx context.Context, req *connect.Request[api.ListFriendsRequest]) (*connect.Response[api.ListFriendsResponse], error) {
	userID, err := middleware.RequireUserID(ctx)
	if err != nil {
		return nil, err
	}

	ids, err := s.store.ListFriendIDs(ctx, userID)
	if err != nil {
		s.logger.Error("ListFriends failed", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}
	users, err := resolveUsers(ctx, s.store, ids...)
	if err != nil {
		return nil, toConnectError(err)
	}
	expenses, err := s.store.ListExpenses(ctx, storage.ExpenseFilter{
		UserID: userID,
		Types:  []models.ExpenseType{models.ExpenseSplit},
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	balances := calculator.ComputeBalances(expenses, userID)

	friends := make([]api.Friend, 0, len(ids))
	for _, id := range ids {
		u, ok := users[id]
		if !ok {
			continue
		}
		friends = append(friends, api.Friend{
			User:      toAPIUser(u),
			NetAmount: balances.Between(id).NetAmount,
		})
	}

	return connect.NewResponse(&api.ListFriendsResponse{Friends: friends}), nil
}

// SearchUser finds another user by exact email so they can be added as a friend.
func (s *FriendService) SearchUser(ctx context.Context, req *connect.Request[api.SearchUserRequest]) (*connect.Response[api.SearchUserResponse], error) {
	userID, err := middleware.RequireUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req.Msg); err != nil {
		return nil, toConnectError(err)
	}

	user, err := s.store.GetUserByEmail(ctx, req.Msg.Email)
	if err != nil {
		return nil, toConnectError(err)
	}
	if user.ID == userID {
		return nil, connect.NewError(connect.CodeNotFound, storage.ErrNotFound)
	}

	friends, err := s.store.AreFriends(ctx, userID, user.ID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if friends {
		return nil, connect.NewError(connect.CodeAlreadyExists, errAlreadyFriends)
	}

	return connect.NewResponse(&api.SearchUserResponse{User: toAPIUser(user)}), nil
}

// AddFriend records a symmetric friendship.
func (s *FriendService) AddFriend(ctx context.Context, req *connect.Request[api.AddFriendRequest]) (*connect.Response[api.AddFriendResponse], error) {
	userID, err := middleware.RequireUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req.Msg); err != nil {
		return nil, toConnectError(err)
	}
	friendID := req.Msg.UserID
	s.logger.Info("AddFriend request", "user_id", userID, "friend_id", friendID)

	if friendID == userID {
		return nil, connect.NewError(connect.CodeInvalidArgument, errSelfFriend)
	}
	friend, err := s.store.GetUserByID(ctx, friendID)
	if err != nil {
		return nil, toConnectError(err)
	}

	already, err := s.store.AreFriends(ctx, userID, friendID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if already {
		return nil, connect.NewError(connect.CodeAlreadyExists, errAlreadyFriends)
	}

	if err := s.store.AddFriend(ctx, userID, friendID); err != nil {
		s.logger.Error("AddFriend failed", "user_id", userID, "friend_id", friendID, "error", err)
		return nil, toConnectError(err)
	}

	s.logger.Info("Friend added", "user_id", userID, "friend_id", friendID)
	return connect.NewResponse(&api.AddFriendResponse{Friend: toAPIUser(friend)}), nil
}

// RemoveFriend drops the friendship on both sides. Shared expenses stay.
func (s *FriendService) RemoveFriend(ctx context.Context, req *connect.Request[api.RemoveFriendRequest]) (*connect.Response[api.RemoveFriendResponse], error) {
	userID, err := middleware.RequireUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req.Msg); err != nil {
		return nil, toConnectError(err)
	}
	friendID := req.Msg.UserID

	err = s.store.RemoveFriend(ctx, userID, friendID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, errNotFriends)
	}
	if err != nil {
		s.logger.Error("RemoveFriend failed", "user_id", userID, "friend_id", friendID, "error", err)
		return nil, toConnectError(err)
	}

	s.logger.Info("Friend removed", "user_id", userID, "friend_id", friendID)
	return connect.NewResponse(&api.RemoveFriendResponse{}), nil
}
