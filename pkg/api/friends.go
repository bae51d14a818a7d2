package api

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/money"
)

const (
	// FriendServiceName is the fully-qualified name of the FriendService service.
	FriendServiceName = "settleup.v1.FriendService"

	FriendServiceListFriendsProcedure  = "/settleup.v1.FriendService/ListFriends"
	FriendServiceSearchUserProcedure   = "/settleup.v1.FriendService/SearchUser"
	FriendServiceAddFriendProcedure    = "/settleup.v1.FriendService/AddFriend"
	FriendServiceRemoveFriendProcedure = "/settleup.v1.FriendService/RemoveFriend"
)

// Friend is a friend with the open balance between the caller and them.
// NetAmount is positive when the friend owes the caller.
type Friend struct {
	User      User        `json:"user"`
	NetAmount money.Cents `json:"net_amount"`
}

type ListFriendsRequest struct{}

type ListFriendsResponse struct {
	Friends []Friend `json:"friends"`
}

type SearchUserRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type SearchUserResponse struct {
	User User `json:"user"`
}

type AddFriendRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type AddFriendResponse struct {
	Friend User `json:"friend"`
}

type RemoveFriendRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type RemoveFriendResponse struct{}

// FriendServiceHandler is implemented by the server.
type FriendServiceHandler interface {
	ListFriends(context.Context, *connect.Request[ListFriendsRequest]) (*connect.Response[ListFriendsResponse], error)
	SearchUser(context.Context, *connect.Request[SearchUserRequest]) (*connect.Response[SearchUserResponse], error)
	AddFriend(context.Context, *connect.Request[AddFriendRequest]) (*connect.Response[AddFriendResponse], error)
	RemoveFriend(context.Context, *connect.Request[RemoveFriendRequest]) (*connect.Response[RemoveFriendResponse], error)
}

// NewFriendServiceHandler builds an HTTP handler from the service implementation.
func NewFriendServiceHandler(svc FriendServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	listFriends := connect.NewUnaryHandler(FriendServiceListFriendsProcedure, svc.ListFriends, opts...)
	searchUser := connect.NewUnaryHandler(FriendServiceSearchUserProcedure, svc.SearchUser, opts...)
	addFriend := connect.NewUnaryHandler(FriendServiceAddFriendProcedure, svc.AddFriend, opts...)
	removeFriend := connect.NewUnaryHandler(FriendServiceRemoveFriendProcedure, svc.RemoveFriend, opts...)

	return "/" + FriendServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case FriendServiceListFriendsProcedure:
			listFriends.ServeHTTP(w, r)
		case FriendServiceSearchUserProcedure:
			searchUser.ServeHTTP(w, r)
		case FriendServiceAddFriendProcedure:
			addFriend.ServeHTTP(w, r)
		case FriendServiceRemoveFriendProcedure:
			removeFriend.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// FriendServiceClient calls FriendService over HTTP.
type FriendServiceClient struct {
	listFriends  *connect.Client[ListFriendsRequest, ListFriendsResponse]
	searchUser   *connect.Client[SearchUserRequest, SearchUserResponse]
	addFriend    *connect.Client[AddFriendRequest, AddFriendResponse]
	removeFriend *connect.Client[RemoveFriendRequest, RemoveFriendResponse]
}

// NewFriendServiceClient constructs a client for the service at baseURL.
func NewFriendServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *FriendServiceClient {
	opts = clientOptions(opts)
	return &FriendServiceClient{
		listFriends:  connect.NewClient[ListFriendsRequest, ListFriendsResponse](httpClient, baseURL+FriendServiceListFriendsProcedure, opts...),
		searchUser:   connect.NewClient[SearchUserRequest, SearchUserResponse](httpClient, baseURL+FriendServiceSearchUserProcedure, opts...),
		addFriend:    connect.NewClient[AddFriendRequest, AddFriendResponse](httpClient, baseURL+FriendServiceAddFriendProcedure, opts...),
		removeFriend: connect.NewClient[RemoveFriendRequest, RemoveFriendResponse](httpClient, baseURL+FriendServiceRemoveFriendProcedure, opts...),
	}
}

func (c *FriendServiceClient) ListFriends(ctx context.Context, req *connect.Request[ListFriendsRequest]) (*connect.Response[ListFriendsResponse], error) {
	return c.listFriends.CallUnary(ctx, req)
}

func (c *FriendServiceClient) SearchUser(ctx context.Context, req *connect.Request[SearchUserRequest]) (*connect.Response[SearchUserResponse], error) {
	return c.searchUser.CallUnary(ctx, req)
}

func (c *FriendServiceClient) AddFriend(ctx context.Context, req *connect.Request[AddFriendRequest]) (*connect.Response[AddFriendResponse], error) {
	return c.addFriend.CallUnary(ctx, req)
}

func (c *FriendServiceClient) RemoveFriend(ctx context.Context, req *connect.Request[RemoveFriendRequest]) (*connect.Response[RemoveFriendResponse], error) {
	return c.removeFriend.CallUnary(ctx, req)
}
