package api

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/money"
)

const (
	// ExpenseServiceName is the fully-qualified name of the ExpenseService service.
	ExpenseServiceName = "settleup.v1.ExpenseService"

	ExpenseServicePreviewSplitProcedure   = "/settleup.v1.ExpenseService/PreviewSplit"
	ExpenseServiceCreateExpenseProcedure  = "/settleup.v1.ExpenseService/CreateExpense"
	ExpenseServiceGetExpenseProcedure     = "/settleup.v1.ExpenseService/GetExpense"
	ExpenseServiceListExpensesProcedure   = "/settleup.v1.ExpenseService/ListExpenses"
	ExpenseServiceUpdateExpenseProcedure  = "/settleup.v1.ExpenseService/UpdateExpense"
	ExpenseServiceDeleteExpenseProcedure  = "/settleup.v1.ExpenseService/DeleteExpense"
	ExpenseServiceSettleSplitProcedure    = "/settleup.v1.ExpenseService/SettleSplit"
	ExpenseServiceSettleUpProcedure       = "/settleup.v1.ExpenseService/SettleUp"
	ExpenseServiceImportExpensesProcedure = "/settleup.v1.ExpenseService/ImportExpenses"
	ExpenseServiceGetBalancesProcedure    = "/settleup.v1.ExpenseService/GetBalances"
	ExpenseServiceListActivityProcedure   = "/settleup.v1.ExpenseService/ListActivity"
)

type PreviewSplitRequest struct {
	Expense ExpenseInput `json:"expense"`
}

// PreviewSplitResponse is the allocation CreateExpense would store.
type PreviewSplitResponse struct {
	PayerShare money.Cents `json:"payer_share"`
	Splits     []Split     `json:"splits"`
}

type CreateExpenseRequest struct {
	Expense ExpenseInput `json:"expense"`
}

type CreateExpenseResponse struct {
	Expense Expense `json:"expense"`
}

type GetExpenseRequest struct {
	ExpenseID string `json:"expense_id" validate:"required"`
}

type GetExpenseResponse struct {
	Expense Expense `json:"expense"`
}

// ListExpensesRequest filters the caller's expenses. Empty fields match all.
type ListExpensesRequest struct {
	Label   string `json:"label,omitempty"`
	GroupID string `json:"group_id,omitempty"`
}

type ListExpensesResponse struct {
	Expenses []Expense `json:"expenses"`
}

type UpdateExpenseRequest struct {
	ExpenseID string       `json:"expense_id" validate:"required"`
	Expense   ExpenseInput `json:"expense"`
}

type UpdateExpenseResponse struct {
	Expense Expense `json:"expense"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expense_id" validate:"required"`
}

// DeleteExpenseResponse reports whether anything was removed. Deleting a
// missing expense succeeds with Deleted false.
type DeleteExpenseResponse struct {
	Deleted bool `json:"deleted"`
}

type SettleSplitRequest struct {
	ExpenseID string `json:"expense_id" validate:"required"`
}

type SettleSplitResponse struct {
	Expense Expense `json:"expense"`
}

type SettleUpRequest struct {
	FriendID string `json:"friend_id" validate:"required"`
}

// SettleUpResponse describes a settle-up. Amount is the net that changed
// hands, positive when the friend paid the caller. Settlement is nil when
// the two were already even.
type SettleUpResponse struct {
	SettledSplits int         `json:"settled_splits"`
	Amount        money.Cents `json:"amount"`
	Settlement    *Expense    `json:"settlement,omitempty"`
}

type ImportExpensesRequest struct {
	Expenses []ExpenseInput `json:"expenses" validate:"required,min=1,max=500"`
}

// ImportResult is the outcome for the candidate at Index. Either ExpenseID
// or Error is set. SplitError details rejections by the split rules.
type ImportResult struct {
	Index      int         `json:"index"`
	ExpenseID  string      `json:"expense_id,omitempty"`
	Error      string      `json:"error,omitempty"`
	SplitError *SplitError `json:"split_error,omitempty"`
}

type ImportExpensesResponse struct {
	Results  []ImportResult `json:"results"`
	Imported int            `json:"imported"`
	Failed   int            `json:"failed"`
}

type GetBalancesRequest struct{}

// GetBalancesResponse holds the dashboard figures. Balances are sorted by
// the size of the net amount, largest first.
type GetBalancesResponse struct {
	TotalOwed  money.Cents `json:"total_owed"`
	TotalOwe   money.Cents `json:"total_owe"`
	NetBalance money.Cents `json:"net_balance"`
	Balances   []Balance   `json:"balances"`
}

type ListActivityRequest struct {
	Limit int `json:"limit,omitempty" validate:"gte=0,lte=200"`
}

type ListActivityResponse struct {
	Activities []Activity `json:"activities"`
}

// ExpenseServiceHandler is implemented by the server.
type ExpenseServiceHandler interface {
	PreviewSplit(context.Context, *connect.Request[PreviewSplitRequest]) (*connect.Response[PreviewSplitResponse], error)
	CreateExpense(context.Context, *connect.Request[CreateExpenseRequest]) (*connect.Response[CreateExpenseResponse], error)
	GetExpense(context.Context, *connect.Request[GetExpenseRequest]) (*connect.Response[GetExpenseResponse], error)
	ListExpenses(context.Context, *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error)
	UpdateExpense(context.Context, *connect.Request[UpdateExpenseRequest]) (*connect.Response[UpdateExpenseResponse], error)
	DeleteExpense(context.Context, *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error)
	SettleSplit(context.Context, *connect.Request[SettleSplitRequest]) (*connect.Response[SettleSplitResponse], error)
	SettleUp(context.Context, *connect.Request[SettleUpRequest]) (*connect.Response[SettleUpResponse], error)
	ImportExpenses(context.Context, *connect.Request[ImportExpensesRequest]) (*connect.Response[ImportExpensesResponse], error)
	GetBalances(context.Context, *connect.Request[GetBalancesRequest]) (*connect.Response[GetBalancesResponse], error)
	ListActivity(context.Context, *connect.Request[ListActivityRequest]) (*connect.Response[ListActivityResponse], error)
}

// NewExpenseServiceHandler builds an HTTP handler from the service implementation.
func NewExpenseServiceHandler(svc ExpenseServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	previewSplit := connect.NewUnaryHandler(ExpenseServicePreviewSplitProcedure, svc.PreviewSplit, opts...)
	createExpense := connect.NewUnaryHandler(ExpenseServiceCreateExpenseProcedure, svc.CreateExpense, opts...)
	getExpense := connect.NewUnaryHandler(ExpenseServiceGetExpenseProcedure, svc.GetExpense, opts...)
	listExpenses := connect.NewUnaryHandler(ExpenseServiceListExpensesProcedure, svc.ListExpenses, opts...)
	updateExpense := connect.NewUnaryHandler(ExpenseServiceUpdateExpenseProcedure, svc.UpdateExpense, opts...)
	deleteExpense := connect.NewUnaryHandler(ExpenseServiceDeleteExpenseProcedure, svc.DeleteExpense, opts...)
	settleSplit := connect.NewUnaryHandler(ExpenseServiceSettleSplitProcedure, svc.SettleSplit, opts...)
	settleUp := connect.NewUnaryHandler(ExpenseServiceSettleUpProcedure, svc.SettleUp, opts...)
	importExpenses := connect.NewUnaryHandler(ExpenseServiceImportExpensesProcedure, svc.ImportExpenses, opts...)
	getBalances := connect.NewUnaryHandler(ExpenseServiceGetBalancesProcedure, svc.GetBalances, opts...)
	listActivity := connect.NewUnaryHandler(ExpenseServiceListActivityProcedure, svc.ListActivity, opts...)

	return "/" + ExpenseServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ExpenseServicePreviewSplitProcedure:
			previewSplit.ServeHTTP(w, r)
		case ExpenseServiceCreateExpenseProcedure:
			createExpense.ServeHTTP(w, r)
		case ExpenseServiceGetExpenseProcedure:
			getExpense.ServeHTTP(w, r)
		case ExpenseServiceListExpensesProcedure:
			listExpenses.ServeHTTP(w, r)
		case ExpenseServiceUpdateExpenseProcedure:
			updateExpense.ServeHTTP(w, r)
		case ExpenseServiceDeleteExpenseProcedure:
			deleteExpense.ServeHTTP(w, r)
		case ExpenseServiceSettleSplitProcedure:
			settleSplit.ServeHTTP(w, r)
		case ExpenseServiceSettleUpProcedure:
			settleUp.ServeHTTP(w, r)
		case ExpenseServiceImportExpensesProcedure:
			importExpenses.ServeHTTP(w, r)
		case ExpenseServiceGetBalancesProcedure:
			getBalances.ServeHTTP(w, r)
		case ExpenseServiceListActivityProcedure:
			listActivity.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// ExpenseServiceClient calls ExpenseService over HTTP.
type ExpenseServiceClient struct {
	previewSplit   *connect.Client[PreviewSplitRequest, PreviewSplitResponse]
	createExpense  *connect.Client[CreateExpenseRequest, CreateExpenseResponse]
	getExpense     *connect.Client[GetExpenseRequest, GetExpenseResponse]
	listExpenses   *connect.Client[ListExpensesRequest, ListExpensesResponse]
	updateExpense  *connect.Client[UpdateExpenseRequest, UpdateExpenseResponse]
	deleteExpense  *connect.Client[DeleteExpenseRequest, DeleteExpenseResponse]
	settleSplit    *connect.Client[SettleSplitRequest, SettleSplitResponse]
	settleUp       *connect.Client[SettleUpRequest, SettleUpResponse]
	importExpenses *connect.Client[ImportExpensesRequest, ImportExpensesResponse]
	getBalances    *connect.Client[GetBalancesRequest, GetBalancesResponse]
	listActivity   *connect.Client[ListActivityRequest, ListActivityResponse]
}

// NewExpenseServiceClient constructs a client for the service at baseURL.
func NewExpenseServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ExpenseServiceClient {
	opts = clientOptions(opts)
	return &ExpenseServiceClient{
		previewSplit:   connect.NewClient[PreviewSplitRequest, PreviewSplitResponse](httpClient, baseURL+ExpenseServicePreviewSplitProcedure, opts...),
		createExpense:  connect.NewClient[CreateExpenseRequest, CreateExpenseResponse](httpClient, baseURL+ExpenseServiceCreateExpenseProcedure, opts...),
		getExpense:     connect.NewClient[GetExpenseRequest, GetExpenseResponse](httpClient, baseURL+ExpenseServiceGetExpenseProcedure, opts...),
		listExpenses:   connect.NewClient[ListExpensesRequest, ListExpensesResponse](httpClient, baseURL+ExpenseServiceListExpensesProcedure, opts...),
		updateExpense:  connect.NewClient[UpdateExpenseRequest, UpdateExpenseResponse](httpClient, baseURL+ExpenseServiceUpdateExpenseProcedure, opts...),
		deleteExpense:  connect.NewClient[DeleteExpenseRequest, DeleteExpenseResponse](httpClient, baseURL+ExpenseServiceDeleteExpenseProcedure, opts...),
		settleSplit:    connect.NewClient[SettleSplitRequest, SettleSplitResponse](httpClient, baseURL+ExpenseServiceSettleSplitProcedure, opts...),
		settleUp:       connect.NewClient[SettleUpRequest, SettleUpResponse](httpClient, baseURL+ExpenseServiceSettleUpProcedure, opts...),
		importExpenses: connect.NewClient[ImportExpensesRequest, ImportExpensesResponse](httpClient, baseURL+ExpenseServiceImportExpensesProcedure, opts...),
		getBalances:    connect.NewClient[GetBalancesRequest, GetBalancesResponse](httpClient, baseURL+ExpenseServiceGetBalancesProcedure, opts...),
		listActivity:   connect.NewClient[ListActivityRequest, ListActivityResponse](httpClient, baseURL+ExpenseServiceListActivityProcedure, opts...),
	}
}

func (c *ExpenseServiceClient) PreviewSplit(ctx context.Context, req *connect.Request[PreviewSplitRequest]) (*connect.Response[PreviewSplitResponse], error) {
	return c.previewSplit.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) CreateExpense(ctx context.Context, req *connect.Request[CreateExpenseRequest]) (*connect.Response[CreateExpenseResponse], error) {
	return c.createExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) GetExpense(ctx context.Context, req *connect.Request[GetExpenseRequest]) (*connect.Response[GetExpenseResponse], error) {
	return c.getExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) UpdateExpense(ctx context.Context, req *connect.Request[UpdateExpenseRequest]) (*connect.Response[UpdateExpenseResponse], error) {
	return c.updateExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) SettleSplit(ctx context.Context, req *connect.Request[SettleSplitRequest]) (*connect.Response[SettleSplitResponse], error) {
	return c.settleSplit.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) SettleUp(ctx context.Context, req *connect.Request[SettleUpRequest]) (*connect.Response[SettleUpResponse], error) {
	return c.settleUp.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ImportExpenses(ctx context.Context, req *connect.Request[ImportExpensesRequest]) (*connect.Response[ImportExpensesResponse], error) {
	return c.importExpenses.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) GetBalances(ctx context.Context, req *connect.Request[GetBalancesRequest]) (*connect.Response[GetBalancesResponse], error) {
	return c.getBalances.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ListActivity(ctx context.Context, req *connect.Request[ListActivityRequest]) (*connect.Response[ListActivityResponse], error) {
	return c.listActivity.CallUnary(ctx, req)
}
