package tunedeckv1

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// ModerationServiceName is the fully-qualified name of the ModerationService service.
const ModerationServiceName = "tunedeck.v1.ModerationService"

const (
	ModerationServiceListPendingProcedure = "/tunedeck.v1.ModerationService/ListPending"
	ModerationServiceApproveProcedure     = "/tunedeck.v1.ModerationService/Approve"
	ModerationServiceRejectProcedure      = "/tunedeck.v1.ModerationService/Reject"
)

// ModerationServiceHandler is implemented by the server-side moderation service.
type ModerationServiceHandler interface {
	ListPending(context.Context, *connect.Request[ListPendingRequest]) (*connect.Response[ListPendingResponse], error)
	Approve(context.Context, *connect.Request[ReviewRequest]) (*connect.Response[ReviewResponse], error)
	Reject(context.Context, *connect.Request[ReviewRequest]) (*connect.Response[ReviewResponse], error)
}

// NewModerationServiceHandler builds an HTTP handler from the service implementation.
func NewModerationServiceHandler(svc ModerationServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithCodec()}, opts...)
	handlers := map[string]http.Handler{
		ModerationServiceListPendingProcedure: connect.NewUnaryHandler(ModerationServiceListPendingProcedure, svc.ListPending, opts...),
		ModerationServiceApproveProcedure:     connect.NewUnaryHandler(ModerationServiceApproveProcedure, svc.Approve, opts...),
		ModerationServiceRejectProcedure:      connect.NewUnaryHandler(ModerationServiceRejectProcedure, svc.Reject, opts...),
	}
	return "/" + ModerationServiceName + "/", routeHandler(handlers)
}

// ModerationServiceClient is a client for the tunedeck.v1.ModerationService service.
type ModerationServiceClient struct {
	listPending *connect.Client[ListPendingRequest, ListPendingResponse]
	approve     *connect.Client[ReviewRequest, ReviewResponse]
	reject      *connect.Client[ReviewRequest, ReviewResponse]
}

// NewModerationServiceClient constructs a client for the tunedeck.v1.ModerationService service.
func NewModerationServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ModerationServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithCodec()}, opts...)
	return &ModerationServiceClient{
		listPending: connect.NewClient[ListPendingRequest, ListPendingResponse](httpClient, baseURL+ModerationServiceListPendingProcedure, opts...),
		approve:     connect.NewClient[ReviewRequest, ReviewResponse](httpClient, baseURL+ModerationServiceApproveProcedure, opts...),
		reject:      connect.NewClient[ReviewRequest, ReviewResponse](httpClient, baseURL+ModerationServiceRejectProcedure, opts...),
	}
}

func (c *ModerationServiceClient) ListPending(ctx context.Context, req *connect.Request[ListPendingRequest]) (*connect.Response[ListPendingResponse], error) {
	return c.listPending.CallUnary(ctx, req)
}

func (c *ModerationServiceClient) Approve(ctx context.Context, req *connect.Request[ReviewRequest]) (*connect.Response[ReviewResponse], error) {
	return c.approve.CallUnary(ctx, req)
}

func (c *ModerationServiceClient) Reject(ctx context.Context, req *connect.Request[ReviewRequest]) (*connect.Response[ReviewResponse], error) {
	return c.reject.CallUnary(ctx, req)
}
