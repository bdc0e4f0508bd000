// Package agentapi carries the agent RPC surface over gRPC: every node
// serves it, the scheduler and workers call each other through it, and the
// CLI uses it to reach the local daemon.
package agentapi

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ygrid/ygrid/cloud/cluster"
	"github.com/ygrid/ygrid/job"
)

const ServiceName = "ygrid.Agent"

// Handler is what a node does for each RPC.
type Handler interface {
	SubmitJob(ctx context.Context, grid string, j *job.Job) (job.ID, error)
	OpenJob(ctx context.Context, id job.ID) (bool, error)
	ExecuteJob(ctx context.Context, id job.ID) error
	FinishedJob(ctx context.Context, id job.ID, worker cluster.Node) error
	CloseJob(ctx context.Context, id job.ID) error
	CurrentStatus(ctx context.Context) (map[job.ID]job.Info, error)
	Nodes(ctx context.Context, grid string) ([]cluster.Node, error)
	JoinGrids(ctx context.Context, grids ...string) error
	LeaveGrids(ctx context.Context, grids ...string) error
}

// RegisterAgentServer serves h on s.
func RegisterAgentServer(s *grpc.Server, h Handler) {
	s.RegisterService(&serviceDesc, h)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		unary("SubmitJob", func(ctx context.Context, h Handler, in *SubmitJobRequest) (*SubmitJobResponse, error) {
			id, err := h.SubmitJob(ctx, in.Grid, in.Job)
			return &SubmitJobResponse{ID: id}, err
		}),
		unary("OpenJob", func(ctx context.Context, h Handler, in *JobRequest) (*OpenJobResponse, error) {
			accepted, err := h.OpenJob(ctx, in.ID)
			return &OpenJobResponse{Accepted: accepted}, err
		}),
		unary("ExecuteJob", func(ctx context.Context, h Handler, in *JobRequest) (*Empty, error) {
			return &Empty{}, h.ExecuteJob(ctx, in.ID)
		}),
		unary("FinishedJob", func(ctx context.Context, h Handler, in *FinishedJobRequest) (*Empty, error) {
			return &Empty{}, h.FinishedJob(ctx, in.ID, in.Worker)
		}),
		unary("CloseJob", func(ctx context.Context, h Handler, in *JobRequest) (*Empty, error) {
			return &Empty{}, h.CloseJob(ctx, in.ID)
		}),
		unary("CurrentStatus", func(ctx context.Context, h Handler, in *Empty) (*StatusResponse, error) {
			jobs, err := h.CurrentStatus(ctx)
			return &StatusResponse{Jobs: jobs}, err
		}),
		unary("Nodes", func(ctx context.Context, h Handler, in *NodesRequest) (*NodesResponse, error) {
			nodes, err := h.Nodes(ctx, in.Grid)
			return &NodesResponse{Nodes: nodes}, err
		}),
		unary("JoinGrids", func(ctx context.Context, h Handler, in *GridsRequest) (*Empty, error) {
			return &Empty{}, h.JoinGrids(ctx, in.Grids...)
		}),
		unary("LeaveGrids", func(ctx context.Context, h Handler, in *GridsRequest) (*Empty, error) {
			return &Empty{}, h.LeaveGrids(ctx, in.Grids...)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agentapi/service.go",
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unary builds the method descriptor protoc would generate for name.
func unary[Req, Resp any](name string, call func(context.Context, Handler, *Req) (*Resp, error)) grpc.MethodDesc {
	invoke := func(ctx context.Context, h Handler, in *Req) (interface{}, error) {
		resp, err := call(ctx, h, in)
		if err != nil {
			return nil, toStatus(err)
		}
		return resp, nil
	}
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return invoke(ctx, srv.(Handler), in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return invoke(ctx, srv.(Handler), req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// toStatus maps handler errors onto gRPC codes.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	cause := errors.Cause(err)
	if job.IsValidationError(cause) || cause == job.ErrMalformedID {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if cause == job.ErrNotOpen {
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// IsUnreachable reports whether err means the node couldn't be reached at all,
// as opposed to the node answering with an error.
func IsUnreachable(err error) bool {
	switch status.Code(errors.Cause(err)) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return true
	}
	return false
}

// IsInvalid reports whether the node rejected the request's arguments.
func IsInvalid(err error) bool {
	return status.Code(errors.Cause(err)) == codes.InvalidArgument
}

// IsNotOpen reports whether the node refused to run a job it never opened.
func IsNotOpen(err error) bool {
	cause := errors.Cause(err)
	return cause == job.ErrNotOpen || status.Code(cause) == codes.FailedPrecondition
}
