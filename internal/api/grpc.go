package api

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/perception-eval/internal/monitoring"
	"github.com/banshee-data/perception-eval/internal/storage/sqlite"
)

// ResultsServiceName is the fully qualified gRPC service name. Requests and
// responses are google.protobuf.Struct messages with the same fields as the
// HTTP API's JSON bodies.
const ResultsServiceName = "perceptioneval.v1.Results"

// ResultsService is the server side of the results service.
type ResultsService interface {
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LabelScores(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var _ ResultsService = (*ResultsServer)(nil)

// ResultsServer implements ResultsService over a RunReader.
type ResultsServer struct {
	runs RunReader
}

func NewResultsServer(runs RunReader) *ResultsServer {
	return &ResultsServer{runs: runs}
}

// RegisterResultsService registers srv with a gRPC server.
func RegisterResultsService(r grpc.ServiceRegistrar, srv ResultsService) {
	r.RegisterService(&resultsServiceDesc, srv)
}

var resultsServiceDesc = grpc.ServiceDesc{
	ServiceName: ResultsServiceName,
	HandlerType: (*ResultsService)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("GetRun", ResultsService.GetRun),
		unaryMethod("ListRuns", ResultsService.ListRuns),
		unaryMethod("LabelScores", ResultsService.LabelScores),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "perceptioneval/v1/results.proto",
}

type structCall func(ResultsService, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call structCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			svc := srv.(ResultsService)
			if interceptor == nil {
				return call(svc, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ResultsServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(svc, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// GetRun takes {"run_id": ...} and returns the run with its mode scores.
func (s *ResultsServer) GetRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireString(req, "run_id")
	if err != nil {
		return nil, err
	}
	run, err := s.runs.GetRun(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	modes, err := s.runs.ModeScores(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return toStruct(RunDetail{Run: run, Modes: modes})
}

// ListRuns takes optional "scenario" and "limit" and returns {"runs": [...]}.
func (s *ResultsServer) ListRuns(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit := defaultListLimit
	if v, ok := req.GetFields()["limit"]; ok {
		n := v.GetNumberValue()
		if n < 1 || n != float64(int(n)) {
			return nil, status.Error(codes.InvalidArgument, "limit must be a positive integer")
		}
		limit = int(n)
	}
	runs, err := s.runs.ListRuns(ctx, req.GetFields()["scenario"].GetStringValue(), limit)
	if err != nil {
		return nil, storeError(err)
	}
	if runs == nil {
		runs = []*sqlite.Run{}
	}
	return toStruct(map[string]any{"runs": runs})
}

// LabelScores takes "run_id" and optional "mode" and "threshold" filters
// and returns {"labels": [...]} including PR curves.
func (s *ResultsServer) LabelScores(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireString(req, "run_id")
	if err != nil {
		return nil, err
	}
	if _, err := s.runs.GetRun(ctx, id); err != nil {
		return nil, storeError(err)
	}
	f := req.GetFields()
	scores, err := s.runs.LabelScores(ctx, id, f["mode"].GetStringValue(), f["threshold"].GetStringValue())
	if err != nil {
		return nil, storeError(err)
	}
	if scores == nil {
		scores = []sqlite.LabelScore{}
	}
	return toStruct(map[string]any{"labels": scores})
}

func requireString(req *structpb.Struct, field string) (string, error) {
	v := req.GetFields()[field].GetStringValue()
	if v == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", field)
	}
	return v, nil
}

func storeError(err error) error {
	if errors.Is(err, sqlite.ErrNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// toStruct converts v through its JSON form, so field names match the
// HTTP API.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// LoggingInterceptor logs every unary call with its status code.
func LoggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	monitoring.Logger.WithField("method", info.FullMethod).
		WithField("code", status.Code(err).String()).
		WithField("duration_ms", float64(time.Since(start).Nanoseconds())/1e6).
		Info("[gRPC] call")
	return resp, err
}

// ResultsClient calls a remote results service.
type ResultsClient struct {
	cc grpc.ClientConnInterface
}

func NewResultsClient(cc grpc.ClientConnInterface) *ResultsClient {
	return &ResultsClient{cc: cc}
}

func (c *ResultsClient) invoke(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ResultsServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ResultsClient) GetRun(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetRun", req, opts...)
}

func (c *ResultsClient) ListRuns(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListRuns", req, opts...)
}

func (c *ResultsClient) LabelScores(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "LabelScores", req, opts...)
}
