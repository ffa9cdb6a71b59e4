// Package grpc 期权服务的 gRPC 接口，消息为 JSON 编码的 Go 结构体。
package grpc

import (
	"context"

	"github.com/wyfcoding/optionescrow/internal/options/application"
	pricing "github.com/wyfcoding/optionescrow/internal/pricing/domain"
	"google.golang.org/grpc"
)

// ServiceName 完整服务名
const ServiceName = "optionescrow.v1.OptionService"

// CreateOptionRequest 创建者取自 x-party-id 元数据
type CreateOptionRequest struct {
	UnderlyingAssetID string `json:"underlying_asset_id"`
	StrikeAssetID     string `json:"strike_asset_id"`
	StrikePrice       uint64 `json:"strike_price"`
	Expiration        int64  `json:"expiration"`
	Spot              uint64 `json:"spot"`
	RiskFreeRate      string `json:"risk_free_rate"`
	Volatility        string `json:"volatility"`
	Amount            uint64 `json:"amount"`
}

// ExerciseOptionRequest 行权方取自 x-party-id 元数据
type ExerciseOptionRequest struct {
	Address string `json:"address"`
}

type GetOptionRequest struct {
	Address string `json:"address"`
}

type QuoteRequest struct {
	Spot                uint64 `json:"spot"`
	Strike              uint64 `json:"strike"`
	TimeToExpirySeconds uint64 `json:"time_to_expiry_seconds"`
	RiskFreeRate        string `json:"risk_free_rate"`
	Volatility          string `json:"volatility"`
	Formula             string `json:"formula"`
}

type OptionResponse struct {
	Option *application.OptionView `json:"option"`
}

type QuoteResponse struct {
	Quote *pricing.Quote `json:"quote"`
}

// OptionServiceServer 服务端接口
type OptionServiceServer interface {
	Create(context.Context, *CreateOptionRequest) (*OptionResponse, error)
	Exercise(context.Context, *ExerciseOptionRequest) (*OptionResponse, error)
	Get(context.Context, *GetOptionRequest) (*OptionResponse, error)
	Quote(context.Context, *QuoteRequest) (*QuoteResponse, error)
}

// ServiceDesc 服务描述
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OptionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Create", Handler: unaryHandler("Create", OptionServiceServer.Create)},
		{MethodName: "Exercise", Handler: unaryHandler("Exercise", OptionServiceServer.Exercise)},
		{MethodName: "Get", Handler: unaryHandler("Get", OptionServiceServer.Get)},
		{MethodName: "Quote", Handler: unaryHandler("Quote", OptionServiceServer.Quote)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "optionescrow/v1/option_service",
}

// RegisterOptionServiceServer 注册服务
func RegisterOptionServiceServer(s grpc.ServiceRegistrar, srv OptionServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string { return "/" + ServiceName + "/" + method }

func unaryHandler[Req, Resp any](method string, call func(OptionServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OptionServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OptionServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// OptionServiceClient 客户端
type OptionServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewOptionServiceClient(cc grpc.ClientConnInterface) *OptionServiceClient {
	return &OptionServiceClient{cc: cc}
}

func (c *OptionServiceClient) Create(ctx context.Context, in *CreateOptionRequest, opts ...grpc.CallOption) (*OptionResponse, error) {
	out := new(OptionResponse)
	if err := c.invoke(ctx, "Create", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OptionServiceClient) Exercise(ctx context.Context, in *ExerciseOptionRequest, opts ...grpc.CallOption) (*OptionResponse, error) {
	out := new(OptionResponse)
	if err := c.invoke(ctx, "Exercise", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OptionServiceClient) Get(ctx context.Context, in *GetOptionRequest, opts ...grpc.CallOption) (*OptionResponse, error) {
	out := new(OptionResponse)
	if err := c.invoke(ctx, "Get", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OptionServiceClient) Quote(ctx context.Context, in *QuoteRequest, opts ...grpc.CallOption) (*QuoteResponse, error) {
	out := new(QuoteResponse)
	if err := c.invoke(ctx, "Quote", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OptionServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}
