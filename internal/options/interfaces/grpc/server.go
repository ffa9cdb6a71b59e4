package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/wyfcoding/optionescrow/internal/options/application"
	"github.com/wyfcoding/optionescrow/internal/options/domain"
	pricing "github.com/wyfcoding/optionescrow/internal/pricing/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// PartyMetadataKey 调用方身份元数据
const PartyMetadataKey = "x-party-id"

// Server OptionServiceServer 的实现
type Server struct {
	app *application.OptionService
}

func NewServer(app *application.OptionService) *Server {
	return &Server{app: app}
}

var _ OptionServiceServer = (*Server)(nil)

func (s *Server) Create(ctx context.Context, req *CreateOptionRequest) (*OptionResponse, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	rate, err := pricing.ParseRate(req.RiskFreeRate)
	if err != nil {
		return nil, toStatus(err)
	}
	vol, err := pricing.ParseRate(req.Volatility)
	if err != nil {
		return nil, toStatus(err)
	}
	view, err := s.app.Create(ctx, application.CreateCommand{
		Creator:           caller,
		UnderlyingAssetID: req.UnderlyingAssetID,
		StrikeAssetID:     req.StrikeAssetID,
		StrikePrice:       req.StrikePrice,
		Expiration:        time.Unix(req.Expiration, 0),
		Spot:              req.Spot,
		RiskFreeRate:      rate,
		Volatility:        vol,
		Amount:            req.Amount,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &OptionResponse{Option: view}, nil
}

func (s *Server) Exercise(ctx context.Context, req *ExerciseOptionRequest) (*OptionResponse, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.app.Exercise(ctx, application.ExerciseCommand{Exerciser: caller, Address: req.Address})
	if err != nil {
		return nil, toStatus(err)
	}
	return &OptionResponse{Option: view}, nil
}

func (s *Server) Get(ctx context.Context, req *GetOptionRequest) (*OptionResponse, error) {
	view, err := s.app.Get(ctx, req.Address)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OptionResponse{Option: view}, nil
}

func (s *Server) Quote(ctx context.Context, req *QuoteRequest) (*QuoteResponse, error) {
	rate, err := pricing.ParseRate(req.RiskFreeRate)
	if err != nil {
		return nil, toStatus(err)
	}
	vol, err := pricing.ParseRate(req.Volatility)
	if err != nil {
		return nil, toStatus(err)
	}
	q, err := s.app.Quote(ctx, application.QuoteCommand{
		Spot:                req.Spot,
		Strike:              req.Strike,
		TimeToExpirySeconds: req.TimeToExpirySeconds,
		RiskFreeRate:        rate,
		Volatility:          vol,
		Formula:             req.Formula,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &QuoteResponse{Quote: q}, nil
}

func callerID(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if v := md.Get(PartyMetadataKey); len(v) > 0 && v[0] != "" {
			return v[0], nil
		}
	}
	return "", status.Error(codes.Unauthenticated, "missing "+PartyMetadataKey+" metadata")
}

var grpcCodes = map[domain.ErrorCode]codes.Code{
	domain.CodeInvalidExpiration:      codes.InvalidArgument,
	domain.CodeInvalidAmount:          codes.InvalidArgument,
	domain.CodeInvalidRequest:         codes.InvalidArgument,
	domain.CodeUnauthorized:           codes.PermissionDenied,
	domain.CodeOptionNotFound:         codes.NotFound,
	domain.CodeOptionAlreadyExercised: codes.FailedPrecondition,
	domain.CodeOptionExpired:          codes.FailedPrecondition,
	domain.CodeInsufficientFunds:      codes.FailedPrecondition,
	domain.CodeArithmeticFault:        codes.OutOfRange,
	domain.CodeBusy:                   codes.Aborted,
}

// toStatus 状态消息以错误码开头，客户端用 ErrorCodeOf 取回
func toStatus(err error) error {
	code := domain.Code(err)
	c, ok := grpcCodes[code]
	if !ok {
		return status.Error(codes.Internal, string(domain.CodeInternal)+": internal error")
	}
	return status.Error(c, string(code)+": "+err.Error())
}

// ErrorCodeOf 从 gRPC 错误中取出业务错误码
func ErrorCodeOf(err error) domain.ErrorCode {
	if err == nil {
		return domain.CodeOK
	}
	st, ok := status.FromError(err)
	if !ok {
		return domain.CodeInternal
	}
	if code, _, found := strings.Cut(st.Message(), ":"); found {
		return domain.ErrorCode(code)
	}
	return domain.CodeInternal
}

// NewGRPCServer 创建 gRPC 服务器，注册期权服务与标准健康检查
func NewGRPCServer(app *application.OptionService, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(opts...)
	RegisterOptionServiceServer(s, NewServer(app))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}
