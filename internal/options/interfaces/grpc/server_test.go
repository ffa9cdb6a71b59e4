package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	custody "github.com/wyfcoding/optionescrow/internal/custody/domain"
	"github.com/wyfcoding/optionescrow/internal/options/application"
	"github.com/wyfcoding/optionescrow/internal/options/domain"
	"github.com/wyfcoding/optionescrow/internal/options/infrastructure/lock"
	"github.com/wyfcoding/optionescrow/internal/options/infrastructure/persistence/memory"
	pricingapp "github.com/wyfcoding/optionescrow/internal/pricing/application"
	pricing "github.com/wyfcoding/optionescrow/internal/pricing/domain"
	"github.com/wyfcoding/optionescrow/pkg/logger"
	"github.com/wyfcoding/optionescrow/pkg/middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func startServer(t *testing.T) (*OptionServiceClient, *grpc.ClientConn, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	pricer := pricingapp.NewPricer(pricing.DefaultFormula, nil, 0, logger.Discard())
	app := application.NewOptionService(store, store, lock.NewLocalLocker(), fixedClock{now: time.Unix(0, 0)}, pricer, nil, logger.Discard())

	lis := bufconn.Listen(1 << 20)
	srv, _ := NewGRPCServer(app, grpc.ChainUnaryInterceptor(middleware.GRPCRecovery(), middleware.GRPCLogging(nil)))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewOptionServiceClient(conn), conn, store
}

func asParty(party string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), PartyMetadataKey, party)
}

func TestServer_Lifecycle(t *testing.T) {
	client, _, store := startServer(t)
	require.NoError(t, store.WithLedger(context.Background(), func(ctx context.Context, l custody.Ledger) error {
		if err := l.Credit(ctx, custody.AccountRef{Owner: "alice", Asset: "BTC"}, 10, "seed"); err != nil {
			return err
		}
		return l.Credit(ctx, custody.AccountRef{Owner: "bob", Asset: "USDC"}, 100_000000, "seed")
	}))

	created, err := client.Create(asParty("alice"), &CreateOptionRequest{
		UnderlyingAssetID: "BTC",
		StrikeAssetID:     "USDC",
		StrikePrice:       100_000000,
		Expiration:        int64(pricing.SecondsPerYear),
		Spot:              100_000000,
		RiskFreeRate:      "0.05",
		Volatility:        "0.2",
		Amount:            10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(10_709_144), created.Option.OptionPrice)

	got, err := client.Get(context.Background(), &GetOptionRequest{Address: created.Option.Address})
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", got.Option.Status)

	exercised, err := client.Exercise(asParty("bob"), &ExerciseOptionRequest{Address: created.Option.Address})
	require.NoError(t, err)
	assert.True(t, exercised.Option.IsExercised)

	_, err = client.Exercise(asParty("bob"), &ExerciseOptionRequest{Address: created.Option.Address})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Equal(t, domain.CodeOptionAlreadyExercised, ErrorCodeOf(err))
}

func TestServer_Errors(t *testing.T) {
	client, _, _ := startServer(t)

	_, err := client.Exercise(context.Background(), &ExerciseOptionRequest{Address: "x"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.Get(context.Background(), &GetOptionRequest{Address: "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))
	assert.Equal(t, domain.CodeOptionNotFound, ErrorCodeOf(err))

	_, err = client.Quote(context.Background(), &QuoteRequest{
		Spot: 90, Strike: 100, TimeToExpirySeconds: pricing.SecondsPerYear, RiskFreeRate: "0.05", Volatility: "0.2",
	})
	assert.Equal(t, codes.OutOfRange, status.Code(err))
	assert.Equal(t, domain.CodeArithmeticFault, ErrorCodeOf(err))

	q, err := client.Quote(context.Background(), &QuoteRequest{
		Spot: 100_000000, Strike: 100_000000, TimeToExpirySeconds: pricing.SecondsPerYear, RiskFreeRate: "0.05", Volatility: "0.2",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(10_709_144), q.Quote.Premium)
}

func TestServer_Health(t *testing.T) {
	_, conn, _ := startServer(t)
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
