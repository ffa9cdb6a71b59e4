package main

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	grpcapi "github.com/wyfcoding/optionescrow/internal/options/interfaces/grpc"
	"github.com/wyfcoding/optionescrow/pkg/grpcclient"
	"google.golang.org/grpc/metadata"
)

var clientFlags struct {
	addr  string
	party string
}

var getCmd = &cobra.Command{
	Use:   "get <address>",
	Short: "Fetch an option contract from a running server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, closeConn, err := dialOptionService()
		if err != nil {
			return err
		}
		defer closeConn()

		resp, err := client.Get(cmd.Context(), &grpcapi.GetOptionRequest{Address: args[0]})
		if err != nil {
			return fmt.Errorf("%s: %w", grpcapi.ErrorCodeOf(err), err)
		}
		return printJSON(cmd, resp.Option)
	},
}

var exerciseCmd = &cobra.Command{
	Use:   "exercise <address>",
	Short: "Exercise an option contract as --party",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, closeConn, err := dialOptionService()
		if err != nil {
			return err
		}
		defer closeConn()

		ctx := metadata.AppendToOutgoingContext(cmd.Context(), grpcapi.PartyMetadataKey, clientFlags.party)
		resp, err := client.Exercise(ctx, &grpcapi.ExerciseOptionRequest{Address: args[0]})
		if err != nil {
			return fmt.Errorf("%s: %w", grpcapi.ErrorCodeOf(err), err)
		}
		return printJSON(cmd, resp.Option)
	},
}

func dialOptionService() (*grpcapi.OptionServiceClient, func(), error) {
	conn, err := grpcclient.NewClient(grpcclient.ClientConfig{
		Target:         clientFlags.addr,
		ConnTimeout:    5,
		RequestTimeout: 10,
		MaxRetries:     2,
		RetryDelay:     200,
		ContentSubtype: grpcapi.CodecName,
	})
	if err != nil {
		return nil, nil, err
	}
	return grpcapi.NewOptionServiceClient(conn), func() { _ = conn.Close() }, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func init() {
	for _, c := range []*cobra.Command{getCmd, exerciseCmd} {
		c.Flags().StringVar(&clientFlags.addr, "addr", "localhost:50051", "gRPC server address")
	}
	exerciseCmd.Flags().StringVar(&clientFlags.party, "party", "", "exercising party id")
	_ = exerciseCmd.MarkFlagRequired("party")
}
