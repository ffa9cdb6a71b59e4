package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/wyfcoding/optionescrow/pkg/config"
	"github.com/wyfcoding/optionescrow/pkg/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "optionsd",
	Short:        "Escrowed bilateral call options with fixed-point Black-Scholes pricing",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env 只补充未设置的环境变量
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	},
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/optionsd.toml", "path to config file")
	rootCmd.AddCommand(serveCmd, migrateCmd, quoteCmd, getCmd, exerciseCmd)
}

func loadRuntime() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.Init(cfg.Logger, cfg.ServiceName)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
