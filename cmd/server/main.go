package main

import (
	"fmt"
	"os"

	"chatforms-backend/internal/config"
	"chatforms-backend/internal/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// @title           Chat Forms API
// @version         1.0
// @description     Form builder with AI generation and conversational responses
// @host            localhost:8080
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter "Bearer {token}"

var rootCmd = &cobra.Command{
	Use:           "formsd",
	Short:         "Chat forms backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		_, err = openDatabase(cfg, log)
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "formsd:", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger it asks for.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	zcfg := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	zcfg.Level = level
	log, err := zcfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, log, nil
}

func openDatabase(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg.DSN(), log)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db, log); err != nil {
		return nil, err
	}
	return db, nil
}
