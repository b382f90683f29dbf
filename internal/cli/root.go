// Package cli 实现 levelctl 管理命令。
package cli

import (
	"fmt"

	"github.com/levelup/internal/config"
	"github.com/levelup/internal/db"
	"github.com/levelup/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DBPath   string
	Timezone string
	LogLevel string
}

// NewRootCommand creates the root command for levelctl.
func NewRootCommand() *cobra.Command {
	cfg := config.Load()
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "levelctl",
		Short:         "levelctl - LevelUp administration",
		Long:          "Administrative commands for the LevelUp progression store: users, streak sweeps, level repair and reward catalogs.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", cfg.DatabasePath, "path to the SQLite database")
	cmd.PersistentFlags().StringVar(&opts.Timezone, "timezone", cfg.Timezone, "timezone used to derive today")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewRecomputeCommand(opts))
	cmd.AddCommand(NewRewardsCommand(opts))

	return cmd
}

func (o *RootOptions) openDB() (*gorm.DB, error) {
	gdb, err := db.Open(o.DBPath, logger.Silent)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", o.DBPath, err)
	}
	return gdb, nil
}

func (o *RootOptions) logger(cmd *cobra.Command) *logrus.Logger {
	return logging.NewWithOutput(cmd.ErrOrStderr(), o.LogLevel, "text")
}

func closeDB(gdb *gorm.DB) {
	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.Close()
	}
}
