package cli

import (
	"fmt"
	"time"

	"github.com/levelup/internal/config"
	"github.com/levelup/internal/service"
	"github.com/spf13/cobra"
)

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <username>",
		Short: "Create a user at level 1",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, err := rootOpts.openDB()
			if err != nil {
				return err
			}
			defer closeDB(gdb)

			user, err := service.NewUserService(gdb).Create(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %q (id=%d)\n", user.Username, user.ID)
			return nil
		},
	})

	return cmd
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Reset streaks of users inactive since before yesterday",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, err := rootOpts.openDB()
			if err != nil {
				return err
			}
			defer closeDB(gdb)

			loc := config.AppConfig{Timezone: rootOpts.Timezone}.Location()
			progress := service.NewProgressService(gdb, rootOpts.logger(cmd)).WithLocation(loc)

			reset, err := progress.SweepInactive()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %d streak(s) as of %s\n", reset, progress.Today().Format(time.DateOnly))
			return nil
		},
	}
}

// NewRecomputeCommand creates the recompute command.
func NewRecomputeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Floor negative experience at zero and re-derive levels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, err := rootOpts.openDB()
			if err != nil {
				return err
			}
			defer closeDB(gdb)

			fixed, err := service.NewUserService(gdb).RecomputeLevels()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fixed %d user(s)\n", fixed)
			return nil
		},
	}
}

// NewRewardsCommand creates the rewards command group.
func NewRewardsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewards",
		Short: "Manage the reward catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Import rewards from a YAML catalog, upserting by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, err := rootOpts.openDB()
			if err != nil {
				return err
			}
			defer closeDB(gdb)

			count, err := service.NewRewardService(gdb).LoadCatalog(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d reward(s)\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the reward catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, err := rootOpts.openDB()
			if err != nil {
				return err
			}
			defer closeDB(gdb)

			rewards, err := service.NewRewardService(gdb).List()
			if err != nil {
				return err
			}
			for _, reward := range rewards {
				fmt.Fprintf(cmd.OutOrStdout(), "%3d  %s\n", reward.UnlockLevel, reward.Name)
			}
			return nil
		},
	})

	return cmd
}
