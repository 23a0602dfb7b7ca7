package cli

import (
	"github.com/spf13/cobra"
)

// NewAccountCommand creates the account command group.
func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Show and change melons accounts",
	}
	cmd.AddCommand(newAccountShowCommand(rootOpts))
	cmd.AddCommand(newAccountModifyCommand(rootOpts))
	cmd.AddCommand(newAccountSetRankCommand(rootOpts))
	return cmd
}

func newAccountShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <player-uuid>",
		Short:         "Show a player's balance and rank",
		Long:          "Show a player's balance and rank. Players without an account row are shown with the default account.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			player, err := parseID(f, "player", args[0])
			if err != nil {
				return err
			}
			client, closeStore, err := opts.openClient()
			if err != nil {
				return err
			}
			defer closeStore()

			m, err := client.Accounts.FindMutable(cmd.Context(), player)
			if err != nil {
				return f.Fail("failed to load account", err)
			}
			return f.Success(newAccountView(m.InitialState()))
		},
	}
}

func newAccountModifyCommand(opts *RootOptions) *cobra.Command {
	var delta int64

	cmd := &cobra.Command{
		Use:   "modify <player-uuid> --delta <n>",
		Short: "Add melons to (or take them from) a player",
		Long: `Add delta melons to a player's balance. The change is written as a delta,
so it merges with changes other servers make at the same time.

Exit codes:
  0 - Balance changed
  1 - Rejected (not enough melons, conflict)
  2 - Command error

Examples:
  lanatus account modify 6f1c... --delta 50
  lanatus account modify 6f1c... --delta=-20`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			player, err := parseID(f, "player", args[0])
			if err != nil {
				return err
			}
			client, closeStore, err := opts.openClient()
			if err != nil {
				return err
			}
			defer closeStore()

			ctx := cmd.Context()
			m, err := client.Accounts.FindMutableFresh(ctx, player)
			if err != nil {
				return f.Fail("failed to load account", err)
			}
			if err := m.ModifyMelons(ctx, delta); err != nil {
				return f.Fail("failed to modify melons", err)
			}
			if err := client.Accounts.Save(ctx, m); err != nil {
				return f.Fail("failed to save account", err)
			}
			f.VerboseLog("saved delta %d for %s", delta, player)

			snap, err := client.Accounts.Find(ctx, player)
			if err != nil {
				return f.Fail("failed to reload account", err)
			}
			return f.Success(newAccountView(snap))
		},
	}
	cmd.Flags().Int64Var(&delta, "delta", 0, "melons to add; negative to take")
	_ = cmd.MarkFlagRequired("delta")
	return cmd
}

func newAccountSetRankCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "set-rank <player-uuid> <rank>",
		Short:         "Record a player's last rank",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			player, err := parseID(f, "player", args[0])
			if err != nil {
				return err
			}
			client, closeStore, err := opts.openClient()
			if err != nil {
				return err
			}
			defer closeStore()

			ctx := cmd.Context()
			m, err := client.Accounts.FindMutableFresh(ctx, player)
			if err != nil {
				return f.Fail("failed to load account", err)
			}
			m.SetLastRank(args[1])
			if err := client.Accounts.Save(ctx, m); err != nil {
				return f.Fail("failed to save account", err)
			}

			snap, err := client.Accounts.Find(ctx, player)
			if err != nil {
				return f.Fail("failed to reload account", err)
			}
			return f.Success(newAccountView(snap))
		},
	}
}
