package cli

import (
	"github.com/spf13/cobra"
)

// NewPurchaseCommand creates the purchase command group.
func NewPurchaseCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purchase",
		Short: "Buy products and list purchases",
	}
	cmd.AddCommand(newPurchaseBuyCommand(rootOpts))
	cmd.AddCommand(newPurchaseListCommand(rootOpts))
	cmd.AddCommand(newPurchaseShowCommand(rootOpts))
	return cmd
}

func newPurchaseBuyCommand(opts *RootOptions) *cobra.Command {
	var (
		cost    int64
		comment string
		data    string
	)

	cmd := &cobra.Command{
		Use:   "buy <player-uuid> <product-uuid>",
		Short: "Charge a player for a product and record the purchase",
		Long: `Charge a player for a product and record the purchase in one transaction.
The product's price is charged unless --cost overrides it.

Exit codes:
  0 - Purchase recorded
  1 - Rejected (not enough melons, unknown product)
  2 - Command error`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			player, err := parseID(f, "player", args[0])
			if err != nil {
				return err
			}
			product, err := parseID(f, "product", args[1])
			if err != nil {
				return err
			}
			client, closeStore, err := opts.openClient()
			if err != nil {
				return err
			}
			defer closeStore()

			b := client.StartPurchase(player).WithProductID(product)
			if cmd.Flags().Changed("cost") {
				b.WithMelonsCost(cost)
			}
			if cmd.Flags().Changed("comment") {
				b.WithComment(comment)
			}
			if cmd.Flags().Changed("data") {
				b.WithData(data)
			}
			f.VerboseLog("recording purchase %s", b.PurchaseID())

			p, err := b.Build(cmd.Context())
			if err != nil {
				return f.Fail("purchase failed", err)
			}
			return f.Success(newPurchaseView(p))
		},
	}

	cmd.Flags().Int64Var(&cost, "cost", 0, "charge this many melons instead of the product's price")
	cmd.Flags().StringVar(&comment, "comment", "", "free-form comment")
	cmd.Flags().StringVar(&data, "data", "", "module-specific payload")
	return cmd
}

func newPurchaseListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list <player-uuid>",
		Short:         "List a player's purchases, oldest first",
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

			purchases, err := client.Purchases.FindByPlayer(cmd.Context(), player)
			if err != nil {
				return f.Fail("failed to list purchases", err)
			}
			return f.Success(newPurchaseList(purchases))
		},
	}
}

func newPurchaseShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <purchase-uuid>",
		Short:         "Show a purchase",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			id, err := parseID(f, "purchase", args[0])
			if err != nil {
				return err
			}
			client, closeStore, err := opts.openClient()
			if err != nil {
				return err
			}
			defer closeStore()

			p, err := client.Purchases.FindByID(cmd.Context(), id)
			if err != nil {
				return f.Fail("failed to load purchase", err)
			}
			return f.Success(newPurchaseView(p))
		},
	}
}
