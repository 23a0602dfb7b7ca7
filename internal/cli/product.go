package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/lanatus/internal/catalog"
	"github.com/roach88/lanatus/internal/ledger"
)

// NewProductCommand creates the product command group.
func NewProductCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Register and list products",
	}
	cmd.AddCommand(newProductRegisterCommand(rootOpts))
	cmd.AddCommand(newProductImportCommand(rootOpts))
	cmd.AddCommand(newProductListCommand(rootOpts))
	cmd.AddCommand(newProductShowCommand(rootOpts))
	return cmd
}

func newProductRegisterCommand(opts *RootOptions) *cobra.Command {
	var (
		id       string
		reg      ledger.ProductRegistration
		inactive bool
	)

	cmd := &cobra.Command{
		Use:   "register --module <module> --name <name>",
		Short: "Register a product",
		Long: `Register a product. Registering an id that already exists leaves the
stored product unchanged. Without --id a new id is generated.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			if id == "" {
				generated, err := uuid.NewV7()
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to generate product id", err)
				}
				reg.ID = generated
			} else {
				parsed, err := parseID(f, "product", id)
				if err != nil {
					return err
				}
				reg.ID = parsed
			}
			reg.Active = !inactive

			client, closeStore, err := opts.openClient()
			if err != nil {
				return err
			}
			defer closeStore()

			p, err := client.Products.Register(cmd.Context(), reg)
			if err != nil {
				return f.Fail("failed to register product", err)
			}
			return f.Success(newProductView(p))
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "product id (generated if empty)")
	cmd.Flags().StringVar(&reg.Module, "module", "", "module owning the product")
	cmd.Flags().StringVar(&reg.Name, "name", "", "product name, unique within the module")
	cmd.Flags().StringVar(&reg.DisplayName, "display-name", "", "name shown to players")
	cmd.Flags().StringVar(&reg.Description, "description", "", "description shown to players")
	cmd.Flags().StringVar(&reg.Icon, "icon", "", "icon identifier")
	cmd.Flags().Int64Var(&reg.MelonsCost, "cost", 0, "price in melons")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "register the product as not for sale")
	cmd.Flags().BoolVar(&reg.Permanent, "permanent", false, "purchases of this product never expire")
	_ = cmd.MarkFlagRequired("module")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newProductImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <catalog>...",
		Short: "Register every product of one or more catalog files",
		Long: `Register every product listed in catalog files (.yaml, .yml or .cue).
Products that already exist are left unchanged.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			regs, err := catalog.LoadAll(args...)
			if err != nil {
				if outErr := f.Error("INVALID_CATALOG", err.Error(), nil); outErr != nil {
					return outErr
				}
				exitErr := WrapExitError(ExitCommandError, "failed to load catalog", err)
				exitErr.Reported = true
				return exitErr
			}
			f.VerboseLog("loaded %d product(s) from %d catalog(s)", len(regs), len(args))

			client, closeStore, err := opts.openClient()
			if err != nil {
				return err
			}
			defer closeStore()

			products := make([]*ledger.Product, 0, len(regs))
			for _, reg := range regs {
				p, err := client.Products.Register(cmd.Context(), reg)
				if err != nil {
					return f.Fail(fmt.Sprintf("failed to register %s/%s", reg.Module, reg.Name), err)
				}
				products = append(products, p)
			}
			return f.Success(newProductList(products))
		},
	}
}

func newProductListCommand(opts *RootOptions) *cobra.Command {
	var (
		module string
		active bool
	)

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List products",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			client, closeStore, err := opts.openClient()
			if err != nil {
				return err
			}
			defer closeStore()

			ctx := cmd.Context()
			var products []*ledger.Product
			switch {
			case module != "":
				products, err = client.Products.FindByModule(ctx, module)
			case active:
				products, err = client.Products.FindActive(ctx)
			default:
				products, err = client.Products.FindAll(ctx)
			}
			if err != nil {
				return f.Fail("failed to list products", err)
			}
			if module != "" && active {
				products = onlyActive(products)
			}
			return f.Success(newProductList(products))
		},
	}

	cmd.Flags().StringVar(&module, "module", "", "only list products of this module")
	cmd.Flags().BoolVar(&active, "active", false, "only list products that are for sale")
	return cmd
}

func onlyActive(products []*ledger.Product) []*ledger.Product {
	out := make([]*ledger.Product, 0, len(products))
	for _, p := range products {
		if p.Active() {
			out = append(out, p)
		}
	}
	return out
}

func newProductShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <product-uuid>",
		Short:         "Show a product",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			id, err := parseID(f, "product", args[0])
			if err != nil {
				return err
			}
			client, closeStore, err := opts.openClient()
			if err != nil {
				return err
			}
			defer closeStore()

			p, err := client.Products.FindByID(cmd.Context(), id)
			if err != nil {
				return f.Fail("failed to load product", err)
			}
			return f.Success(newProductView(p))
		},
	}
}
