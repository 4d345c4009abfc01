package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/posscan/internal/catalog"
)

// ProductsOptions holds flags for the products command.
type ProductsOptions struct {
	*RootOptions
	Refresh     bool
	Category    string
	Subcategory string
}

// NewProductsCommand creates the products command.
func NewProductsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProductsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "products [query]",
		Short: "Search the product catalog",
		Long: `Search the cached product catalog the way the product grid does:
name and SKU match case-insensitively, barcode exactly as typed.

With --refresh the catalog is fetched from the backend first and the
cache is updated.

Example:
  posscan products phone
  posscan products --refresh --category 64f0c2...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return runProducts(opts, query, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "fetch the catalog from the backend first")
	cmd.Flags().StringVar(&opts.Category, "category", "", "limit to a category and its subcategories")
	cmd.Flags().StringVar(&opts.Subcategory, "subcategory", "", "limit to one subcategory")

	return cmd
}

func runProducts(opts *ProductsOptions, query string, cmd *cobra.Command) error {
	logger := opts.setupLogging(cmd.ErrOrStderr())
	st, cfg, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := cmd.Context()
	var source catalog.Source
	if opts.Refresh {
		if cfg.APIURL == "" {
			return NewExitError(ExitCommandError, "--refresh needs api_url (or POSSCAN_API_URL)")
		}
		client, err := newClient(ctx, cfg, st, logger)
		if err != nil {
			return err
		}
		source = client
	}

	cat, cache, err := openCatalog(cfg, source, logger)
	if err != nil {
		return err
	}
	defer cache.Close()

	if opts.Refresh {
		if err := cat.Refresh(ctx); err != nil {
			return WrapExitError(ExitFailure, "failed to refresh catalog", err)
		}
	}

	snap := cat.Snapshot()
	ids := catalog.SelectedCategoryIDs(snap.Categories, opts.Category, opts.Subcategory)
	products := catalog.Filter(snap.Products, query, ids)

	return opts.formatter(cmd).Emit(products, func(w io.Writer) {
		if len(products) == 0 {
			fmt.Fprintln(w, "No products found.")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tSKU\tBARCODE\tPRICE\tSTOCK")
		for _, p := range products {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%d\n", p.ID, p.Name, p.SKU, p.Barcode, p.Price(), p.Stock)
		}
		tw.Flush()
	})
}
