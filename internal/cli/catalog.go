package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/cartsync/internal/catalog"
)

type CatalogOptions struct {
	*RootOptions
	Database string
}

// ProductList renders as a table in text mode.
type ProductList []catalog.Product

func (l ProductList) String() string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLASS\tPRODUCT\tPRICE")
	for _, p := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ClassName, p.ProductName, p.UnitPrice.StringFixed(2))
	}
	_ = tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

// SeedReport is the result of catalog seed.
type SeedReport struct {
	Database string `json:"database"`
	Seeded   int    `json:"seeded"`
}

func (r SeedReport) String() string {
	return fmt.Sprintf("seeded %d products into %s", r.Seeded, r.Database)
}

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the product price catalog used by the simulator",
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "catalog database (default: simulate.catalog_path)")

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List catalog products",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(opts, cmd, func(ctx context.Context, st *catalog.Store, path string) error {
				products, err := st.List(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to list catalog", err)
				}
				if products == nil {
					products = []catalog.Product{}
				}
				return opts.formatter(cmd).Success(ProductList(products))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Insert or update the sample products",
		Long: `Write the built-in sample products into the catalog. Existing rows
with the same class name are updated, so seeding twice is harmless.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(opts, cmd, func(ctx context.Context, st *catalog.Store, path string) error {
				n, err := st.Seed(ctx, catalog.SampleProducts())
				if err != nil {
					return WrapExitError(ExitFailure, "failed to seed catalog", err)
				}
				return opts.formatter(cmd).Success(SeedReport{Database: path, Seeded: n})
			})
		},
	})

	return cmd
}

func withCatalog(opts *CatalogOptions, cmd *cobra.Command, fn func(context.Context, *catalog.Store, string) error) error {
	path := opts.Database
	if path == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Simulate.CatalogPath
	}

	st, err := catalog.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open catalog", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, st, path)
}
