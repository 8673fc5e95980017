package cli

import (
	"thehub/pkg/api"
	"thehub/pkg/traffic"

	"github.com/spf13/cobra"
)

func (a *app) productsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "products",
		Short: "Browse the catalog",
	}
	c.AddCommand(a.productsListCmd(), a.productsGetCmd(), a.productsRelatedCmd())
	return c
}

func (a *app) productsListCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, svc api.Service, _ []string) error {
			params := traffic.Params{}
			if category != "" {
				params["category"] = category
			}
			ps, err := svc.Products(cmd.Context(), params)
			if err != nil {
				return err
			}
			printProducts(cmd.OutOrStdout(), ps)
			return nil
		}),
	}
	cmd.Flags().StringVar(&category, "category", "", "only this category")
	return cmd
}

func (a *app) productsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, svc api.Service, args []string) error {
			p, err := svc.Product(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printProduct(cmd.OutOrStdout(), p)
			return nil
		}),
	}
}

func (a *app) productsRelatedCmd() *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "related <id>",
		Short: "Products from the same category",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, svc api.Service, args []string) error {
			ps, err := svc.RelatedProducts(cmd.Context(), args[0], n)
			if err != nil {
				return err
			}
			printProducts(cmd.OutOrStdout(), ps)
			return nil
		}),
	}
	cmd.Flags().IntVarP(&n, "count", "n", 0, "how many products (default 4)")
	return cmd
}
