package cli

import (
	"fmt"
	"strconv"

	"thehub/pkg/api"
	"thehub/pkg/model"

	"github.com/spf13/cobra"
)

func (a *app) cartCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "cart",
		Short: "Show and change the shopping cart",
	}

	show := func(cmd *cobra.Command, view model.CartView, err error) error {
		if err != nil {
			return err
		}
		printCart(cmd.OutOrStdout(), view)
		return nil
	}

	c.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the cart, creating one if needed",
			Args:  cobra.NoArgs,
			RunE: a.run(func(cmd *cobra.Command, svc api.Service, _ []string) error {
				view, err := svc.Cart(cmd.Context())
				return show(cmd, view, err)
			}),
		},
		&cobra.Command{
			Use:   "add <product-id> [quantity]",
			Short: "Add a product",
			Args:  cobra.RangeArgs(1, 2),
			RunE: a.run(func(cmd *cobra.Command, svc api.Service, args []string) error {
				qty := 1
				if len(args) == 2 {
					n, err := strconv.Atoi(args[1])
					if err != nil {
						return fmt.Errorf("quantity: %w", err)
					}
					qty = n
				}
				view, err := svc.AddToCart(cmd.Context(), args[0], qty)
				return show(cmd, view, err)
			}),
		},
		&cobra.Command{
			Use:   "set <line-id> <quantity>",
			Short: "Set the quantity of a line",
			Args:  cobra.ExactArgs(2),
			RunE: a.run(func(cmd *cobra.Command, svc api.Service, args []string) error {
				qty, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("quantity: %w", err)
				}
				view, err := svc.UpdateCartItem(cmd.Context(), args[0], qty)
				return show(cmd, view, err)
			}),
		},
		&cobra.Command{
			Use:   "inc <line-id>",
			Short: "Increase a line by one",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, svc api.Service, args []string) error {
				view, err := svc.IncrementCartItem(cmd.Context(), args[0])
				return show(cmd, view, err)
			}),
		},
		&cobra.Command{
			Use:   "dec <line-id>",
			Short: "Decrease a line by one, removing it at zero",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, svc api.Service, args []string) error {
				view, err := svc.DecrementCartItem(cmd.Context(), args[0])
				return show(cmd, view, err)
			}),
		},
		&cobra.Command{
			Use:   "rm <line-id>",
			Short: "Remove a line",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, svc api.Service, args []string) error {
				view, err := svc.RemoveCartItem(cmd.Context(), args[0])
				return show(cmd, view, err)
			}),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every line",
			Args:  cobra.NoArgs,
			RunE: a.run(func(cmd *cobra.Command, svc api.Service, _ []string) error {
				view, err := svc.ClearCart(cmd.Context())
				return show(cmd, view, err)
			}),
		},
	)
	return c
}
