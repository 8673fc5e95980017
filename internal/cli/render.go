package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"thehub/pkg/model"
)

func printCart(w io.Writer, view model.CartView) {
	t := view.Totals()
	fmt.Fprintf(w, "cart %s: %d item(s), total %.2f\n", view.CartID, t.Items, t.Price)
	if len(view.Items) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tPRODUCT\tQTY\tPRICE\tSUBTOTAL")
	for _, l := range view.Items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\n", l.ID, l.Product.Name, l.Quantity, l.Product.Price, l.Subtotal)
	}
	tw.Flush()
}

func printProducts(w io.Writer, ps []model.Product) {
	if len(ps) == 0 {
		fmt.Fprintln(w, "(no products)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK")
	for _, p := range ps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\n", p.ID, p.Name, p.Category, p.Price, stock(p))
	}
	tw.Flush()
}

func printProduct(w io.Writer, p model.Product) {
	fmt.Fprintf(w, "%s  %s\n", p.ID, p.Name)
	fmt.Fprintf(w, "category: %s\nprice: %.2f\nstock: %s\n", p.Category, p.Price, stock(p))
	if p.Description != "" {
		fmt.Fprintf(w, "description: %s\n", p.Description)
	}
	if len(p.Images) > 0 {
		fmt.Fprintf(w, "images: %s\n", strings.Join(p.Images, ", "))
	}
}

func stock(p model.Product) string {
	if p.Stock == nil {
		return "-"
	}
	return fmt.Sprint(*p.Stock)
}
