package guard

import (
	"context"

	"github.com/storecraft/backoffice/internal/access"
)

// NavItem is a sidebar entry. Items with children are groups; a group is shown only when at
// least one child is visible.
type NavItem struct {
	Label    string    `json:"label"`
	Path     string    `json:"path,omitempty"`
	Icon     string    `json:"icon,omitempty"`
	Children []NavItem `json:"children,omitempty"`
}

// DefaultNavigation is the dashboard sidebar.
func DefaultNavigation() []NavItem {
	return []NavItem{
		{Label: "Dashboard", Path: "/dashboard", Icon: "home"},
		{Label: "Orders", Icon: "receipt", Children: []NavItem{
			{Label: "All orders", Path: "/orders"},
			{Label: "Refunds", Path: "/orders/refunds"},
			{Label: "Point of sale", Path: "/pos"},
		}},
		{Label: "Catalog", Icon: "box", Children: []NavItem{
			{Label: "Products", Path: "/products"},
			{Label: "Inventory", Path: "/inventory"},
		}},
		{Label: "Customers", Path: "/customers", Icon: "users"},
		{Label: "Marketing", Icon: "megaphone", Children: []NavItem{
			{Label: "Campaigns", Path: "/marketing"},
			{Label: "Discounts", Path: "/discounts"},
		}},
		{Label: "Finance", Icon: "chart", Children: []NavItem{
			{Label: "Analytics", Path: "/analytics"},
			{Label: "Reports", Path: "/finance"},
			{Label: "Payouts", Path: "/payouts"},
		}},
		{Label: "Site builder", Path: "/site-builder", Icon: "layout"},
		{Label: "Team", Icon: "shield", Children: []NavItem{
			{Label: "Staff", Path: "/staff"},
			{Label: "Roles", Path: "/roles"},
			{Label: "Users", Path: "/users"},
		}},
		{Label: "Settings", Icon: "cog", Children: []NavItem{
			{Label: "General", Path: "/settings"},
			{Label: "Payments", Path: "/settings/payments"},
			{Label: "Shipping", Path: "/settings/shipping"},
			{Label: "Domains", Path: "/settings/domains"},
		}},
	}
}

// Navigation returns the entries of items that sess may open. Denied entries are dropped and
// groups left without visible children are dropped entirely.
func (g *Guard) Navigation(ctx context.Context, sess *access.Session, items []NavItem) []NavItem {
	out := make([]NavItem, 0, len(items))
	for _, item := range items {
		if len(item.Children) > 0 {
			children := g.Navigation(ctx, sess, item.Children)
			if len(children) == 0 {
				continue
			}
			item.Children = children
			out = append(out, item)
			continue
		}
		if item.Path == "" || !g.Check(ctx, sess, item.Path).Allowed {
			continue
		}
		out = append(out, item)
	}
	return out
}
