// Package fulfillment renders product command templates for paid orders and
// hands them to the game server through a Redis stream.
package fulfillment

import (
	"strconv"
	"strings"
)

// Template placeholders understood by product commands.
const (
	PlaceholderPlayer   = "{player}"
	PlaceholderQuantity = "{quantity}"
	PlaceholderOrderID  = "{order_id}"
)

// Render substitutes the placeholders in a single template.
func Render(template, player string, quantity int, orderID uint64) string {
	return strings.NewReplacer(
		PlaceholderPlayer, player,
		PlaceholderQuantity, strconv.Itoa(quantity),
		PlaceholderOrderID, strconv.FormatUint(orderID, 10),
	).Replace(template)
}

// Expand renders every template for one order line. Templates that mention
// {quantity} run once with the full quantity; the rest run once per unit.
func Expand(templates []string, player string, quantity int, orderID uint64) []string {
	if quantity < 1 {
		return nil
	}
	out := make([]string, 0, len(templates))
	for _, tpl := range templates {
		tpl = strings.TrimSpace(tpl)
		if tpl == "" {
			continue
		}
		if strings.Contains(tpl, PlaceholderQuantity) {
			out = append(out, Render(tpl, player, quantity, orderID))
			continue
		}
		cmd := Render(tpl, player, 1, orderID)
		for i := 0; i < quantity; i++ {
			out = append(out, cmd)
		}
	}
	return out
}
