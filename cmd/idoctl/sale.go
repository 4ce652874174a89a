package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

type saleFlags struct {
	asset             string
	supply            uint64
	price             uint64
	listingPrice      uint64
	registrationStart string
	registrationEnd   string
	saleStart         string
	saleEnd           string
	vesting           bool
}

func (f saleFlags) body() (map[string]interface{}, error) {
	times := map[string]string{
		"registration_start": f.registrationStart,
		"registration_end":   f.registrationEnd,
		"sale_start":         f.saleStart,
		"sale_end":           f.saleEnd,
	}
	body := map[string]interface{}{
		"asset":           f.asset,
		"supply_for_sale": f.supply,
		"unit_price":      f.price,
		"listing_price":   f.listingPrice,
		"vesting_enabled": f.vesting,
	}
	for key, raw := range times {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("--%s: expected RFC3339 time, got %q", flagName(key), raw)
		}
		body[key] = t.UTC()
	}
	return body, nil
}

func flagName(key string) string {
	switch key {
	case "sale_start":
		return "start"
	case "sale_end":
		return "end"
	case "registration_start":
		return "registration-start"
	default:
		return "registration-end"
	}
}

func (a *app) saleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sale",
		Short: "Create, inspect and operate sales",
	}

	var create saleFlags
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a sale and deposit its supply",
		Long: `Create a PENDING sale. The creator must hold supply plus the server's listing
reserve (20% of supply by default) of the sale asset; both move into sale custody.

Example:
  idoctl sale create --asset TKN --supply 1000000 --price 2 --listing-price 3 \
    --registration-start 2025-03-01T13:00:00Z --registration-end 2025-03-01T14:00:00Z \
    --start 2025-03-01T15:00:00Z --end 2025-03-01T16:00:00Z --vesting`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			body, err := create.body()
			if err != nil {
				return err
			}
			return a.call(c, http.MethodPost, "/v1/sales", body)
		},
	}
	createCmd.Flags().StringVar(&create.asset, "asset", "", "sale asset identifier")
	createCmd.Flags().Uint64Var(&create.supply, "supply", 0, "units offered")
	createCmd.Flags().Uint64Var(&create.price, "price", 0, "native cost per unit")
	createCmd.Flags().Uint64Var(&create.listingPrice, "listing-price", 0, "informational listing price")
	createCmd.Flags().StringVar(&create.registrationStart, "registration-start", "", "registration opens (RFC3339)")
	createCmd.Flags().StringVar(&create.registrationEnd, "registration-end", "", "registration closes (RFC3339)")
	createCmd.Flags().StringVar(&create.saleStart, "start", "", "sale window opens (RFC3339)")
	createCmd.Flags().StringVar(&create.saleEnd, "end", "", "sale window closes (RFC3339)")
	createCmd.Flags().BoolVar(&create.vesting, "vesting", false, "release purchases in three stages")
	for _, name := range []string{"asset", "supply", "price", "registration-start", "registration-end", "start", "end"} {
		_ = createCmd.MarkFlagRequired(name)
	}

	var status, creator string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List sales",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			q := url.Values{}
			if status != "" {
				q.Set("status", status)
			}
			if creator != "" {
				q.Set("creator", creator)
			}
			path := "/v1/sales"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			return a.call(c, http.MethodGet, path, nil)
		},
	}
	listCmd.Flags().StringVar(&status, "status", "", "pending, approved, live, completed or cancelled")
	listCmd.Flags().StringVar(&creator, "creator", "", "only sales by this creator")

	getCmd := &cobra.Command{
		Use:   "get <sale-id>",
		Short: "Show a sale",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return a.call(c, http.MethodGet, "/v1/sales/"+seg(args[0]), nil)
		},
	}

	buyCmd := &cobra.Command{
		Use:   "buy <sale-id> <amount>",
		Short: "Buy units from a live sale",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return a.call(c, http.MethodPost, "/v1/sales/"+seg(args[0])+"/buy", map[string]uint64{"amount": amount})
		},
	}

	var owner string
	claimableCmd := &cobra.Command{
		Use:   "claimable <sale-id>",
		Short: "Show released and upcoming vesting amounts",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			path := "/v1/sales/" + seg(args[0]) + "/claimable"
			if owner != "" {
				path += "?owner=" + url.QueryEscape(owner)
			}
			return a.call(c, http.MethodGet, path, nil)
		},
	}
	claimableCmd.Flags().StringVar(&owner, "owner", "", "participant (default: caller)")

	participantCmd := &cobra.Command{
		Use:   "participant <sale-id> <owner>",
		Short: "Show a participant record",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			return a.call(c, http.MethodGet, "/v1/sales/"+seg(args[0])+"/participants/"+seg(args[1]), nil)
		},
	}

	var limit int
	eventsCmd := &cobra.Command{
		Use:   "events <sale-id>",
		Short: "Show recent events of a sale",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return a.call(c, http.MethodGet, "/v1/sales/"+seg(args[0])+"/events?limit="+strconv.Itoa(limit), nil)
		},
	}
	eventsCmd.Flags().IntVar(&limit, "limit", 50, "maximum events")

	cmd.AddCommand(createCmd, listCmd, getCmd, buyCmd, claimableCmd, participantCmd, eventsCmd)

	actions := []struct{ use, action, short string }{
		{"approve", "approve", "Approve a pending sale (admin)"},
		{"start", "start", "Start an approved sale (admin)"},
		{"end", "end", "End a live sale (admin)"},
		{"cancel", "cancel", "Cancel a sale that has not finished (admin)"},
		{"register", "register", "Register the caller for a sale"},
		{"list-token", "list", "Move listing liquidity out of a completed sale (admin)"},
		{"withdraw", "withdraw", "Withdraw proceeds of a listed sale (creator)"},
		{"claim", "claim", "Claim released units"},
	}
	for _, act := range actions {
		action := act.action
		cmd.AddCommand(&cobra.Command{
			Use:   act.use + " <sale-id>",
			Short: act.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				return a.call(c, http.MethodPost, "/v1/sales/"+seg(args[0])+"/"+action, nil)
			},
		})
	}
	return cmd
}
