package main

import (
	"net/http"

	"github.com/spf13/cobra"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the global configuration",
	}

	var stakingAsset, treasury string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the deployment; the caller becomes admin",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return a.call(c, http.MethodPost, "/v1/config", map[string]string{
				"staking_asset": stakingAsset,
				"treasury":      treasury,
			})
		},
	}
	initCmd.Flags().StringVar(&stakingAsset, "staking-asset", "", "asset staked for tier qualification")
	initCmd.Flags().StringVar(&treasury, "treasury", "", "holder receiving protocol fees")
	_ = initCmd.MarkFlagRequired("staking-asset")
	_ = initCmd.MarkFlagRequired("treasury")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the global configuration",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return a.call(c, http.MethodGet, "/v1/config", nil)
		},
	}

	setAdminCmd := &cobra.Command{
		Use:   "set-admin <identity>",
		Short: "Hand the admin role to another identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return a.call(c, http.MethodPut, "/v1/config/admin", map[string]string{"admin": args[0]})
		},
	}

	cmd.AddCommand(initCmd, showCmd, setAdminCmd)
	return cmd
}

func (a *app) stakeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stake <amount>",
		Short: "Stake the staking asset to qualify for a tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			return a.call(c, http.MethodPost, "/v1/stake", map[string]uint64{"amount": amount})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <owner>",
		Short: "Show an owner's stake and tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return a.call(c, http.MethodGet, "/v1/stake/"+seg(args[0]), nil)
		},
	})
	return cmd
}

func (a *app) unstakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unstake <amount>",
		Short: "Withdraw staked tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			return a.call(c, http.MethodPost, "/v1/unstake", map[string]uint64{"amount": amount})
		},
	}
}

func (a *app) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <asset> <holder>",
		Short: "Show a ledger balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			return a.call(c, http.MethodGet, "/v1/balances/"+seg(args[0])+"/"+seg(args[1]), nil)
		},
	}
}

func (a *app) mintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mint <asset> <holder> <amount>",
		Short: "Credit a holder from outside the ledger (admin)",
		Args:  cobra.ExactArgs(3),
		RunE: func(c *cobra.Command, args []string) error {
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			return a.call(c, http.MethodPost, "/v1/mint", map[string]interface{}{
				"asset":  args[0],
				"holder": args[1],
				"amount": amount,
			})
		},
	}
}
