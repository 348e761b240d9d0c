package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/happydiving/pricing-engine/pkg/client"
)

func newRootCmd(out io.Writer) *cobra.Command {
	state := &cliState{out: out}

	rootCmd := &cobra.Command{
		Use:          "pricingctl",
		Short:        "Pricing engine CLI - price excursions and manage the pricing cache",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return state.connect()
		},
	}
	rootCmd.SetOut(out)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&state.baseURL, "base-url", "http://localhost:8080", "Pricing engine base URL")
	rootCmd.PersistentFlags().DurationVar(&state.timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().IntVar(&state.retries, "retries", 2, "Retries on 5xx and transport errors")
	rootCmd.PersistentFlags().StringVarP(&state.output, "output", "o", "json", "Output format (json, yaml)")

	rootCmd.AddCommand(
		newBoatCostCmd(state),
		newGasFillsCmd(state),
		newResolveCmd(state),
		newAllocateCmd(state),
		newCacheStatsCmd(state),
		newInvalidateCmd(state),
		newWarmupCmd(state),
		newHealthCmd(state),
	)
	return rootCmd
}

func newBoatCostCmd(state *cliState) *cobra.Command {
	var (
		site   string
		divers int
		asOf   string
	)
	cmd := &cobra.Command{
		Use:   "boat-cost",
		Short: "Price a boat charter for a dive site",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			at, err := parseTime(asOf)
			if err != nil {
				return err
			}

			ctx, cancel := state.withContext()
			defer cancel()
			res, err := state.api.BoatCost(ctx, client.BoatCostInput{SiteID: site, DiverCount: divers, AsOf: at})
			if err != nil {
				return err
			}
			return state.print(res)
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "Dive site id")
	cmd.Flags().IntVar(&divers, "divers", 0, "Diver count")
	cmd.Flags().StringVar(&asOf, "as-of", "", "RFC3339 pricing time (default now)")
	_ = cmd.MarkFlagRequired("site")
	return cmd
}

func newGasFillsCmd(state *cliState) *cobra.Command {
	var (
		shop     string
		gas      string
		fills    int
		override string
		asOf     string
	)
	cmd := &cobra.Command{
		Use:   "gas-fills",
		Short: "Price tank fills at a dive shop",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			at, err := parseTime(asOf)
			if err != nil {
				return err
			}
			in := client.GasFillsInput{ShopID: shop, GasType: gas, FillsCount: fills, AsOf: at}
			if override != "" {
				d, err := decimal.NewFromString(override)
				if err != nil {
					return fmt.Errorf("invalid --charge-override: %w", err)
				}
				in.ChargeOverride = &d
			}

			ctx, cancel := state.withContext()
			defer cancel()
			res, err := state.api.GasFills(ctx, in)
			if err != nil {
				return err
			}
			return state.print(res)
		},
	}
	cmd.Flags().StringVar(&shop, "shop", "", "Dive shop id")
	cmd.Flags().StringVar(&gas, "gas", "air", "Gas type")
	cmd.Flags().IntVar(&fills, "fills", 1, "Fills count")
	cmd.Flags().StringVar(&override, "charge-override", "", "Per-fill charge override")
	cmd.Flags().StringVar(&asOf, "as-of", "", "RFC3339 pricing time (default now)")
	_ = cmd.MarkFlagRequired("shop")
	return cmd
}

func newResolveCmd(state *cliState) *cobra.Command {
	var (
		name      string
		org       string
		party     string
		agreement string
		asOf      string
	)
	cmd := &cobra.Command{
		Use:   "resolve [catalog-item-id]",
		Short: "Resolve a catalog item price by id or --name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var item string
			if len(args) == 1 {
				item = args[0]
			}
			if item == "" && name == "" {
				return errors.New("a catalog item id or --name is required")
			}

			in := client.ResolveInput{CatalogItemName: name}
			var err error
			if in.CatalogItemID, err = parseUUID("catalog-item-id", item); err != nil {
				return err
			}
			if in.OrganizationID, err = parseUUID("--org", org); err != nil {
				return err
			}
			if in.PartyID, err = parseUUID("--party", party); err != nil {
				return err
			}
			if in.AgreementID, err = parseUUID("--agreement", agreement); err != nil {
				return err
			}
			if in.AsOf, err = parseTime(asOf); err != nil {
				return err
			}

			ctx, cancel := state.withContext()
			defer cancel()
			res, err := state.api.Resolve(ctx, in)
			if err != nil {
				return err
			}
			return state.print(res)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Catalog item display name")
	cmd.Flags().StringVar(&org, "org", "", "Organization id")
	cmd.Flags().StringVar(&party, "party", "", "Party id")
	cmd.Flags().StringVar(&agreement, "agreement", "", "Agreement id")
	cmd.Flags().StringVar(&asOf, "as-of", "", "RFC3339 pricing time (default now)")
	return cmd
}

func newAllocateCmd(state *cliState) *cobra.Command {
	var (
		n        int
		currency string
	)
	cmd := &cobra.Command{
		Use:   "allocate [total]",
		Short: "Split a shared total across participants",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			total, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid total: %w", err)
			}

			ctx, cancel := state.withContext()
			defer cancel()
			res, err := state.api.Allocate(ctx, client.AllocateInput{SharedTotal: total, ParticipantCount: n, Currency: currency})
			if err != nil {
				return err
			}
			return state.print(res)
		},
	}
	cmd.Flags().IntVarP(&n, "participants", "n", 0, "Participant count")
	cmd.Flags().StringVar(&currency, "currency", "", "Currency code")
	return cmd
}

func newCacheStatsCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "cache-stats",
		Short: "Show cache namespace sizes",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := state.withContext()
			defer cancel()
			res, err := state.api.CacheStats(ctx)
			if err != nil {
				return err
			}
			return state.print(res)
		},
	}
}

func newInvalidateCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate [namespace] [key]",
		Short: "Drop a cache key, a namespace, or everything",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			var ns, key string
			if len(args) > 0 {
				ns = args[0]
			}
			if len(args) > 1 {
				key = args[1]
			}

			ctx, cancel := state.withContext()
			defer cancel()
			if err := state.api.Invalidate(ctx, ns, key); err != nil {
				return err
			}
			stats, err := state.api.CacheStats(ctx)
			if err != nil {
				return err
			}
			return state.print(stats)
		},
	}
}

func newWarmupCmd(state *cliState) *cobra.Command {
	var last bool
	cmd := &cobra.Command{
		Use:   "warmup",
		Short: "Run a cache warm-up, or show the last report with --last",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := state.withContext()
			defer cancel()

			var (
				res any
				err error
			)
			if last {
				res, err = state.api.LastWarmup(ctx)
			} else {
				res, err = state.api.Warmup(ctx)
			}
			if err != nil {
				return err
			}
			return state.print(res)
		},
	}
	cmd.Flags().BoolVar(&last, "last", false, "Show the last report instead of running one")
	return cmd
}

func newHealthCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check service health",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := state.withContext()
			defer cancel()
			res, err := state.api.Health(ctx)
			if err != nil {
				return err
			}
			return state.print(res)
		},
	}
}

func parseTime(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("invalid --as-of: %w", err)
	}
	return &t, nil
}

func parseUUID(name, v string) (*uuid.UUID, error) {
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return &id, nil
}
