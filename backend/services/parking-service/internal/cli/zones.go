package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sparkpark/backend/services/parking-service/internal/catalogue"
	"sparkpark/backend/services/parking-service/internal/geo"
	"sparkpark/backend/services/parking-service/internal/service"
)

func newZonesCommand(open Opener, root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zones",
		Short: "Manage the zone catalogue",
	}
	cmd.AddCommand(newZonesSeedCommand(open, root), newZonesListCommand(open, root))
	return cmd
}

func newZonesSeedCommand(open Opener, root *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert zones from a YAML file by zone code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			zones, err := catalogue.LoadFile(file)
			if err != nil {
				return err
			}

			env, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			result, err := env.Parking.SeedZones(cmd.Context(), zones)
			if err != nil {
				return err
			}
			if root.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d zones: %d created, %d updated\n",
				len(zones), result.Created, result.Updated)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML seed file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newZonesListCommand(open Opener, root *rootOptions) *cobra.Command {
	var near, query string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List zones, optionally filtered and sorted by distance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			origin, err := parseNear(near)
			if err != nil {
				return err
			}

			env, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			zones, err := env.Parking.ListZones(cmd.Context(), service.ZoneQuery{Search: query, Near: origin})
			if err != nil {
				return err
			}
			if root.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), zones)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tNAME\tCITY\tTYPE\tDISTANCE\tID")
			for _, z := range zones {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", z.ZoneCode, z.Name, z.City, z.Type, z.DistanceLabel, z.ID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&near, "near", "", "sort by distance from lat,lon")
	cmd.Flags().StringVarP(&query, "query", "q", "", "filter by code, name or city")
	return cmd
}

// parseNear reads "lat,lon". An empty value means no origin.
func parseNear(raw string) (*geo.Point, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	lat, lon, ok := strings.Cut(raw, ",")
	if !ok {
		return nil, errors.New("--near must be lat,lon")
	}
	latitude, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return nil, fmt.Errorf("--near latitude: %w", err)
	}
	longitude, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return nil, fmt.Errorf("--near longitude: %w", err)
	}
	p := geo.Point{Latitude: latitude, Longitude: longitude}
	if !p.Valid() {
		return nil, errors.New("--near coordinates out of range")
	}
	return &p, nil
}
