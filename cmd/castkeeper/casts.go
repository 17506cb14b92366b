package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/castkeeper/castkeeper/internal/castdb"
	"github.com/castkeeper/castkeeper/internal/pathguard"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newCastsCommand(ctx *commandContext) *cobra.Command {
	var feature string
	var limit int
	var pending bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "casts",
		Short: "List recorded audio casts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			filter := castdb.Filter{Limit: limit, IncludePending: pending}
			if f := strings.TrimSpace(feature); f != "" {
				guard, err := pathguard.New(cfg.Paths.Root)
				if err != nil {
					return fmt.Errorf("open cast root: %w", err)
				}
				dir, err := guard.Resolve(f)
				if err != nil {
					return fmt.Errorf("feature %q: %w", f, err)
				}
				filter.FeaturePath = guard.Rel(dir)
			}

			store, err := castdb.Open(cfg.Paths.Database)
			if err != nil {
				return fmt.Errorf("open cast registry: %w", err)
			}
			defer store.Close()

			casts, err := store.List(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("list casts: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if casts == nil {
					casts = []castdb.Cast{}
				}
				return enc.Encode(casts)
			}
			if len(casts) == 0 {
				fmt.Fprintln(out, "No audio casts recorded.")
				return nil
			}
			fmt.Fprintln(out, renderCasts(casts, !isTerminal(out)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&feature, "feature", "f", "", "Feature directory relative to the cast root")
	cmd.Flags().IntVarP(&limit, "limit", "n", castdb.DefaultListLimit, "Maximum casts to show")
	cmd.Flags().BoolVar(&pending, "pending", false, "Include casts still being written")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func renderCasts(casts []castdb.Cast, plain bool) string {
	rows := make([][]string, 0, len(casts))
	for _, c := range casts {
		size := "-"
		status := c.Status
		if c.Status == castdb.StatusComplete {
			size = humanize.Bytes(uint64(c.AudioBytes))
		}
		if !plain {
			status = statusColour(c.Status).Sprint(c.Status)
		}
		rows = append(rows, []string{
			c.FeaturePath,
			strconv.Itoa(c.EpisodeNumber),
			c.AgentName,
			humanize.Time(c.CreatedAt),
			size,
			status,
		})
	}
	return renderTable(
		[]string{"Feature", "Episode", "Agent", "Created", "Audio", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft},
		plain,
	)
}

func statusColour(status string) *color.Color {
	if status == castdb.StatusComplete {
		return completeColour
	}
	return pendingColour
}
