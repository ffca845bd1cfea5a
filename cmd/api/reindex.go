package main

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/emotune/internal/config"
	"github.com/ewilliams-labs/emotune/internal/core/domain"
)

func reindexCommand(cfgFn func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Scan the music library, sync it to the database and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cfgFn()
			lib, err := openLibrary(cfg)
			if err != nil {
				return err
			}
			defer lib.Close()

			report, err := lib.reindex(cmd.Context())
			if err != nil {
				return fmt.Errorf("reindex %s: %w", cfg.Library.RootDir, err)
			}
			return renderReport(report.Categories, report.Tracks, report.Root)
		},
	}
}

func renderReport(categories map[domain.Emotion]int, total int, root string) error {
	names := make([]domain.Emotion, 0, len(categories))
	for e := range categories {
		names = append(names, e)
	}
	slices.Sort(names)

	data := pterm.TableData{{"Category", "Tracks"}}
	for _, e := range names {
		data = append(data, []string{string(e), strconv.Itoa(categories[e])})
	}
	data = append(data, []string{"total", strconv.Itoa(total)})

	pterm.Info.Printfln("Indexed %s", root)
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
