package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/deckforge/cardindex/internal/domain"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print corpus distribution statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, cardStore, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			total := 0
			types := make(map[string]int)
			colors := make(map[string]int)
			err = cardStore.Walk(func(path string, card *domain.Card) error {
				total++
				types[card.PrimaryType()]++
				colors[card.ColorKey()]++
				return nil
			})
			if err != nil {
				return err
			}

			fmt.Printf("Total cards: %d\n\nBy primary type:\n", total)
			printCounts(types)
			fmt.Println("\nBy color identity:")
			printCounts(colors)
			return nil
		},
	}
}

func printCounts(counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		fmt.Printf("  %-20s %d\n", k, counts[k])
	}
}
