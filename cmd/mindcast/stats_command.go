package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mindcast/internal/api"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache performance and top topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			stats, raw, err := client.stats(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				printRawJSON(raw)
				return nil
			}
			renderStats(stats)
			return nil
		},
	}
}

func renderStats(stats *api.StatsResponse) {
	fmt.Printf("topics: cold=%d candidate=%d canon=%d\n",
		stats.TopicsByStatus["cold"],
		stats.TopicsByStatus["candidate"],
		stats.TopicsByStatus["canon"],
	)
	fmt.Printf("requests: %d total, %d cache hits (%.1f%%)\n",
		stats.TotalRequests, stats.CacheHits, stats.CacheHitRate*100)
	fmt.Printf("spend: %s total, %s avg per miss, %s saved by cache\n",
		formatCents(stats.TotalCostCents),
		formatCents(int64(stats.AvgMissCostCents)),
		formatCents(stats.SavingsCents),
	)
	fmt.Printf("jobs: queued=%d running=%d succeeded=%d failed=%d\n",
		stats.JobsByStatus["queued"],
		stats.JobsByStatus["running"],
		stats.JobsByStatus["succeeded"],
		stats.JobsByStatus["failed"],
	)

	if len(stats.TopCanon) > 0 {
		fmt.Println("\nTop canon topics")
		fmt.Println(topicTable(stats.TopCanon))
	}
	if len(stats.NearPromotion) > 0 {
		fmt.Println("\nNear promotion")
		fmt.Println(topicTable(stats.NearPromotion))
	}
}

func topicTable(topics []api.TopicPayload) string {
	rows := make([][]string, 0, len(topics))
	for _, topic := range topics {
		rows = append(rows, []string{
			topic.Key,
			topic.Status,
			fmt.Sprintf("%d", topic.RequestCount),
			fmt.Sprintf("%d", topic.UniqueUserCount),
			formatRate(topic.CompletionRate),
			formatRate(topic.SaveRate),
			formatScore(topic.CanonScore),
		})
	}
	return renderTable(
		[]string{"Topic", "Status", "Requests", "Users", "Completion", "Saves", "Score"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}
