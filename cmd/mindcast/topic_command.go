package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mindcast/internal/api"
)

func newTopicCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "topic <key>",
		Short: "Show one topic with its signals, jobs, and recent requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			detail, raw, err := client.topic(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				printRawJSON(raw)
				return nil
			}
			renderTopicDetail(detail)
			return nil
		},
	}
}

func renderTopicDetail(detail *api.TopicDetailResponse) {
	topic := detail.Topic
	fmt.Printf("%s (%s)\n", topic.Title, topic.Key)
	fmt.Printf("status: %s  score: %s\n", topic.Status, formatScore(topic.CanonScore))
	fmt.Printf("requests: %d  users: %d  completion: %s  saves: %s\n",
		topic.RequestCount, topic.UniqueUserCount,
		formatRate(topic.CompletionRate), formatRate(topic.SaveRate),
	)
	if detail.Evaluation.Eligible {
		fmt.Println("promotion: eligible")
	} else {
		fmt.Println("promotion: not eligible")
		for _, reason := range detail.Evaluation.Reasons {
			fmt.Printf("  - %s\n", reason)
		}
	}
	if detail.Episode != nil {
		fmt.Printf("canon episode: %s (%ds, %d words, %s) promoted %s\n",
			detail.Episode.ID,
			detail.Episode.DurationSecs,
			detail.Episode.WordCount,
			formatCents(detail.Episode.CostCents),
			formatTime(topic.CanonPromotedAt),
		)
	}

	if len(detail.Jobs) > 0 {
		rows := make([][]string, 0, len(detail.Jobs))
		for _, job := range detail.Jobs {
			cost := "-"
			if job.CostCents != nil {
				cost = formatCents(*job.CostCents)
			}
			rows = append(rows, []string{
				fmt.Sprintf("%d", job.ID),
				job.Status,
				cost,
				job.Error,
				formatTime(&job.CreatedAt),
			})
		}
		fmt.Println("\nRemaster jobs")
		fmt.Println(renderTable(
			[]string{"ID", "Status", "Cost", "Error", "Created"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
		))
	}

	if len(detail.Requests) > 0 {
		rows := make([][]string, 0, len(detail.Requests))
		for _, req := range detail.Requests {
			hit := "miss"
			if req.CacheHit {
				hit = "hit"
			}
			rows = append(rows, []string{
				req.UserID,
				req.Type,
				hit,
				formatRate(scalePct(req.CompletionPct)),
				formatTime(&req.CreatedAt),
			})
		}
		fmt.Println("\nRecent requests")
		fmt.Println(renderTable(
			[]string{"User", "Type", "Cache", "Completion", "At"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		))
	}
}

// scalePct converts a 0..100 completion percentage to the 0..1 form the
// rate formatter expects.
func scalePct(pct *float64) *float64 {
	if pct == nil {
		return nil
	}
	scaled := *pct / 100
	return &scaled
}
