/*
Copyright 2025 Vestcore Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
)

// accrueCommands defines the "accrue" command for triggering an accrual
// run outside the nightly schedule, for example to backfill a missed day.
func accrueCommands(v *vestInstance) *cobra.Command {
	var dateFlag string
	var inline bool

	cmd := &cobra.Command{
		Use:   "accrue",
		Short: "trigger an interest accrual run",
		Run: func(cmd *cobra.Command, args []string) {
			asOf := time.Now()
			if dateFlag != "" {
				parsed, err := time.Parse("2006-01-02", dateFlag)
				if err != nil {
					log.Fatalf("invalid --date %q, expected YYYY-MM-DD: %v", dateFlag, err)
				}
				asOf = parsed
			}

			ctx := context.Background()
			if inline {
				summary, err := v.vest.ProcessDueInvestments(ctx, asOf)
				if err != nil {
					log.Fatalf("accrual run failed: %v", err)
				}
				fmt.Printf("accrual run for %s: processed=%d accrued=%d payouts=%d matured=%d skipped=%d failed=%d\n",
					asOf.Format("2006-01-02"), summary.Processed, summary.Accrued, summary.Payouts, summary.Matured, summary.Skipped, summary.Failed)
				return
			}

			if err := v.vest.EnqueueAccrualRun(ctx, asOf); err != nil {
				log.Fatalf("could not enqueue accrual run: %v", err)
			}
			fmt.Printf("accrual run for %s enqueued\n", asOf.Format("2006-01-02"))
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "", "run date in YYYY-MM-DD form (defaults to today)")
	cmd.Flags().BoolVar(&inline, "inline", false, "run the job in this process instead of enqueueing it")

	return cmd
}
