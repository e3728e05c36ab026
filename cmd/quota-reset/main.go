package main

import (
	"context"
	"log"
	"time"

	"github.com/huddleeco-commits/solevault-backend-sub001/app"
)

// Scheduled entrypoint for the monthly usage sweep. Zeroes stale counters;
// never touches tiers.
func main() {
	start := time.Now()
	app.MustInitDB()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	n, err := app.ResetMonthlyUsage(ctx)
	if err != nil {
		log.Fatalf("monthly usage reset failed: %v", err)
	}
	log.Printf("reset %d users in %s", n, time.Since(start))
}
