// Benchmark tool for replaying spending history against Cardwise.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/history.csv -url http://localhost:8080
//
// This tool:
//  1. Reads a spending history CSV (mcc, amount, card actually used, reward earned)
//  2. Requests a recommendation for each purchase
//  3. Compares the recommended card with the card actually used
//  4. Reports the match rate, the reward upside of switching, and latency
//
// Expected CSV header: mcc,amount,cardId,rewardEarned
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// HistoryRow is one purchase from the replay file.
type HistoryRow struct {
	MCC          string
	Amount       float64
	CardID       string
	RewardEarned float64
}

// RecommendRequest is the Cardwise API request format.
type RecommendRequest struct {
	MCC    string  `json:"mcc"`
	Amount float64 `json:"amount"`
}

// RecommendResponse is the subset of the Cardwise API response the
// benchmark needs.
type RecommendResponse struct {
	Recommendation struct {
		Recommended struct {
			Card struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"card"`
			Reward float64 `json:"reward"`
			Rate   float64 `json:"rate"`
		} `json:"recommended"`
		Category string `json:"category"`
	} `json:"recommendation"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TotalProcessed int64
	TotalErrors    int64

	MatchedCard   int64 // Recommended card was the card actually used
	SwitchAdvised int64 // A different card would have earned more

	RewardEarnedCents      int64 // What the user actually earned
	RewardRecommendedCents int64 // What the recommended card would earn

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to spending history CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Cardwise base URL")
	userID := flag.String("user", "benchmark-user", "User ID for requests")
	limit := flag.Int("limit", 10000, "Maximum purchases to replay (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each purchase result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/history.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("===============================================================")
	fmt.Println("          CARDWISE BENCHMARK - Spending History Replay")
	fmt.Println("===============================================================")
	fmt.Printf("\nCSV File:      %s\n", *csvPath)
	fmt.Printf("Cardwise URL:  %s\n", *baseURL)
	fmt.Printf("User ID:       %s\n", *userID)
	fmt.Printf("Workers:       %d\n", *workers)
	fmt.Printf("Limit:         %d\n", *limit)
	fmt.Println()

	// Check Cardwise is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Cardwise not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Cardwise is running:")
		fmt.Println("  go run cmd/cardwise/main.go")
		os.Exit(1)
	}
	fmt.Println("Cardwise is healthy")

	// Read replay data
	fmt.Printf("\nReading spending history from %s...\n", *csvPath)
	rows, err := readHistoryCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d purchases\n", len(rows))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(rows, *baseURL, *userID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readHistoryCSV(path string, limit int) ([]HistoryRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(col)] = i
	}
	for _, required := range []string{"mcc", "amount"} {
		if _, ok := colIndex[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var rows []HistoryRow

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		amount, err := strconv.ParseFloat(record[colIndex["amount"]], 64)
		if err != nil || amount <= 0 {
			continue
		}

		row := HistoryRow{
			MCC:    record[colIndex["mcc"]],
			Amount: amount,
		}
		if i, ok := colIndex["cardid"]; ok {
			row.CardID = record[i]
		}
		if i, ok := colIndex["rewardearned"]; ok {
			row.RewardEarned, _ = strconv.ParseFloat(record[i], 64)
		}

		rows = append(rows, row)

		if limit > 0 && len(rows) >= limit {
			break
		}
	}

	return rows, nil
}

func runBenchmark(rows []HistoryRow, baseURL, userID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan HistoryRow, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for row := range work {
				start := time.Now()
				result, err := recommendPurchase(client, baseURL, userID, row)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: mcc=%s amount=%.2f -> %v\n", row.MCC, row.Amount, err)
					}
					continue
				}

				recommended := result.Recommendation.Recommended
				matched := row.CardID != "" && recommended.Card.ID == row.CardID

				if matched {
					atomic.AddInt64(&metrics.MatchedCard, 1)
				} else if recommended.Reward > row.RewardEarned {
					atomic.AddInt64(&metrics.SwitchAdvised, 1)
				}

				atomic.AddInt64(&metrics.RewardEarnedCents, int64(row.RewardEarned*100))
				atomic.AddInt64(&metrics.RewardRecommendedCents, int64(recommended.Reward*100))

				if verbose {
					status := "="
					if !matched {
						status = "!"
					}
					fmt.Printf("%s %-22s | MCC: %-4s | Amount: $%10.2f | Earned: $%6.2f | Best: %s ($%.2f @ %g%%)\n",
						status,
						result.Recommendation.Category,
						row.MCC,
						row.Amount,
						row.RewardEarned,
						recommended.Card.Name,
						recommended.Reward,
						recommended.Rate,
					)
				}
			}
		}()
	}

	// Send work
	for _, row := range rows {
		work <- row
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func recommendPurchase(client *http.Client, baseURL, userID string, row HistoryRow) (*RecommendResponse, error) {
	body, err := json.Marshal(RecommendRequest{
		MCC:    row.MCC,
		Amount: row.Amount,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/recommendations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-User-ID", userID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result RecommendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n===============================================================")
	fmt.Println("                      BENCHMARK RESULTS")
	fmt.Println("===============================================================")

	fmt.Printf("\nDATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	succeeded := m.TotalProcessed - m.TotalErrors

	fmt.Printf("\nOPTIMIZATION METRICS\n")
	if succeeded > 0 {
		matchRate := float64(m.MatchedCard) / float64(succeeded) * 100
		fmt.Printf("   Optimal Card Used: %d / %d (%.2f%%)\n", m.MatchedCard, succeeded, matchRate)
		fmt.Printf("   Switch Advised:    %d / %d (%.2f%%)\n", m.SwitchAdvised, succeeded,
			float64(m.SwitchAdvised)/float64(succeeded)*100)
	}

	earned := float64(m.RewardEarnedCents) / 100
	recommended := float64(m.RewardRecommendedCents) / 100
	fmt.Printf("   Rewards Earned:    $%.2f\n", earned)
	fmt.Printf("   Rewards Possible:  $%.2f\n", recommended)
	if upside := recommended - earned; upside > 0 {
		fmt.Printf("   Upside:            $%.2f left on the table\n", upside)
	}

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f req/sec\n", rps)
	}

	fmt.Println()
}
