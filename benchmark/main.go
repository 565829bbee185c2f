// Package main benchmarks the reposcore CLI against a project list.
// Each scenario runs several times without a cache and several times with the
// SQLite signal cache, treating the first cached run as cold and averaging the
// rest as warm. Results are written to a CSV file.
//
// Prerequisites:
// - reposcore binary installed and available in PATH
// - GITHUB_AUTH_TOKEN set, since every uncached run hits the GitHub API
// - Checkouts of the listed repositories under repos-dir for the local scenario
//
// Usage: go run benchmark/main.go [project-list] [repos-dir]
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// BenchmarkResult holds the result of a benchmark run (no-cache average, cold run and average of warm runs).
type BenchmarkResult struct {
	Scenario    string
	NoCacheTime string
	ColdTime    string
	WarmTime    string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	ProjectList string
	ReposDir    string
	Timeout     time.Duration
	Workers     int
	NoCacheRuns int
	CacheRuns   int
}

// scenario is one score invocation measured by the benchmark.
type scenario struct {
	name string
	args []string
}

func main() {
	// Parse command line arguments
	if len(os.Args) != 3 {
		fmt.Printf("Usage: %s [project-list] [repos-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		ProjectList: os.Args[1],
		ReposDir:    os.Args[2],
		Timeout:     10 * time.Minute,
		Workers:     8,
		NoCacheRuns: 2,
		CacheRuns:   4,
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	// Clear the cache using reposcore cache clear
	fmt.Printf("Clearing cache...\n")
	clearCmd := exec.Command("reposcore", "cache", "clear")
	if output, err := clearCmd.CombinedOutput(); err != nil {
		fmt.Printf("Warning: failed to clear cache: %v\nOutput: %s\n", err, string(output))
	} else {
		fmt.Printf("Cache cleared successfully\n")
	}

	scenarios := []scenario{
		{name: "remote", args: nil},
		{name: "local", args: []string{"--commit-frequency-source", "local"}},
	}

	var results []BenchmarkResult
	for _, sc := range scenarios {
		results = append(results, runBenchmarkSuite(config, sc))
	}

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// checkPrerequisites verifies that the reposcore binary and inputs exist
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("reposcore"); err != nil {
		return errors.New("reposcore binary not found in PATH")
	}
	if _, err := os.Stat(config.ProjectList); err != nil {
		return fmt.Errorf("project list not found: %w", err)
	}
	if info, err := os.Stat(config.ReposDir); err != nil || !info.IsDir() {
		return fmt.Errorf("repos dir %s is not a directory", config.ReposDir)
	}
	if os.Getenv("GITHUB_AUTH_TOKEN") == "" {
		return errors.New("GITHUB_AUTH_TOKEN is not set")
	}
	return nil
}

// runBenchmarkSuite runs both no-cache and cache benchmarks for a scenario
func runBenchmarkSuite(config BenchmarkConfig, sc scenario) BenchmarkResult {
	fmt.Printf("Running %s scenario\n", sc.name)

	// Helper to run a benchmark phase
	runPhase := func(cacheBackend string, numRuns int, phaseName string) (coldTime float64, avgTime string) {
		fmt.Printf("  %s phase (%d runs)\n", phaseName, numRuns)
		cold, times := runBenchmark(config, sc.args, cacheBackend, numRuns)
		if len(times) == 0 {
			return cold, "TIMEOUT"
		}
		var sum float64
		for _, t := range times {
			sum += t
		}
		return cold, fmt.Sprintf("%.3fs", sum/float64(len(times)))
	}

	// Phase 1: No-cache runs
	_, noCacheAvg := runPhase("none", config.NoCacheRuns, "No-cache")

	// Phase 2: Cache runs
	coldTime, warmAvg := runPhase("sqlite", config.CacheRuns, "Cache")

	coldTimeStr := "TIMEOUT"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.3fs", coldTime)
	}

	fmt.Printf("  No-cache average: %s, Cold time: %s, Warm average: %s\n", noCacheAvg, coldTimeStr, warmAvg)

	return BenchmarkResult{
		Scenario:    sc.name,
		NoCacheTime: noCacheAvg,
		ColdTime:    coldTimeStr,
		WarmTime:    warmAvg,
	}
}

// runBenchmark executes reposcore score multiple times with specified cache backend and returns cold time and warm times
func runBenchmark(config BenchmarkConfig, extraArgs []string, cacheBackend string, numRuns int) (coldTime float64, warmTimes []float64) {
	args := []string{
		"score", config.ProjectList,
		"--cache-backend", cacheBackend,
		"--repos-location", config.ReposDir,
		"--workers", fmt.Sprint(config.Workers),
		"--output-file", os.DevNull,
	}
	args = append(args, extraArgs...)

	var times []float64
	for range numRuns {
		ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		start := time.Now()
		output, err := exec.CommandContext(ctx, "reposcore", args...).CombinedOutput()
		elapsed := time.Since(start).Seconds()
		cancel()

		if err == nil && isSuccess(output) {
			times = append(times, elapsed)
		}
	}

	if len(times) > 0 {
		coldTime = times[0]
		warmTimes = times[1:]
	}
	return
}

// isSuccess checks if command output indicates a completed run
func isSuccess(output []byte) bool {
	outputStr := string(output)
	return strings.Contains(outputStr, "Scoring") && !strings.Contains(outputStr, "could not be scored")
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s/reposcore_benchmark_%s.csv", os.TempDir(), timestamp)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"scenario", "no_cache_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, result := range results {
		if err := writer.Write([]string{result.Scenario, result.NoCacheTime, result.ColdTime, result.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, result := range results {
		fmt.Printf("  %-8s: No-cache: %s, Cold: %s, Warm: %s\n", result.Scenario, result.NoCacheTime, result.ColdTime, result.WarmTime)
	}
}
