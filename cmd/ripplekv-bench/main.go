// Command ripplekv-bench replays a benchmark workload file (as
// produced by ripplekv-benchgen) against either an in-process
// store.Store or a running ripplekv-server, timing each SET/GET/DEL
// and reporting throughput and per-command latency percentiles.
package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ripplekv/ripplekv/pkg/client"
	"github.com/ripplekv/ripplekv/pkg/config"
	"github.com/ripplekv/ripplekv/pkg/store"
)

// opStats accumulates per-command latency samples.
type opStats struct {
	latencies []time.Duration
}

func (s *opStats) add(d time.Duration) { s.latencies = append(s.latencies, d) }

func (s *opStats) count() int { return len(s.latencies) }

func (s *opStats) avg() time.Duration {
	if len(s.latencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, l := range s.latencies {
		total += l
	}
	return total / time.Duration(len(s.latencies))
}

func (s *opStats) p95() time.Duration {
	if len(s.latencies) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), s.latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[int(float64(len(sorted))*0.95)]
}

// executor runs one of SET/GET/DEL against whatever backend is under
// test, hiding the difference between an in-process store.Store and a
// networked client.Client from the replay loop.
type executor interface {
	set(key, value string, ttl time.Duration)
	get(key string)
	del(key string)
}

type memoryExecutor struct{ kv *store.Store }

func (e memoryExecutor) set(key, value string, ttl time.Duration) {
	if ttl == 0 {
		ttl = store.NoTTL
	}
	e.kv.Set(key, []byte(value), ttl)
}
func (e memoryExecutor) get(key string) { e.kv.Get(key) }
func (e memoryExecutor) del(key string) { e.kv.Del(key) }

type networkExecutor struct{ cl *client.Client }

func (e networkExecutor) set(key, value string, ttl time.Duration) { e.cl.Set(key, []byte(value), ttl) }
func (e networkExecutor) get(key string)                           { e.cl.Get(key) }
func (e networkExecutor) del(key string)                           { e.cl.Del(key) }

func main() {
	app := &cli.App{
		Name:  "ripplekv-bench",
		Usage: "replay a benchmark workload file against ripplekv",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "workload file generated by ripplekv-benchgen", Required: true},
			&cli.StringFlag{Name: "target", Usage: "memory (in-process store) or network (RESP-2 server)", Value: "memory"},
			&cli.StringFlag{Name: "host", Usage: "server host, when --target=network", Value: "localhost"},
			&cli.IntFlag{Name: "port", Usage: "server port, when --target=network", Value: config.DefaultServerPort},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ripplekv-bench:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	exec, cleanup, err := buildExecutor(c)
	if err != nil {
		return err
	}
	defer cleanup()

	f, err := os.Open(c.String("file"))
	if err != nil {
		return fmt.Errorf("opening workload file: %w", err)
	}
	defer f.Close()

	var setStats, getStats, delStats opStats
	start := time.Now()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens := parseLine(line)
		if len(tokens) == 0 {
			continue
		}
		runOp(exec, tokens, &setStats, &getStats, &delStats)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading workload file: %w", err)
	}

	totalTime := time.Since(start)
	totalOps := setStats.count() + getStats.count() + delStats.count()
	printReport(c.String("file"), totalOps, totalTime, setStats, getStats, delStats)
	return nil
}

func buildExecutor(c *cli.Context) (executor, func(), error) {
	switch c.String("target") {
	case "memory":
		kv := store.New(store.Options{})
		return memoryExecutor{kv: kv}, func() { kv.Close() }, nil
	case "network":
		addr := fmt.Sprintf("%s:%d", c.String("host"), c.Int("port"))
		cl, err := client.New(config.ClientConfig{
			Address:         addr,
			ConnTimeoutSecs: config.DefaultConnTimeoutSec,
			RetryAttempts:   config.DefaultRetryAttempts,
		})
		if err != nil {
			return nil, nil, err
		}
		return networkExecutor{cl: cl}, func() { cl.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown target %q, want memory or network", c.String("target"))
	}
}

func runOp(exec executor, tokens []string, setStats, getStats, delStats *opStats) {
	verb := strings.ToUpper(tokens[0])
	switch {
	case verb == "SET" && len(tokens) >= 3:
		ttl := time.Duration(0)
		if len(tokens) >= 5 && strings.ToUpper(tokens[3]) == "EX" {
			if seconds, err := strconv.Atoi(tokens[4]); err == nil {
				ttl = time.Duration(seconds) * time.Second
			}
		}
		start := time.Now()
		exec.set(tokens[1], tokens[2], ttl)
		setStats.add(time.Since(start))

	case verb == "GET" && len(tokens) >= 2:
		start := time.Now()
		exec.get(tokens[1])
		getStats.add(time.Since(start))

	case verb == "DEL" && len(tokens) >= 2:
		start := time.Now()
		exec.del(tokens[1])
		delStats.add(time.Since(start))
	}
}

func printReport(file string, totalOps int, totalTime time.Duration, setStats, getStats, delStats opStats) {
	fmt.Println("======== RIPPLEKV BENCHMARK RESULTS ========")
	fmt.Printf("Benchmark file: %s\n", file)
	fmt.Printf("Total operations: %d\n", totalOps)
	fmt.Printf("Total time: %.2f ms\n", float64(totalTime.Microseconds())/1000)
	if totalTime > 0 {
		fmt.Printf("Operations per second: %.2f ops/sec\n\n", float64(totalOps)/totalTime.Seconds())
	}

	fmt.Println("Operation breakdown:")
	printBreakdown("SET", setStats.count(), totalOps)
	printBreakdown("GET", getStats.count(), totalOps)
	printBreakdown("DEL", delStats.count(), totalOps)

	fmt.Println("\nLatency statistics (ms):")
	fmt.Println("                    Avg       P95")
	printLatency("SET", setStats)
	printLatency("GET", getStats)
	printLatency("DEL", delStats)
}

func printBreakdown(name string, count, total int) {
	pct := 0.0
	if total > 0 {
		pct = 100 * float64(count) / float64(total)
	}
	fmt.Printf("%s: %d operations (%.1f%%)\n", name, count, pct)
}

func printLatency(name string, stats opStats) {
	toMillis := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	fmt.Printf("%-4s %10.3f %10.3f\n", name+":", toMillis(stats.avg()), toMillis(stats.p95()))
}

// parseLine tokenizes one workload line, treating a double-quoted run
// as a single argument, matching ripplekv-benchgen's output format.
func parseLine(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ' ' && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}
