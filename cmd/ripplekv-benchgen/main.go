// Command ripplekv-benchgen writes a benchmark workload file: one
// SET/GET/DEL command per line, in the format ripplekv-repl and
// ripplekv-bench both understand. It first seeds a fixed number of
// keys with SET so later GET/DEL operations have something to act on,
// then emits a mix of operations at the requested percentages.
package main

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

const (
	seedKeyCount  = 100
	keySpaceSize  = 1000
	minValueLen   = 5
	maxValueLen   = 50
	valueAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

func main() {
	app := &cli.App{
		Name:  "ripplekv-benchgen",
		Usage: "generate a ripplekv benchmark workload file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file path", Required: true},
			&cli.IntFlag{Name: "operations", Aliases: []string{"n"}, Usage: "number of operations to generate beyond the seed keys", Value: 100000},
			&cli.IntFlag{Name: "get-percent", Usage: "percentage of operations that are GET", Value: 75},
			&cli.IntFlag{Name: "set-percent", Usage: "percentage of operations that are SET", Value: 20},
			&cli.IntFlag{Name: "del-percent", Usage: "percentage of operations that are DEL", Value: 5},
			&cli.Int64Flag{Name: "seed", Usage: "random seed; 0 picks a time-based seed", Value: 1},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ripplekv-benchgen:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	getPct, setPct, delPct := c.Int("get-percent"), c.Int("set-percent"), c.Int("del-percent")
	if getPct+setPct+delPct != 100 {
		return fmt.Errorf("get-percent + set-percent + del-percent must total 100, got %d", getPct+setPct+delPct)
	}

	f, err := os.Create(c.String("out"))
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	seed := c.Int64("seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	for i := 1; i <= seedKeyCount; i++ {
		fmt.Fprintf(w, "SET key%d \"%s\"\n", i, randomValue(rng))
	}

	operations := c.Int("operations")
	for i := 0; i < operations; i++ {
		op := rng.Intn(100) + 1
		key := rng.Intn(keySpaceSize) + 1

		switch {
		case op <= getPct:
			fmt.Fprintf(w, "GET key%d\n", key)
		case op <= getPct+setPct:
			fmt.Fprintf(w, "SET key%d \"%s\"\n", key, randomValue(rng))
		default:
			fmt.Fprintf(w, "DEL key%d\n", key)
		}
	}

	fmt.Printf("generated %s with %d operations\n", c.String("out"), operations+seedKeyCount)
	return nil
}

func randomValue(rng *rand.Rand) string {
	n := minValueLen + rng.Intn(maxValueLen-minValueLen+1)
	b := make([]byte, n)
	for i := range b {
		b[i] = valueAlphabet[rng.Intn(len(valueAlphabet))]
	}
	return string(b)
}
