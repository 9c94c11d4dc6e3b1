// Command ripplekv-cli is an interactive RESP-2 client for talking to
// a running ripplekv-server, in the spirit of redis-cli: type a
// command, see its reply, repeat.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ripplekv/ripplekv/pkg/client"
	"github.com/ripplekv/ripplekv/pkg/config"
)

func main() {
	app := &cli.App{
		Name:  "ripplekv-cli",
		Usage: "interactive client for a ripplekv server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Aliases: []string{"H"},
				Usage:   "server host",
				EnvVars: []string{"RIPPLEKV_HOST"},
				Value:   "localhost",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "server port",
				EnvVars: []string{"RIPPLEKV_PORT"},
				Value:   config.DefaultServerPort,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ripplekv-cli:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	addr := fmt.Sprintf("%s:%d", c.String("host"), c.Int("port"))
	cl, err := client.New(config.ClientConfig{
		Address:         addr,
		ConnTimeoutSecs: config.DefaultConnTimeoutSec,
		RetryAttempts:   config.DefaultRetryAttempts,
	})
	if err != nil {
		return err
	}
	defer cl.Close()

	fmt.Printf("connected to %s\n", addr)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("ripplekv> ")
		if !scanner.Scan() {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}
		runLine(cl, line)
	}
}

func runLine(cl *client.Client, line string) {
	fields := splitArgs(line)
	if len(fields) == 0 {
		return
	}

	verb := strings.ToUpper(fields[0])
	args := fields[1:]

	switch verb {
	case "SET":
		if len(args) < 2 {
			fmt.Println("usage: SET key value [EX seconds]")
			return
		}
		ttl := time.Duration(0)
		if len(args) >= 4 && strings.ToUpper(args[2]) == "EX" {
			seconds, err := strconv.Atoi(args[3])
			if err != nil {
				fmt.Println("invalid expire seconds:", args[3])
				return
			}
			ttl = time.Duration(seconds) * time.Second
		}
		if err := cl.Set(args[0], []byte(args[1]), ttl); err != nil {
			fmt.Println("(error)", err)
			return
		}
		fmt.Println("OK")

	case "GET":
		if len(args) != 1 {
			fmt.Println("usage: GET key")
			return
		}
		v, ok, err := cl.Get(args[0])
		if err != nil {
			fmt.Println("(error)", err)
			return
		}
		if !ok {
			fmt.Println("(nil)")
			return
		}
		fmt.Printf("%q\n", string(v))

	case "DEL":
		if len(args) != 1 {
			fmt.Println("usage: DEL key")
			return
		}
		ok, err := cl.Del(args[0])
		if err != nil {
			fmt.Println("(error)", err)
			return
		}
		if ok {
			fmt.Println("(integer) 1")
		} else {
			fmt.Println("(integer) 0")
		}

	default:
		fmt.Printf("unknown command %q\n", fields[0])
	}
}

// splitArgs tokenizes a command line, treating a double-quoted run as
// a single argument so values containing spaces can be entered.
func splitArgs(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false

	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
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
	return fields
}
