// Command ripplekv-repl is a direct, in-process read-eval-print loop
// over a store.Store: no network, no RESP-2, just SET/GET/DEL typed
// at a prompt. It exists for local experimentation and for exercising
// the store without standing up a server.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ripplekv/ripplekv/pkg/store"
)

func main() {
	kv := store.New(store.Options{})
	defer kv.Close()

	fmt.Println("ripplekv repl: SET <key> \"<value>\" [EX <seconds>] | GET <key> | DEL <key>")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		processCommand(kv, scanner.Text())
	}
}

func processCommand(kv *store.Store, input string) {
	tokens := tokenize(input)
	if len(tokens) == 0 {
		return
	}
	verb := strings.ToUpper(tokens[0])

	switch verb {
	case "SET":
		if len(tokens) < 3 {
			fmt.Println("usage: SET <key> \"<value>\" [EX <seconds>]")
			return
		}
		ttl := store.NoTTL
		if len(tokens) >= 5 && strings.ToUpper(tokens[3]) == "EX" {
			seconds, err := strconv.Atoi(tokens[4])
			if err != nil || seconds < 0 {
				fmt.Println("invalid expire time")
				return
			}
			ttl = time.Duration(seconds) * time.Second
		}
		kv.Set(tokens[1], []byte(tokens[2]), ttl)
		fmt.Println("OK")

	case "GET":
		if len(tokens) != 2 {
			fmt.Println("usage: GET <key>")
			return
		}
		v, ok := kv.Get(tokens[1])
		if !ok {
			fmt.Println("(nil)")
			return
		}
		fmt.Printf("%q\n", string(v))

	case "DEL":
		if len(tokens) != 2 {
			fmt.Println("usage: DEL <key>")
			return
		}
		if kv.Del(tokens[1]) {
			fmt.Println("(integer) 1")
		} else {
			fmt.Println("(integer) 0")
		}

	default:
		fmt.Printf("unknown command %q\n", tokens[0])
	}
}

// tokenize splits input on whitespace, treating a run surrounded by
// single or double quotes as one token so values containing spaces
// can be entered.
func tokenize(input string) []string {
	var tokens []string
	var cur strings.Builder
	var quote rune
	inQuotes := false

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range input {
		switch {
		case inQuotes:
			if r == quote {
				inQuotes = false
				flush()
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			inQuotes = true
			quote = r
		case r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}
