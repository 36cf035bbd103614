// Command fakeworker speaks the worker stdio protocol for integration tests.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func main() {
	mode := "echo"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	out := json.NewEncoder(os.Stdout)

	switch mode {
	case "burst":
		count := 10
		if len(os.Args) > 2 {
			if n, err := strconv.Atoi(os.Args[2]); err == nil {
				count = n
			}
		}
		for i := 0; i < count; i++ {
			raw, _ := json.Marshal(i)
			_ = out.Encode(frame{Type: "message", Payload: raw})
		}
		os.Exit(0)

	case "fail":
		_ = out.Encode(frame{Type: "error", Error: "steam is not running"})
		fmt.Fprintln(os.Stderr, "fatal: giving up")
		os.Exit(2)

	case "echo":
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			var in frame
			if err := json.Unmarshal(scanner.Bytes(), &in); err != nil {
				_ = out.Encode(frame{Type: "error", Error: err.Error()})
				continue
			}
			var text string
			if json.Unmarshal(in.Payload, &text) == nil && text == "exit" {
				os.Exit(0)
			}
			_ = out.Encode(frame{Type: "message", Payload: in.Payload})
		}
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", mode)
		os.Exit(64)
	}
}
