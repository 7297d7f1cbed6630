// escrowctl is the reviewer's admin tool: confirm or reject funding intents,
// settle payouts, and print the ledger overview over the HTTP API.
//
// Usage:
//
//	escrowctl -addr http://localhost:8080 -token <jwt> confirm-funding <intentID> [-notes ...]
//	escrowctl -addr ... -token ... reject-funding <intentID> -notes ...
//	escrowctl -addr ... -token ... settle <payoutID> [-ref ...]
//	escrowctl -addr ... -token ... overview
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ivmelnik/escrowd/internal/client"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	token := flag.String("token", "", "reviewer bearer token")
	flag.Parse()

	if err := run(context.Background(), *addr, *token, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "escrowctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr, token string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command: confirm-funding | reject-funding | settle | overview")
	}

	api := client.New(addr, token)
	command, rest := args[0], args[1:]

	var (
		raw json.RawMessage
		err error
	)
	switch command {
	case "confirm-funding":
		id, notes, perr := idAndNote(command, rest, "notes", "reviewer notes (optional)")
		if perr != nil {
			return perr
		}
		raw, err = api.ConfirmFunding(ctx, id, notes)
	case "reject-funding":
		id, notes, perr := idAndNote(command, rest, "notes", "reviewer notes (required by the server)")
		if perr != nil {
			return perr
		}
		raw, err = api.RejectFunding(ctx, id, notes)
	case "settle":
		id, ref, perr := idAndNote(command, rest, "ref", "settlement transaction reference (optional)")
		if perr != nil {
			return perr
		}
		raw, err = api.SettlePayout(ctx, id, ref)
	case "overview":
		raw, err = api.Overview(ctx)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		return err
	}

	return printJSON(os.Stdout, raw)
}

// idAndNote parses "<id> [-flagName value]" for the subcommands that take an
// entity id plus one optional string flag.
func idAndNote(command string, args []string, flagName, usage string) (id, value string, err error) {
	if len(args) == 0 || args[0] == "" {
		return "", "", fmt.Errorf("%s: missing id argument", command)
	}
	id = args[0]

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	v := fs.String(flagName, "", usage)
	if err := fs.Parse(args[1:]); err != nil {
		return "", "", err
	}
	return id, *v, nil
}

func printJSON(w *os.File, raw json.RawMessage) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		_, werr := w.Write(raw)
		return werr
	}
	pretty.WriteByte('\n')
	_, err := w.Write(pretty.Bytes())
	return err
}
