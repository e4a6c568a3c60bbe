package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. App satisfies
// it; tests use a stub.
type execIface interface {
	List(ctx context.Context) error
	Join(ctx context.Context, args []string) error
	Leave(ctx context.Context, args []string) error
	Send(ctx context.Context, args []string) error
	SendFile(ctx context.Context, args []string) error
	History(ctx context.Context, args []string) error
	Sync(ctx context.Context, args []string) error
	Read(ctx context.Context, args []string) error
	Recall(ctx context.Context, args []string) error
	Members(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
	DM(ctx context.Context, args []string) error
	Group(ctx context.Context, args []string) error
}

const helpText = `Available commands:
  list                              conversations, most recent first
  join <conv> | leave <conv>        subscribe to a conversation's room
  send <conv> <text...>             send a text message
  file <conv> <path> | audio <conv> <path>
  history <conv> [sinceSeq]         messages after a sequence
  sync <conv> [sinceSeq]            same, over the websocket (room required)
  read <conv> <messageId>           mark read up to a message
  recall <messageId> | status <messageId>
  members <conv>
  dm <userId> | group <name> <userId...>
  exit`

// usage holds the minimum argument count per command.
var usage = map[string]int{
	"join": 1, "leave": 1, "send": 2, "file": 2, "audio": 2, "history": 1,
	"sync": 1, "read": 2, "recall": 1, "members": 1, "status": 1, "dm": 1, "group": 1,
}

// runREPL reads commands line by line until EOF, "exit" or "quit". Handler
// errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("chat %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if n, ok := usage[cmd]; ok && len(args) < n {
			printlnFn("Not enough arguments. Type 'help' for usage.")
			continue
		}

		var err error
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "l", "list":
			err = a.List(ctx)
		case "join":
			err = a.Join(ctx, args)
		case "leave":
			err = a.Leave(ctx, args)
		case "send":
			err = a.Send(ctx, args)
		case "file", "audio":
			err = a.SendFile(ctx, append([]string{cmd}, args...))
		case "history":
			err = a.History(ctx, args)
		case "sync":
			err = a.Sync(ctx, args)
		case "read":
			err = a.Read(ctx, args)
		case "recall":
			err = a.Recall(ctx, args)
		case "members":
			err = a.Members(ctx, args)
		case "status":
			err = a.Status(ctx, args)
		case "dm":
			err = a.DM(ctx, args)
		case "group":
			err = a.Group(ctx, args)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}
		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
