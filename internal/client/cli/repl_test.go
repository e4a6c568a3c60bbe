package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	calls []string
	args  [][]string
	err   error
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	return f.err
}

func (f *fakeExec) List(ctx context.Context) error { return f.record("list", nil) }
func (f *fakeExec) Join(ctx context.Context, args []string) error {
	return f.record("join", args)
}
func (f *fakeExec) Leave(ctx context.Context, args []string) error {
	return f.record("leave", args)
}
func (f *fakeExec) Send(ctx context.Context, args []string) error {
	return f.record("send", args)
}
func (f *fakeExec) SendFile(ctx context.Context, args []string) error {
	return f.record("sendfile", args)
}
func (f *fakeExec) History(ctx context.Context, args []string) error {
	return f.record("history", args)
}
func (f *fakeExec) Sync(ctx context.Context, args []string) error {
	return f.record("sync", args)
}
func (f *fakeExec) Read(ctx context.Context, args []string) error {
	return f.record("read", args)
}
func (f *fakeExec) Recall(ctx context.Context, args []string) error {
	return f.record("recall", args)
}
func (f *fakeExec) Members(ctx context.Context, args []string) error {
	return f.record("members", args)
}
func (f *fakeExec) Status(ctx context.Context, args []string) error {
	return f.record("status", args)
}
func (f *fakeExec) DM(ctx context.Context, args []string) error { return f.record("dm", args) }
func (f *fakeExec) Group(ctx context.Context, args []string) error {
	return f.record("group", args)
}

func capturePrint(t *testing.T) *[]string {
	t.Helper()
	var out []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		out = append(out, strings.TrimSpace(fmt.Sprintln(a...)))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &out
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	capturePrint(t)

	input := strings.NewReader(strings.Join([]string{
		"help",
		"list",
		"join 3",
		"send 3 hello there",
		"file 3 /tmp/a.pdf",
		"audio 3 /tmp/b.ogg",
		"history 3 10",
		"sync 3",
		"read 3 40",
		"recall 41",
		"members 3",
		"status 41",
		"dm 2",
		"group team 2 3",
		"leave 3",
		"",
		"exit",
		"list",
	}, "\n"))

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "s" }, bufio.NewScanner(input))

	assert.Equal(t, []string{"list", "join", "send", "sendfile", "sendfile", "history", "sync", "read",
		"recall", "members", "status", "dm", "group", "leave"}, exec.calls)
	assert.Equal(t, []string{"3", "hello", "there"}, exec.args[2])
	assert.Equal(t, []string{"file", "3", "/tmp/a.pdf"}, exec.args[3])
	assert.Equal(t, []string{"audio", "3", "/tmp/b.ogg"}, exec.args[4])
}

func TestRunREPL_UsageAndUnknown(t *testing.T) {
	out := capturePrint(t)

	input := strings.NewReader("send 3\nrecall\nfoobar\nquit\n")
	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "s" }, bufio.NewScanner(input))

	assert.Empty(t, exec.calls)
	joined := strings.Join(*out, "\n")
	assert.Contains(t, joined, "Not enough arguments")
	assert.Contains(t, joined, "Unknown command: foobar")
	assert.Contains(t, joined, "Bye!")
}

func TestRunREPL_PrintsHandlerErrors(t *testing.T) {
	out := capturePrint(t)

	exec := &fakeExec{err: errors.New("boom")}
	runREPL(context.Background(), exec, func() string { return "s" }, bufio.NewScanner(strings.NewReader("list\n")))

	assert.Contains(t, strings.Join(*out, "\n"), "Error: boom")
}
