package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"
)

type fakeExec struct {
	loggedIn bool

	calls []string
	args  []string
}

func (f *fakeExec) record(name string, args ...string) {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args...)
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Login(ctx context.Context) error {
	f.record("login")
	f.loggedIn = true
	return nil
}
func (f *fakeExec) Logout(ctx context.Context) error {
	f.record("logout")
	f.loggedIn = false
	return nil
}
func (f *fakeExec) List(ctx context.Context) error       { f.record("list"); return nil }
func (f *fakeExec) ListCached(ctx context.Context) error { f.record("cached"); return nil }
func (f *fakeExec) AddFeed(ctx context.Context) error    { f.record("add"); return nil }
func (f *fakeExec) EditFeed(ctx context.Context, arg string) error {
	f.record("edit", arg)
	return nil
}
func (f *fakeExec) DeleteFeed(ctx context.Context, arg string) error {
	f.record("delete", arg)
	return nil
}
func (f *fakeExec) Views(ctx context.Context, arg string) error {
	f.record("views", arg)
	return nil
}
func (f *fakeExec) Data(ctx context.Context, feedArg, pageArg string) error {
	f.record("data", feedArg, pageArg)
	return nil
}
func (f *fakeExec) Items(ctx context.Context, viewArg, pageArg string) error {
	f.record("items", viewArg, pageArg)
	return nil
}
func (f *fakeExec) NextPage(ctx context.Context) error { f.record("next"); return nil }
func (f *fakeExec) PrevPage(ctx context.Context) error { f.record("prev"); return nil }
func (f *fakeExec) OpenFile(ctx context.Context, arg string) error {
	f.record("open", arg)
	return nil
}

func TestRunREPL_LoginFlowAndCommands(t *testing.T) {
	origPrint := printlnFn
	printlnFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() { printlnFn = origPrint })

	input := strings.NewReader(strings.Join([]string{
		"help",
		"login",
		"help",
		"list",
		"views 2",
		"items 1 3",
		"next",
		"prev",
		"open 4",
		"foobar",
		"exit",
	}, "\n"))

	exec := &fakeExec{loggedIn: false}
	sc := bufio.NewScanner(input)

	runREPL(context.Background(), exec, func() string { return "status" }, sc)

	wantOrder := []string{"login", "list", "views", "items", "next", "prev", "open"}
	idx := 0
	for _, c := range exec.calls {
		if idx < len(wantOrder) && c == wantOrder[idx] {
			idx++
		}
	}
	if idx != len(wantOrder) {
		t.Fatalf("commands order mismatch: got %v, want subseq %v", exec.calls, wantOrder)
	}

	wantArgs := []string{"2", "1", "3", "4"}
	if len(exec.args) != len(wantArgs) {
		t.Fatalf("args mismatch: got %v, want %v", exec.args, wantArgs)
	}
	for i, arg := range wantArgs {
		if exec.args[i] != arg {
			t.Fatalf("args mismatch: got %v, want %v", exec.args, wantArgs)
		}
	}
}

func TestRunREPL_UsageAndQuit(t *testing.T) {
	origPrint := printlnFn
	printlnFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() { printlnFn = origPrint })

	input := strings.NewReader("views\ndata\nitems\nedit\ndelete\nopen\nquit\n")
	exec := &fakeExec{loggedIn: true}
	sc := bufio.NewScanner(input)

	runREPL(context.Background(), exec, func() string { return "s" }, sc)

	if len(exec.calls) != 0 {
		t.Fatalf("unexpected calls: %v", exec.calls)
	}
}
