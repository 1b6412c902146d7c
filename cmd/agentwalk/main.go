// Command agentwalk runs the demonstration workflow and manages its
// checkpoint history.
//
// Usage:
//
//	agentwalk demo [--conversation-id id] [flags]
//	agentwalk checkpoints list [--conversation-id id] [flags]
//	agentwalk checkpoints rollback [--conversation-id id] [--sequence n] [flags]
//
// Shared flags select the checkpoint backend (--store memory|sqlite|mysql),
// the policy decision endpoint (--policy-url, default allow-all when
// unset), a local deny list (--deny node,node), and JSONL event output
// (--json). The demo exits 0 only when the run completes; every other
// terminal status exits 1 with the reason on stderr.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/dshills/agentwalk/graph"
	"github.com/dshills/agentwalk/graph/emit"
	"github.com/dshills/agentwalk/policy"
	"github.com/dshills/agentwalk/store"
	"github.com/dshills/agentwalk/supervisor"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// options holds the flags shared by every subcommand.
type options struct {
	conversationID string
	storeKind      string
	sqlitePath     string
	mysqlDSN       string
	policyURL      string
	deny           string
	jsonEvents     bool
	sequence       int
	yes            bool
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.conversationID, "conversation-id", "", "conversation identifier")
	fs.StringVar(&o.storeKind, "store", "sqlite", "checkpoint backend: memory, sqlite, or mysql")
	fs.StringVar(&o.sqlitePath, "sqlite-path", "agentwalk.db", "sqlite database path")
	fs.StringVar(&o.mysqlDSN, "mysql-dsn", "", "mysql DSN (required with --store mysql)")
	fs.StringVar(&o.policyURL, "policy-url", "", "policy decision endpoint; unset runs with a static allow")
	fs.StringVar(&o.deny, "deny", "", "comma-separated node ids to deny locally")
	fs.BoolVar(&o.jsonEvents, "json", false, "emit events as JSONL instead of text")
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "demo":
		return runDemo(ctx, args[1:], stdout, stderr)
	case "checkpoints":
		if len(args) < 2 {
			fmt.Fprintln(stderr, "usage: agentwalk checkpoints <list|rollback> [flags]")
			return 2
		}
		switch args[1] {
		case "list":
			return runList(ctx, args[2:], stdout, stderr)
		case "rollback":
			return runRollback(ctx, args[2:], stdin, stdout, stderr)
		default:
			fmt.Fprintf(stderr, "unknown checkpoints subcommand: %s\n", args[1])
			return 2
		}
	case "-h", "--help", "help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[0])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "agentwalk - policy-gated workflow engine")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  demo                   run the demonstration workflow")
	fmt.Fprintln(w, "  checkpoints list       list checkpoints for a conversation")
	fmt.Fprintln(w, "  checkpoints rollback   restore state from a checkpoint")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'agentwalk <command> -h' for command flags.")
}

// buildStore opens the selected checkpoint backend. The returned
// closer is a no-op for the memory backend.
func buildStore(opts *options) (store.Store[*graph.WorkflowState], func(), error) {
	switch opts.storeKind {
	case "memory":
		return store.NewMemStore[*graph.WorkflowState](), func() {}, nil
	case "sqlite":
		st, err := store.NewSQLiteStore[*graph.WorkflowState](opts.sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	case "mysql":
		if opts.mysqlDSN == "" {
			return nil, nil, errors.New("--mysql-dsn is required with --store mysql")
		}
		st, err := store.NewMySQLStore[*graph.WorkflowState](opts.mysqlDSN)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", opts.storeKind)
	}
}

// buildEnforcer assembles the policy chain: optional local deny list
// in front of either the HTTP decision authority or a static allow.
func buildEnforcer(opts *options) policy.Enforcer {
	var enforcer policy.Enforcer
	if opts.policyURL != "" {
		enforcer = policy.NewHTTPEnforcer(policy.Config{URL: opts.policyURL})
	} else {
		enforcer = policy.Static{Allow: true, Reason: "no decision endpoint configured"}
	}
	if opts.deny != "" {
		var nodes []string
		for _, id := range strings.Split(opts.deny, ",") {
			if id = strings.TrimSpace(id); id != "" {
				nodes = append(nodes, id)
			}
		}
		enforcer = policy.NewDenyList(enforcer, nodes...)
	}
	return enforcer
}

func buildSupervisor(opts *options, stderr io.Writer) (*supervisor.Supervisor, func(), error) {
	st, closeStore, err := buildStore(opts)
	if err != nil {
		return nil, nil, err
	}
	sup, err := supervisor.New(supervisor.Config{
		Store:    st,
		Enforcer: buildEnforcer(opts),
		Emitter:  emit.NewLogEmitter(stderr, opts.jsonEvents),
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return sup, closeStore, nil
}

func runDemo(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := &options{}
	opts.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if opts.conversationID == "" {
		opts.conversationID = "demo-1"
	}

	sup, closeStore, err := buildSupervisor(opts, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer closeStore()

	g, err := supervisor.DemoGraph()
	if err != nil {
		fmt.Fprintf(stderr, "error: build demo graph: %v\n", err)
		return 1
	}

	result, err := sup.Run(ctx, g, opts.conversationID, nil)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "status: %s\n", result.Status)
	fmt.Fprintf(stdout, "reason: %s\n", result.Reason)
	fmt.Fprintf(stdout, "steps:  %d\n", result.Steps)
	fmt.Fprintf(stdout, "trace:  %s\n", strings.Join(result.State.Trace, " -> "))
	for _, msg := range result.State.Messages {
		fmt.Fprintf(stdout, "  [%s] %s -> %s: %v\n", msg.Performative, msg.Sender, msg.Receiver, msg.Content)
	}
	if result.Status != graph.StatusCompleted {
		if result.Err != nil {
			fmt.Fprintf(stderr, "run did not complete: %v\n", result.Err)
		}
		return 1
	}
	return 0
}

func runList(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("checkpoints list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := &options{}
	opts.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if opts.conversationID == "" {
		opts.conversationID = "demo-1"
	}

	sup, closeStore, err := buildSupervisor(opts, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer closeStore()

	if code := printCheckpoints(ctx, sup, opts.conversationID, stdout, stderr); code != 0 {
		return code
	}
	return 0
}

func printCheckpoints(ctx context.Context, sup *supervisor.Supervisor, conversationID string, stdout, stderr io.Writer) int {
	cps, err := sup.ListCheckpoints(ctx, conversationID)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if len(cps) == 0 {
		fmt.Fprintf(stdout, "no checkpoints for conversation %q\n", conversationID)
		return 0
	}
	fmt.Fprintf(stdout, "checkpoints for %s:\n", conversationID)
	for _, cp := range cps {
		label := cp.Label
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(stdout, "  seq=%d  created=%s  label=%s\n",
			cp.Seq, cp.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), label)
	}
	return 0
}

func runRollback(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("checkpoints rollback", flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := &options{}
	opts.register(fs)
	fs.IntVar(&opts.sequence, "sequence", 0, "checkpoint sequence to restore (0 prompts, or latest with --yes)")
	fs.BoolVar(&opts.yes, "yes", false, "skip the interactive prompt; with sequence 0, restore the latest")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	reader := bufio.NewReader(stdin)
	if opts.conversationID == "" {
		id, err := prompt(reader, stdout, "conversation id: ")
		if err != nil || id == "" {
			fmt.Fprintln(stderr, "error: conversation id is required")
			return 1
		}
		opts.conversationID = id
	}

	sup, closeStore, err := buildSupervisor(opts, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer closeStore()

	if opts.sequence == 0 && !opts.yes {
		if code := printCheckpoints(ctx, sup, opts.conversationID, stdout, stderr); code != 0 {
			return code
		}
		answer, err := prompt(reader, stdout, "sequence to restore (empty for latest): ")
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		if answer != "" {
			seq, err := strconv.Atoi(answer)
			if err != nil {
				fmt.Fprintf(stderr, "error: invalid sequence %q\n", answer)
				return 1
			}
			opts.sequence = seq
		}
	}

	state, err := sup.Rollback(ctx, opts.conversationID, opts.sequence)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "error: encode state: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "%s\n", data)
	return 0
}

func prompt(reader *bufio.Reader, stdout io.Writer, label string) (string, error) {
	fmt.Fprint(stdout, label)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
