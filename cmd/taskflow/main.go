// Command taskflow is a terminal client for the TaskFlow API. It signs in
// against the identity provider with PKCE, keeps the session in a local
// file, refreshes it in the background and manages the caller's tasks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/phrazzld/taskflow/internal/client"
	"github.com/phrazzld/taskflow/internal/config"
	"github.com/phrazzld/taskflow/internal/platform/keycloak"
	"github.com/phrazzld/taskflow/internal/platform/logger"
	"github.com/phrazzld/taskflow/internal/session"
)

// Exit codes.
const (
	exitOK      = 0
	exitError   = 1
	exitUsage   = 2
	exitNoLogin = 3
)

const defaultCallbackAddr = "localhost:8085"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	flags := flag.NewFlagSet("taskflow", flag.ContinueOnError)
	flags.SetOutput(errOut)
	apiURL := flags.String("api", "", "TaskFlow API base URL (default http://localhost:<port>/api)")
	sessionPath := flags.String("session", defaultSessionPath(), "file holding the signed-in session")
	callbackAddr := flags.String("callback", defaultCallbackAddr, "address the login callback listener binds")
	configPath := flags.String("config", "", "YAML config file (default: taskflow.yaml if present)")
	verbose := flags.Bool("v", false, "log debug output to stderr")
	flags.Usage = func() { printUsage(errOut, flags) }

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if flags.NArg() == 0 {
		printUsage(errOut, flags)
		return exitUsage
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(errOut, "error: failed to load .env file: %v\n", err)
		return exitError
	}
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitError
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logger.New(errOut, level)

	base := *apiURL
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d/api", cfg.Server.Port)
	}

	kc := keycloak.New(cfg.Keycloak, keycloak.WithRedirectURL(callbackURL(*callbackAddr)))
	sess := session.New(kc, session.NewFileTokenStore(*sessionPath), log)
	tasks := client.New(base, sess, client.WithLogger(log))

	c := &cli{
		session:      sess,
		tasks:        tasks,
		callbackAddr: *callbackAddr,
		out:          out,
		errOut:       errOut,
		logger:       log,
	}
	return c.dispatch(ctx, flags.Arg(0), flags.Args()[1:])
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "taskflow", "session.json")
}

func callbackURL(addr string) string {
	return "http://" + addr + "/callback"
}

func printUsage(w io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(w, "usage: taskflow [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, cmd := range commandTable {
		fmt.Fprintf(w, "  %-8s %s\n", cmd.name, cmd.synopsis)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "flags:")
	flags.PrintDefaults()
}
