// Command flowkit runs workflow graphs, either as an HTTP service or once
// from a workflow file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kbukum/flowkit/auth"
	"github.com/kbukum/flowkit/config"
	"github.com/kbukum/flowkit/version"
)

const usage = `Usage: flowkit [flags] <command> [args]

Commands:
  serve             start the HTTP service
  run <file>        execute a workflow file (.yaml, .yml or .json) and print the run
  token <subject>   print a bearer token for subject, e.g. the task runner's service subject
  version           print build information

Flags:
`

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run is main without the process exit, returning the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("flowkit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "", "path to config.yml (default: searched in ./cmd/flowkit, ./config and .)")
	envFile := fs.String("env", "", "path to a .env file")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	if cmd == "version" {
		fmt.Fprintln(stdout, "flowkit", version.Get())
		return 0
	}

	cfg, err := loadConfig(*configFile, *envFile)
	if err != nil {
		fmt.Fprintln(stderr, "flowkit:", err)
		return 1
	}

	switch cmd {
	case "serve":
		err = serve(ctx, cfg)
	case "run":
		if len(rest) != 1 {
			fmt.Fprintln(stderr, "flowkit: run takes exactly one workflow file")
			return 2
		}
		err = runFile(ctx, cfg, rest[0], stdout)
	case "token":
		if len(rest) != 1 {
			fmt.Fprintln(stderr, "flowkit: token takes exactly one subject")
			return 2
		}
		var token string
		if token, err = auth.IssueToken(cfg.Auth, rest[0], 0); err == nil {
			fmt.Fprintln(stdout, token)
		}
	default:
		fmt.Fprintf(stderr, "flowkit: unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}
	if err != nil {
		fmt.Fprintln(stderr, "flowkit:", err)
		return 1
	}
	return 0
}

func loadConfig(file, envFile string) (*Config, error) {
	opts := []config.LoaderOption{config.WithEnvPrefix("FLOWKIT")}
	if file != "" {
		opts = append(opts, config.WithConfigFile(file))
	}
	if envFile != "" {
		opts = append(opts, config.WithEnvFile(envFile))
	}
	cfg := &Config{}
	if err := config.LoadConfig("flowkit", cfg, opts...); err != nil {
		return nil, err
	}
	if cfg.Version == "" {
		cfg.Version = version.Get().Version
	}
	return cfg, nil
}
