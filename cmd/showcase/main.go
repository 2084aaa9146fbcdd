// Command showcase drives the image-generation queue from a terminal: pick a
// template, submit a photo, watch the job and fetch the result.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dbdemo/showcase/internal/config"
)

const usage = `Usage: showcase [global flags] <command> [flags] [args]

Commands:
  templates                         list the template catalog
  submit --template <id|index> IMG  submit a photo and remember the job
  status                            poll the remembered job once
  watch                             poll the remembered job until it finishes
  download [-o DIR]                 save the finished image
  share                             print a link to the finished image
  notify PHONE                      text PHONE when the job finishes

Global flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	v := viper.New()

	global := pflag.NewFlagSet("showcase", pflag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	global.String("base-url", "", "queue API base URL (REMOTE_BASE_URL)")
	global.Int("timeout", 0, "HTTP timeout in seconds (REMOTE_TIMEOUT)")
	global.String("session-file", "", "where the current job is remembered (SESSION_FILE)")
	verbose := global.BoolP("verbose", "v", false, "log HTTP traffic to stderr")
	global.Usage = func() {
		fmt.Fprint(stderr, usage)
		global.PrintDefaults()
	}

	if err := global.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}
	_ = v.BindPFlag("remote.base_url", global.Lookup("base-url"))
	_ = v.BindPFlag("remote.timeout", global.Lookup("timeout"))
	_ = v.BindPFlag("session.file", global.Lookup("session-file"))

	log.SetOutput(io.Discard)
	if *verbose {
		log.SetOutput(stderr)
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 2
	}

	cfg, err := config.LoadFrom(v)
	if err != nil {
		fmt.Fprintf(stderr, "showcase: %v\n", err)
		return 1
	}

	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "showcase: unknown command %q\n\n", rest[0])
		global.Usage()
		return 2
	}

	app := newApp(cfg, stdout, stderr)
	if err := cmd(ctx, app, rest[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		if errors.Is(err, errReported) {
			return 1
		}
		fmt.Fprintf(stderr, "showcase: %v\n", err)
		return 1
	}
	return 0
}
