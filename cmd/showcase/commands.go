package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/dbdemo/showcase/internal/client"
	"github.com/dbdemo/showcase/internal/config"
	"github.com/dbdemo/showcase/internal/model"
	"github.com/dbdemo/showcase/internal/poller"
	"github.com/dbdemo/showcase/internal/service"
	"github.com/dbdemo/showcase/internal/session"
)

// errReported fails the command without printing anything more
var errReported = errors.New("reported")

// localSession is the id of the CLI's single session slot
const localSession = "local"

type command func(ctx context.Context, app *app, args []string) error

var commands = map[string]command{
	"templates": runTemplates,
	"submit":    runSubmit,
	"status":    runStatus,
	"watch":     runWatch,
	"download":  runDownload,
	"share":     runShare,
	"notify":    runNotify,
}

type app struct {
	cfg    *config.Config
	client *client.JobClient
	store  session.Store
	stdout io.Writer
	stderr io.Writer
}

func newApp(cfg *config.Config, stdout, stderr io.Writer) *app {
	return &app{
		cfg:    cfg,
		client: client.NewJobClient(&cfg.Remote),
		store:  session.NewFileStore(cfg.Session.File),
		stdout: stdout,
		stderr: stderr,
	}
}

func (a *app) session(ctx context.Context) (*model.Session, error) {
	return session.LoadOrNew(ctx, a.store, localSession)
}

func (a *app) results(policy poller.Policy) *service.ResultService {
	return service.NewResultService(poller.New(a.client, policy), a.client, a.client, nil)
}

func (a *app) flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func runTemplates(ctx context.Context, a *app, args []string) error {
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tTITLE\tCOLOR\tWORKFLOW")
	for i, t := range model.Templates() {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i, t.ID, t.Title, t.AccentColor, t.Workflow)
	}
	return w.Flush()
}

func runSubmit(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("submit")
	templateKey := fs.StringP("template", "t", "0", "template id, workflow or index")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("submit needs exactly one image path")
	}

	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	sess, err := a.session(ctx)
	if err != nil {
		return err
	}

	svc := service.NewGenerateService(a.client, a.store)
	resp, err := svc.Generate(ctx, sess, *templateKey, &model.UploadRequest{
		Filename: filepath.Base(path),
		Data:     data,
	})
	if err != nil {
		if client.IsNetworkError(err) || errors.Is(err, client.ErrMissingJobID) {
			return errors.New(model.TextSubmitFailed + err.Error())
		}
		return err
	}

	fmt.Fprintln(a.stdout, resp.JobID)
	if resp.Position != nil {
		fmt.Fprintf(a.stderr, "position in queue: %d\n", *resp.Position)
	}
	if resp.EstimatedWait != nil {
		fmt.Fprintf(a.stderr, "estimated wait: %s\n", time.Duration(*resp.EstimatedWait*float64(time.Second)).Round(time.Second))
	}
	return nil
}

func runStatus(ctx context.Context, a *app, args []string) error {
	sess, err := a.session(ctx)
	if err != nil {
		return err
	}
	resp, err := a.results(poller.PolicyFromConfig(&a.cfg.Poll)).Snapshot(ctx, sess)
	if err != nil {
		return errors.New(model.TextPollFailed)
	}
	fmt.Fprintln(a.stdout, resp.Text)
	if resp.Status.ImageURL != "" {
		fmt.Fprintln(a.stdout, resp.Status.ImageURL)
	}
	return nil
}

func runWatch(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("watch")
	interval := fs.Duration("interval", a.cfg.Poll.Interval, "delay between polls")
	maxAttempts := fs.Int("max-attempts", a.cfg.Poll.MaxAttempts, "give up after N polls (0 = never)")
	maxDuration := fs.Duration("max-duration", a.cfg.Poll.MaxDuration, "give up after this long (0 = never)")
	backoff := fs.String("backoff", a.cfg.Poll.Backoff, "fixed or exponential")
	if err := fs.Parse(args); err != nil {
		return err
	}

	policy := poller.PolicyFromConfig(&config.PollConfig{
		Interval:    *interval,
		MaxAttempts: *maxAttempts,
		MaxDuration: *maxDuration,
		Backoff:     *backoff,
		MaxInterval: a.cfg.Poll.MaxInterval,
	})

	sess, err := a.session(ctx)
	if err != nil {
		return err
	}

	h := a.results(policy).Watch(ctx, sess, func(u model.StatusUpdate) {
		fmt.Fprintln(a.stdout, u.Text)
	})
	final, err := h.Wait()
	if err != nil {
		var sre *poller.ServerReportedError
		var use *poller.UnknownStatusError
		if errors.As(err, &sre) || errors.As(err, &use) ||
			errors.Is(err, poller.ErrNoJob) || errors.Is(err, poller.ErrPollLimit) {
			// the observer already printed the status text
			return errReported
		}
		return err
	}
	fmt.Fprintln(a.stdout, final.ImageURL)
	return nil
}

func runDownload(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("download")
	dir := fs.StringP("output", "o", ".", "directory to save into")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, err := a.session(ctx)
	if err != nil {
		return err
	}

	file, err := a.results(poller.PolicyFromConfig(&a.cfg.Poll)).Download(ctx, sess)
	if err != nil {
		switch {
		case errors.Is(err, poller.ErrNoJob):
			return errors.New(model.TextNoJob)
		case errors.Is(err, service.ErrImageNotReady):
			return errors.New(model.TextImageNotFound)
		default:
			return fmt.Errorf("%s (%w)", model.TextDownloadFailed, err)
		}
	}

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(*dir, file.Filename)
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, path)
	return nil
}

func runShare(ctx context.Context, a *app, args []string) error {
	sess, err := a.session(ctx)
	if err != nil {
		return err
	}
	resp, err := a.results(poller.PolicyFromConfig(&a.cfg.Poll)).Share(ctx, sess)
	if err != nil {
		if errors.Is(err, service.ErrImageNotReady) {
			return errors.New(model.TextShareMissing)
		}
		return err
	}
	fmt.Fprintln(a.stdout, resp.URL)
	return nil
}

func runNotify(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("notify needs exactly one phone number")
	}
	sess, err := a.session(ctx)
	if err != nil {
		return err
	}
	if err := a.results(poller.DefaultPolicy()).Notify(ctx, sess, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "PHONE_REGISTERED")
	return nil
}
