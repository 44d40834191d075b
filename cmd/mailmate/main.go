// Command mailmate sends a contact-form message through the MailMate relay,
// either once from flags or interactively in the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vdavid/mailmate/internal/api"
	"github.com/vdavid/mailmate/internal/config"
	"github.com/vdavid/mailmate/internal/form"
	"github.com/vdavid/mailmate/internal/logger"
	"github.com/vdavid/mailmate/internal/models"
	"github.com/vdavid/mailmate/internal/notify"
	"github.com/vdavid/mailmate/internal/preview"
	"github.com/vdavid/mailmate/internal/transport"
	"github.com/vdavid/mailmate/internal/tui"
	ws "github.com/vdavid/mailmate/internal/websocket"
)

// maxFeedClients bounds the websocket toast feed.
const maxFeedClients = 10

// attachFlags collects repeated -attach values in order.
type attachFlags []string

func (a *attachFlags) String() string {
	return strings.Join(*a, ",")
}

func (a *attachFlags) Set(value string) error {
	*a = append(*a, value)
	return nil
}

type options struct {
	to      string
	message string
	subject string
	attach  attachFlags
	tui     bool
	dryRun  bool
}

func parseFlags(args []string, output io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("mailmate", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.to, "to", "", "Recipient email address")
	fs.StringVar(&opts.message, "message", "", "Message body")
	fs.StringVar(&opts.subject, "subject", "", "Custom subject (omitted when empty)")
	fs.Var(&opts.attach, "attach", "File to attach (repeatable)")
	fs.BoolVar(&opts.tui, "tui", false, "Run the interactive form")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Print the message instead of sending it")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Error("Invalid arguments: %v", err)
		os.Exit(2)
	}

	cfg, err := config.NewConfig()
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, os.Stdout); err != nil {
		logger.Error("%v", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts *options, stdout io.Writer) error {
	logger.SetDebug(cfg.Environment == "development")

	if opts.tui {
		closeLog, err := redirectLog(cfg.LogFile)
		if err != nil {
			return err
		}
		defer closeLog()
	}

	client, endpoint := newTransport(cfg)

	var sinks notify.Multi
	if !opts.tui {
		sinks = append(sinks, notify.NewTerminalSink(stdout))
	}
	if cfg.NotifyAddr != "" {
		hub := ws.NewHub(maxFeedClients)
		shutdown, err := startFeed(cfg.NotifyAddr, api.NewServer(hub, cfg.APIKey))
		if err != nil {
			return err
		}
		defer shutdown()
		sinks = append(sinks, notify.NewHubSink(hub))
	}

	ctrl := form.NewController(client, sinks, form.Options{
		EndpointURL: endpoint,
		Features: form.Features{
			AttachmentsSupported:   cfg.AttachmentsEnabled,
			CustomSubjectSupported: cfg.SubjectEnabled,
		},
		ClearOnSuccess:     cfg.ClearOnSuccess,
		MaxAttachmentBytes: cfg.MaxAttachmentBytes,
	})

	if opts.tui {
		return tui.Run(ctx, ctrl)
	}

	if err := fillForm(ctrl, opts); err != nil {
		return err
	}

	if opts.dryRun {
		if err := ctrl.Validate(); err != nil {
			return err
		}
		from := cfg.SMTPFrom
		if from == "" {
			from = preview.DefaultFrom
		}
		return preview.Render(stdout, ctrl.Payload(), preview.Options{From: from, DefaultSubject: cfg.DefaultSubject})
	}

	outcome, err := ctrl.Submit(ctx)
	if err != nil {
		return err
	}
	if !outcome.Sent() {
		return fmt.Errorf("submission failed: %w", outcome.Err)
	}
	return nil
}

// fillForm copies flag values into the controller the way a user would fill the form.
func fillForm(ctrl *form.Controller, opts *options) error {
	ctrl.SetRecipientEmail(opts.to)
	ctrl.SetMessageBody(opts.message)

	if opts.subject != "" {
		if !ctrl.Features().CustomSubjectSupported {
			return errors.New("custom subjects are disabled (MAILMATE_CUSTOM_SUBJECT=false)")
		}
		ctrl.ToggleCustomSubject(true)
		ctrl.SetCustomSubject(opts.subject)
	}

	if len(opts.attach) > 0 {
		if !ctrl.Features().AttachmentsSupported {
			return errors.New("attachments are disabled (MAILMATE_ATTACHMENTS=false)")
		}
		ctrl.ToggleAttachments(true)
		for _, path := range opts.attach {
			file, err := models.NewFileFromPath(path)
			if err != nil {
				return err
			}
			ctrl.AddFiles(file)
		}
	}
	return nil
}

func newTransport(cfg *config.Config) (transport.Client, string) {
	if cfg.Transport == config.TransportSMTP {
		return transport.NewSMTPClient(transport.SMTPOptions{
			Username:       cfg.SMTPUsername,
			Password:       cfg.SMTPPassword,
			From:           cfg.SMTPFrom,
			DefaultSubject: cfg.DefaultSubject,
			Timeout:        cfg.SMTPTimeout,
		}), cfg.SMTPAddr
	}
	return transport.NewHTTPClient(transport.HTTPOptions{
		Format:  transport.Format(cfg.PayloadFormat),
		APIKey:  cfg.APIKey,
		Timeout: cfg.HTTPTimeout,
	}), cfg.EndpointURL
}

// startFeed serves the toast feed on addr until the returned func is called.
func startFeed(addr string, handler http.Handler) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: handler}
	go func() {
		logger.Info("Notifications feed listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Notifications feed failed: %v", err)
		}
	}()
	return func() { _ = srv.Close() }, nil
}

// redirectLog keeps diagnostics off the terminal while the TUI owns it.
func redirectLog(path string) (func(), error) {
	if path == "" {
		logger.SetOutput(io.Discard)
		return func() { logger.SetOutput(nil) }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger.SetOutput(f)
	return func() {
		logger.SetOutput(nil)
		_ = f.Close()
	}, nil
}
