package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/iconidentify/filegrab/internal/client"
	"github.com/iconidentify/filegrab/internal/config"
	"github.com/iconidentify/filegrab/internal/domain"
	"github.com/iconidentify/filegrab/internal/history"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := &cli.App{
		Name:    "filegrab",
		Usage:   "download files through a filegrab server",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:    "server",
				Usage:   "filegrab server `URL` (overrides config)",
				EnvVars: []string{"FILEGRAB_SERVER"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log debug output to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "info",
				Usage:     "show what a URL points to",
				ArgsUsage: "URL",
				Action:    infoAction(ctx),
			},
			{
				Name:      "get",
				Usage:     "download a file",
				ArgsUsage: "URL",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "original",
						Usage:   "output `FORMAT`: original, mp3 or mp4",
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Value:   ".",
						Usage:   "save into `DIR`",
					},
				},
				Action: getAction(ctx),
			},
			{
				Name:   "watch",
				Usage:  "read URLs from stdin and describe the last one typed",
				Action: watchAction(ctx),
			},
			{
				Name:  "history",
				Usage: "show or edit recent downloads",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "list recent downloads",
						Action: historyList(ctx),
					},
					{
						Name:      "remove",
						Usage:     "remove one entry",
						ArgsUsage: "ID",
						Action:    historyRemove(ctx),
					},
					{
						Name:   "clear",
						Usage:  "remove all entries",
						Action: historyClear(ctx),
					},
				},
				Action: historyList(ctx),
			},
		},
		HideHelpCommand: true,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env bundles what every command needs.
type env struct {
	cfg    *config.Config
	api    *client.Client
	logger *slog.Logger
}

func setup(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	serverURL := cfg.Client.ServerURL
	if s := c.String("server"); s != "" {
		serverURL = s
	}
	return &env{cfg: cfg, api: client.New(serverURL, nil), logger: logger}, nil
}

func (e *env) openHistory() (*history.Log, func(), error) {
	store, err := history.Open(e.cfg.Client.HistoryPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	return history.NewLog(store, domain.MaxHistoryEntries), func() { store.Close() }, nil
}

func urlArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit("expected exactly one URL", 2)
	}
	return c.Args().First(), nil
}

func infoAction(ctx context.Context) cli.ActionFunc {
	return func(c *cli.Context) error {
		rawURL, err := urlArg(c)
		if err != nil {
			return err
		}
		e, err := setup(c)
		if err != nil {
			return err
		}

		res, err := client.NewResolver(e.api, e.logger).Resolve(ctx, rawURL)
		if err != nil {
			return err
		}
		printDescriptor(os.Stdout, res)
		return nil
	}
}

func printDescriptor(w io.Writer, res *client.Result) {
	d := res.Descriptor
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", d.Name)
	fmt.Fprintf(tw, "Type:\t%s\n", d.Type)
	if d.Size > 0 {
		fmt.Fprintf(tw, "Size:\t%s\n", domain.FormatFileSize(d.Size))
	} else {
		fmt.Fprintf(tw, "Size:\tunknown\n")
	}
	if d.MimeHint != "" {
		fmt.Fprintf(tw, "Content type:\t%s\n", d.MimeHint)
	}
	if res.Info != nil && res.Info.Title != "" {
		fmt.Fprintf(tw, "Title:\t%s\n", res.Info.Title)
	}
	if d.IsVideo {
		fmt.Fprintf(tw, "Formats:\toriginal, mp3, mp4\n")
	}
	if res.LookupErr != nil {
		fmt.Fprintf(tw, "Warning:\tserver lookup failed (%s); values are guessed from the URL\n", lookupMessage(res.LookupErr))
	}
	tw.Flush()
}

func lookupMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func getAction(ctx context.Context) cli.ActionFunc {
	return func(c *cli.Context) error {
		rawURL, err := urlArg(c)
		if err != nil {
			return err
		}
		e, err := setup(c)
		if err != nil {
			return err
		}
		hist, closeHistory, err := e.openHistory()
		if err != nil {
			return err
		}
		defer closeHistory()

		session := client.NewSession(client.NewResolver(e.api, e.logger), e.api, hist, e.logger)
		if _, err := session.Resolve(ctx, rawURL); err != nil {
			return err
		}

		dir := c.String("out")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}

		var savedAs string
		entry, err := session.Download(ctx, c.String("format"), func(t *client.Transfer) (io.WriteCloser, error) {
			savedAs = filepath.Join(dir, filepath.Base(t.FileName))
			f, err := os.Create(savedAs)
			if err != nil {
				return nil, err
			}
			if t.Note != "" {
				fmt.Fprintln(os.Stderr, "note:", t.Note)
			}
			if !term.IsTerminal(int(os.Stderr.Fd())) {
				return f, nil
			}
			bar := progressbar.DefaultBytes(t.Size, filepath.Base(savedAs))
			return struct {
				io.Writer
				io.Closer
			}{io.MultiWriter(f, bar), closerFunc(func() error {
				bar.Finish()
				return f.Close()
			})}, nil
		})
		if err != nil {
			if savedAs != "" {
				os.Remove(savedAs)
			}
			return err
		}

		size := "unknown size"
		if entry != nil && entry.FileSize > 0 {
			size = domain.FormatFileSize(entry.FileSize)
		}
		fmt.Printf("saved %s (%s)\n", savedAs, size)
		return nil
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func watchAction(ctx context.Context) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup(c)
		if err != nil {
			return err
		}

		resolver := client.NewResolver(e.api, e.logger)
		debouncer := client.NewDebouncer(e.cfg.Client.Debounce)

		describe := func(rawURL string) {
			lookupCtx, cancel := context.WithTimeout(ctx, e.cfg.Fetch.ProbeTimeout+e.cfg.Video.Timeout)
			defer cancel()
			res, err := resolver.Resolve(lookupCtx, rawURL)
			switch {
			case errors.Is(err, client.ErrStale):
			case err != nil:
				fmt.Printf("%s: %v\n", rawURL, err)
			default:
				fmt.Println(rawURL)
				printDescriptor(os.Stdout, res)
			}
		}

		var last string
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			last = strings.TrimSpace(scanner.Text())
			if last == "" {
				debouncer.Stop()
				resolver.Invalidate()
				continue
			}
			rawURL := last
			debouncer.Trigger(func() { describe(rawURL) })
		}

		// Input ended inside the quiet period: resolve the final line now.
		debouncer.Stop()
		if _, ok := resolver.Latest(); !ok && last != "" {
			describe(last)
		}
		return scanner.Err()
	}
}

func historyList(ctx context.Context) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup(c)
		if err != nil {
			return err
		}
		hist, closeHistory, err := e.openHistory()
		if err != nil {
			return err
		}
		defer closeHistory()

		entries, err := hist.List(ctx)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no downloads yet")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSIZE\tDOWNLOADED")
		for _, entry := range entries {
			size := "-"
			if entry.FileSize > 0 {
				size = domain.FormatFileSize(entry.FileSize)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				entry.ID, entry.FileName, entry.FileType, size,
				entry.DownloadedAt.Local().Format(time.DateTime))
		}
		return tw.Flush()
	}
}

func historyRemove(ctx context.Context) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("expected exactly one ID", 2)
		}
		e, err := setup(c)
		if err != nil {
			return err
		}
		hist, closeHistory, err := e.openHistory()
		if err != nil {
			return err
		}
		defer closeHistory()

		return hist.Remove(ctx, c.Args().First())
	}
}

func historyClear(ctx context.Context) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup(c)
		if err != nil {
			return err
		}
		hist, closeHistory, err := e.openHistory()
		if err != nil {
			return err
		}
		defer closeHistory()

		return hist.Clear(ctx)
	}
}
