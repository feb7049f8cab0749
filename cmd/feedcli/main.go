package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/blackmichael/snippet-feed/internal/client"
	"github.com/blackmichael/snippet-feed/internal/config"
	"github.com/blackmichael/snippet-feed/internal/domain"
	"github.com/blackmichael/snippet-feed/internal/feed"
	"github.com/blackmichael/snippet-feed/internal/keystore"
	"github.com/blackmichael/snippet-feed/internal/notify"
)

const usage = `usage: feedcli [flags] <command> [args]

commands:
  login [KEY]          save an API key (read from stdin when omitted)
  logout               forget the saved API key
  feed [-pages N] [-i] show the feed; -i starts an interactive session
  like ID              toggle like on a post
  dislike ID           toggle dislike on a post
  stats                show engagement statistics
  watch                stream live events and refresh the feed on new posts

flags:`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadClient()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var verbose bool
	flag.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "feed API base URL (FEED_BASE_URL)")
	flag.IntVar(&cfg.PageLimit, "limit", cfg.PageLimit, "posts per page (FEED_PAGE_LIMIT)")
	flag.StringVar(&cfg.KeystorePath, "keystore", cfg.KeystorePath, "path of the saved API key (FEED_KEYSTORE_PATH)")
	flag.BoolVar(&verbose, "v", false, "log requests to stderr")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return fmt.Errorf("a command is required")
	}
	if cfg.PageLimit < 1 {
		return fmt.Errorf("--limit must be positive")
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	creds, closeCreds, err := openCredentials(cfg, logger)
	if err != nil {
		return err
	}
	defer closeCreds()

	api, err := client.New(client.Config{
		BaseURL:     cfg.BaseURL,
		Credentials: creds,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	app := &cli{
		cfg:    cfg,
		creds:  creds,
		api:    api,
		logger: logger,
		out:    os.Stdout,
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "login":
		return app.login(ctx, args, os.Stdin)
	case "logout":
		return app.logout()
	case "feed":
		return app.feed(ctx, args)
	case "like", "dislike":
		return app.react(ctx, cmd, args)
	case "stats":
		return app.stats(ctx)
	case "watch":
		return app.watch(ctx)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// openCredentials prefers FEED_API_KEY over the on-disk keystore.
func openCredentials(cfg *config.ClientConfig, logger *slog.Logger) (client.CredentialStore, func(), error) {
	if cfg.APIKey != "" {
		return keystore.NewStatic(cfg.APIKey), func() {}, nil
	}
	store, err := keystore.Open(cfg.KeystorePath, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open keystore: %w", err)
	}
	return store, func() { store.Close() }, nil
}

type cli struct {
	cfg    *config.ClientConfig
	creds  client.CredentialStore
	api    *client.Client
	logger *slog.Logger
	out    io.Writer
}

func (c *cli) login(ctx context.Context, args []string, stdin io.Reader) error {
	var key string
	switch len(args) {
	case 0:
		fmt.Fprint(c.out, "API key: ")
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read key: %w", err)
		}
		key = strings.TrimSpace(line)
	case 1:
		key = strings.TrimSpace(args[0])
	default:
		return fmt.Errorf("usage: login [KEY]")
	}
	if key == "" {
		return fmt.Errorf("API key is empty")
	}

	if err := c.creds.Set(key); err != nil {
		return fmt.Errorf("save key: %w", err)
	}

	// Verify against the server; a rejected key is not kept.
	if _, err := c.api.Stats(ctx); err != nil {
		if errors.Is(err, client.ErrInvalidCredential) {
			if clearErr := c.creds.Clear(); clearErr != nil {
				c.logger.Warn("failed to clear rejected key", "error", clearErr)
			}
			return fmt.Errorf("server rejected the API key")
		}
		fmt.Fprintf(c.out, "Key saved, but the server could not be reached: %v\n", err)
		return nil
	}
	fmt.Fprintf(c.out, "Logged in to %s\n", c.cfg.BaseURL)
	return nil
}

func (c *cli) logout() error {
	if err := c.creds.Clear(); err != nil {
		return fmt.Errorf("clear key: %w", err)
	}
	fmt.Fprintln(c.out, "Logged out")
	return nil
}

func (c *cli) newController() (*feed.Controller, *feed.Feedback) {
	ctrl := feed.NewController(c.api, c.cfg.PageLimit, c.logger)
	return ctrl, feed.NewFeedback(ctrl, c.api, c.logger)
}

func (c *cli) feed(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	pages := fs.Int("pages", 1, "number of pages to load")
	interactive := fs.Bool("i", false, "start an interactive session")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pages < 1 {
		return fmt.Errorf("--pages must be positive")
	}

	ctrl, fb := c.newController()
	if *interactive {
		return newSession(ctrl, fb, c.out).run(ctx, os.Stdin)
	}

	if err := loadPages(ctx, ctrl, *pages); err != nil {
		return err
	}
	snap := ctrl.Snapshot()
	for _, p := range snap.Posts {
		printPost(c.out, p)
	}
	switch {
	case snap.Placeholder:
		fmt.Fprintf(c.out, "! feed unavailable, showing sample content: %v\n", snap.Err)
	case snap.State == feed.StateError:
		fmt.Fprintf(c.out, "! could not load more posts: %v\n", snap.Err)
	}
	return nil
}

// loadPages loads the first page and up to n-1 more. Credential errors are
// returned; other failures are left in the controller state.
func loadPages(ctx context.Context, ctrl *feed.Controller, n int) error {
	err := ctrl.Load(ctx)
	for i := 1; err == nil && i < n && ctrl.Snapshot().HasMore; i++ {
		err = ctrl.LoadMore(ctx)
	}
	if errors.Is(err, client.ErrMissingCredential) {
		return fmt.Errorf("not logged in: run 'feedcli login' or set FEED_API_KEY")
	}
	if errors.Is(err, client.ErrInvalidCredential) {
		return fmt.Errorf("API key was rejected: run 'feedcli login' again")
	}
	return nil
}

// react loads pages until the post is held, then toggles the reaction on it.
func (c *cli) react(ctx context.Context, kind string, args []string) error {
	fs := flag.NewFlagSet(kind, flag.ContinueOnError)
	pages := fs.Int("pages", 5, "maximum pages to search for the post")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: %s [-pages N] ID", kind)
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid post id %q", fs.Arg(0))
	}

	ctrl, fb := c.newController()
	if err := ctrl.Load(ctx); err != nil {
		return err
	}
	for i := 1; i < *pages; i++ {
		if _, ok := ctrl.Post(id); ok || !ctrl.Snapshot().HasMore {
			break
		}
		if err := ctrl.LoadMore(ctx); err != nil {
			return err
		}
	}
	if _, ok := ctrl.Post(id); !ok {
		return fmt.Errorf("post %d not found in the first %d pages", id, *pages)
	}

	if kind == "like" {
		fb.SetLike(ctx, id)
	} else {
		fb.SetDislike(ctx, id)
	}

	post, _ := ctrl.Post(id)
	printPost(c.out, post)
	return nil
}

func (c *cli) stats(ctx context.Context) error {
	s, err := c.api.Stats(ctx)
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}
	fmt.Fprintf(c.out, "Topics:     %d\n", s.TotalTopics)
	fmt.Fprintf(c.out, "Posts:      %d\n", s.TotalPosts)
	fmt.Fprintf(c.out, "Liked:      %d\n", s.LikedPosts)
	fmt.Fprintf(c.out, "Disliked:   %d\n", s.DislikedPosts)
	fmt.Fprintf(c.out, "Engagement: %.1f%%\n", s.EngagementRate)
	return nil
}

func (c *cli) watch(ctx context.Context) error {
	url, err := notify.EventsURL(c.cfg.BaseURL)
	if err != nil {
		return err
	}

	ctrl, _ := c.newController()
	if err := loadPages(ctx, ctrl, 1); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Watching %s (%d posts loaded)\n", url, len(ctrl.Snapshot().Posts))

	// Events arrive on the subscriber goroutine one at a time.
	sub := notify.NewSubscriber(url, c.api.AuthHeader, func(e domain.Event) {
		fmt.Fprintf(c.out, "%s  %s topic=%d count=%d\n", e.At.Local().Format("15:04:05"), e.Type, e.TopicID, e.Count)
		if e.Type != domain.EventPostsGenerated {
			return
		}
		if err := ctrl.Refresh(ctx); err != nil {
			c.logger.Warn("refresh after event failed", "error", err)
			return
		}
		if posts := ctrl.Snapshot().Posts; len(posts) > 0 {
			printPost(c.out, posts[0])
		}
	}, c.logger)

	err = sub.Start(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
