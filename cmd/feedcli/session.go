package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/blackmichael/snippet-feed/internal/client"
	"github.com/blackmichael/snippet-feed/internal/feed"
)

// session drives a feed controller from text commands.
type session struct {
	feed     *feed.Controller
	feedback *feed.Feedback
	out      io.Writer
	printed  int
}

func newSession(ctrl *feed.Controller, fb *feed.Feedback, out io.Writer) *session {
	return &session{feed: ctrl, feedback: fb, out: out}
}

const sessionHelp = `commands:
  n            load the next page
  r            refresh from the top
  l ID         toggle like on a post
  d ID         toggle dislike on a post
  s ID         show a post
  p            print all loaded posts
  q            quit`

// run reads commands until EOF or q.
func (s *session) run(ctx context.Context, in io.Reader) error {
	if err := s.load(ctx); err != nil {
		return err
	}
	fmt.Fprintln(s.out, sessionHelp)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		quit, err := s.exec(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// load performs the first load and prints the result. Only a missing
// credential aborts; other failures leave placeholder content to show.
func (s *session) load(ctx context.Context) error {
	err := s.feed.Load(ctx)
	if errors.Is(err, client.ErrMissingCredential) || errors.Is(err, client.ErrInvalidCredential) {
		return err
	}
	s.printNew()
	s.printStatus()
	return nil
}

func (s *session) exec(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	switch fields[0] {
	case "q", "quit":
		return true, nil
	case "n", "more":
		before := s.feed.Snapshot()
		if !before.HasMore {
			fmt.Fprintln(s.out, "no more posts")
			return false, nil
		}
		err = s.feed.LoadMore(ctx)
		s.printNew()
		s.printStatus()
		return false, err
	case "r", "refresh":
		err = s.feed.Refresh(ctx)
		s.printed = 0
		s.printNew()
		s.printStatus()
		return false, err
	case "l", "like", "d", "dislike", "s", "show":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: %s ID", fields[0])
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return false, fmt.Errorf("invalid post id %q", fields[1])
		}
		switch fields[0] {
		case "l", "like":
			s.feedback.SetLike(ctx, id)
		case "d", "dislike":
			s.feedback.SetDislike(ctx, id)
		}
		post, ok := s.feed.Post(id)
		if !ok {
			return false, fmt.Errorf("post %d is not loaded", id)
		}
		printPost(s.out, post)
		return false, nil
	case "p", "print":
		for _, p := range s.feed.Snapshot().Posts {
			printPost(s.out, p)
		}
		return false, nil
	case "h", "help", "?":
		fmt.Fprintln(s.out, sessionHelp)
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
}

// printNew prints posts loaded since the last call.
func (s *session) printNew() {
	posts := s.feed.Snapshot().Posts
	if s.printed > len(posts) {
		s.printed = 0
	}
	for _, p := range posts[s.printed:] {
		printPost(s.out, p)
	}
	s.printed = len(posts)
}

func (s *session) printStatus() {
	snap := s.feed.Snapshot()
	switch {
	case snap.Placeholder:
		fmt.Fprintf(s.out, "! feed unavailable, showing sample content: %v\n", snap.Err)
	case snap.State == feed.StateError:
		fmt.Fprintf(s.out, "! feed request failed: %v\n", snap.Err)
	}
	more := "end of feed"
	if snap.HasMore {
		more = "more available"
	}
	fmt.Fprintf(s.out, "-- %d posts loaded, %s --\n", len(snap.Posts), more)
}

func printPost(w io.Writer, p client.Post) {
	mark := " "
	switch {
	case p.LikeStatus:
		mark = "+"
	case p.DislikeStatus:
		mark = "-"
	}
	fmt.Fprintf(w, "[%s] #%d %s (%s)\n    %s\n", mark, p.ID, p.Topic.Name, p.Timestamp.Local().Format("2006-01-02 15:04"), p.Content)
}
