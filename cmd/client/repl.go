package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mbeoliero/hearth/sdk"
	"github.com/mbeoliero/hearth/sdk/chat"
)

const helpText = `commands:
  /list               show conversations
  /search <name>      filter conversations by name
  /open <n>           open conversation n from the last list
  /find [role] [q]    browse profiles (homeowner, designer, freelancer)
  /chat <user id>     start or continue a chat with a user
  /retry              resend the last failed message
  /reload             reload conversations
  /close              leave the open conversation
  /quit               exit
anything else is sent to the open conversation`

// profileFinder is the part of the API client the profile browser needs
type profileFinder interface {
	ListProfiles(ctx context.Context, role, query string, limit int) ([]*sdk.Profile, error)
}

type repl struct {
	inbox   *chat.Inbox
	finder  profileFinder
	session *chat.Session
	in      io.Reader
	out     io.Writer
	timeout time.Duration

	mu     sync.Mutex
	listed []*chat.ConversationView
	shown  map[string]int
	unread int64
	online bool
}

func newRepl(inbox *chat.Inbox, finder profileFinder, session *chat.Session, in io.Reader, out io.Writer, timeout time.Duration) *repl {
	r := &repl{
		inbox:   inbox,
		finder:  finder,
		session: session,
		in:      in,
		out:     out,
		timeout: timeout,
		shown:   make(map[string]int),
	}
	inbox.Directory().OnChange(r.onDirectory)
	inbox.OnThreadChange(r.onThread)
	return r
}

func (r *repl) run(ctx context.Context) error {
	fmt.Fprintf(r.out, "signed in as %s. /help for commands\n", r.session.Profile.FullName)
	r.printf("%s\n", noSelection)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := r.handle(ctx, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

// handle runs one input line and reports whether the user asked to quit
func (r *repl) handle(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		r.send(ctx, line)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		r.printf("%s\n", helpText)
	case "/list":
		r.list("")
	case "/search":
		r.list(arg)
	case "/reload":
		if err := r.inbox.Directory().Load(ctx); err != nil {
			r.printf("reload failed: %v\n", err)
			return false
		}
		r.list("")
	case "/open":
		r.open(ctx, arg)
	case "/find":
		r.find(ctx, arg)
	case "/chat":
		r.startChat(ctx, arg)
	case "/retry":
		r.retry(ctx)
	case "/close":
		r.closeThread()
	default:
		r.printf("unknown command %s, /help for commands\n", cmd)
	}
	return false
}

func (r *repl) list(query string) {
	dir := r.inbox.Directory()
	snap := dir.Snapshot()
	views := chat.FilterViews(snap.Entries, query)

	r.mu.Lock()
	r.listed = views
	r.mu.Unlock()

	var b strings.Builder
	renderDirectory(&b, snap, views)
	r.printf("%s", b.String())
}

func (r *repl) open(ctx context.Context, arg string) {
	n, err := strconv.Atoi(arg)
	r.mu.Lock()
	listed := r.listed
	r.mu.Unlock()
	if err != nil || n < 1 || n > len(listed) {
		r.printf("usage: /open <n> with n from /list\n")
		return
	}
	r.openConversation(ctx, listed[n-1].Conversation.Id)
}

func (r *repl) openConversation(ctx context.Context, conversationId string) {
	th, err := r.inbox.Select(ctx, conversationId)
	if err != nil {
		r.printf("failed to open conversation: %v\n", err)
		return
	}
	r.showThread(th)
}

// showThread prints the whole history and remembers how much was shown
func (r *repl) showThread(th *chat.Thread) {
	snap := th.Snapshot()
	r.mu.Lock()
	r.shown[snap.ConversationId] = len(snap.Messages)
	r.mu.Unlock()

	other := r.otherName(th)
	r.printf("-- %s --\n", other)
	if len(snap.Messages) == 0 {
		r.printf("%s\n", emptyThread)
		return
	}
	var b strings.Builder
	for _, m := range snap.Messages {
		renderMessage(&b, r.session.UserId, other, m)
	}
	r.printf("%s", b.String())
}

func (r *repl) find(ctx context.Context, arg string) {
	role, query := "", arg
	if first, rest, _ := strings.Cut(arg, " "); isRole(first) {
		role, query = first, strings.TrimSpace(rest)
	}

	fctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	profiles, err := r.finder.ListProfiles(fctx, role, query, 20)
	if err != nil {
		r.printf("failed to list profiles: %v\n", err)
		return
	}
	if len(profiles) == 0 {
		r.printf("no profiles found\n")
		return
	}

	var b strings.Builder
	for _, p := range profiles {
		if p.Id == r.session.UserId {
			continue
		}
		fmt.Fprintf(&b, "%s  %s (%s) %s\n", p.Id, p.FullName, p.Role, p.Location)
	}
	b.WriteString("start with /chat <user id>\n")
	r.printf("%s", b.String())
}

func (r *repl) startChat(ctx context.Context, otherUserId string) {
	if otherUserId == "" {
		r.printf("usage: /chat <user id>\n")
		return
	}
	th, err := r.inbox.StartChat(ctx, otherUserId)
	if err != nil {
		if errors.Is(err, chat.ErrSelfConversation) {
			r.printf("you cannot message yourself\n")
			return
		}
		r.printf("failed to start chat: %v\n", err)
		return
	}
	r.showThread(th)
}

func (r *repl) send(ctx context.Context, text string) {
	th := r.inbox.Thread()
	if th == nil {
		r.printf("%s, /list then /open <n>\n", noSelection)
		return
	}
	if _, err := th.Send(ctx, text); err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			return
		}
		r.printf("not sent: %v (type /retry to resend)\n", err)
	}
}

func (r *repl) retry(ctx context.Context) {
	th := r.inbox.Thread()
	if th == nil || th.Draft() == "" {
		r.printf("nothing to resend\n")
		return
	}
	if _, err := th.Retry(ctx); err != nil {
		r.printf("not sent: %v\n", err)
	}
}

func (r *repl) closeThread() {
	th := r.inbox.Thread()
	if th == nil {
		r.printf("%s\n", noSelection)
		return
	}
	r.inbox.CloseThread()
	r.printf("%s\n", noSelection)
}

// onThread prints messages that arrived since the thread was last shown
func (r *repl) onThread(snap chat.ThreadSnapshot) {
	if snap.State == chat.ThreadClosed {
		return
	}
	r.mu.Lock()
	seen, ok := r.shown[snap.ConversationId]
	if !ok || len(snap.Messages) <= seen {
		r.mu.Unlock()
		return
	}
	r.shown[snap.ConversationId] = len(snap.Messages)
	r.mu.Unlock()

	th := r.inbox.Thread()
	other := "them"
	if th != nil && th.ConversationId() == snap.ConversationId {
		other = r.otherName(th)
	}
	var b strings.Builder
	for _, m := range snap.Messages[seen:] {
		renderMessage(&b, r.session.UserId, other, m)
	}
	r.printf("%s", b.String())
}

// onDirectory announces new unread messages and connection changes
func (r *repl) onDirectory(snap chat.DirectorySnapshot) {
	r.mu.Lock()
	prevUnread, prevOnline := r.unread, r.online
	r.unread, r.online = snap.TotalUnread, snap.Connected
	r.mu.Unlock()

	if snap.Connected != prevOnline {
		if snap.Connected {
			r.printf("(live)\n")
		} else {
			r.printf("(offline, reconnecting)\n")
		}
	}
	if snap.State == chat.DirectoryReady && snap.TotalUnread > prevUnread {
		r.printf("(%d unread, /list to see conversations)\n", snap.TotalUnread)
	}
}

func (r *repl) otherName(th *chat.Thread) string {
	for _, v := range r.inbox.Directory().Snapshot().Entries {
		if v.Conversation.Id == th.ConversationId() && v.Other != nil {
			return v.Other.FullName
		}
	}
	return "them"
}

func (r *repl) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func isRole(s string) bool {
	return s == sdk.RoleHomeowner || s == sdk.RoleDesigner || s == sdk.RoleFreelancer
}
