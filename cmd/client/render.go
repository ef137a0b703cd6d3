package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mbeoliero/hearth/sdk"
	"github.com/mbeoliero/hearth/sdk/chat"
)

const (
	emptyDirectory = "no conversations yet"
	emptyThread    = "no messages yet"
	noSelection    = "no conversation selected"
)

// renderDirectory writes one numbered line per row
func renderDirectory(w io.Writer, snap chat.DirectorySnapshot, views []*chat.ConversationView) {
	status := "offline"
	if snap.Connected {
		status = "live"
	}
	fmt.Fprintf(w, "-- conversations [%s] unread=%d --\n", status, snap.TotalUnread)

	switch {
	case snap.State == chat.DirectoryFailed && len(views) == 0:
		fmt.Fprintf(w, "failed to load conversations: %v (type /reload to retry)\n", snap.Err)
		return
	case snap.State == chat.DirectoryLoading && len(views) == 0:
		fmt.Fprintln(w, "loading...")
		return
	case len(views) == 0:
		fmt.Fprintln(w, emptyDirectory)
		return
	}

	for i, v := range views {
		fmt.Fprintf(w, "%2d. %s\n", i+1, directoryLine(v))
	}
	if snap.State == chat.DirectoryFailed {
		fmt.Fprintf(w, "(refresh failed: %v)\n", snap.Err)
	}
}

func directoryLine(v *chat.ConversationView) string {
	var b strings.Builder
	name := v.OtherName()
	if name == "" {
		name = "unknown"
	}
	if v.Online {
		b.WriteString("* ")
	}
	b.WriteString(name)
	if v.UnreadCount > 0 {
		fmt.Fprintf(&b, " (%d)", v.UnreadCount)
	}
	if v.LastMessage != nil {
		fmt.Fprintf(&b, " - %s", truncate(v.LastMessage.Content, 40))
	} else if v.Err == nil {
		fmt.Fprintf(&b, " - %s", emptyThread)
	}
	if v.Err != nil {
		b.WriteString(" [incomplete]")
	}
	return b.String()
}

// renderMessage formats one thread line, own messages are marked "me"
func renderMessage(w io.Writer, me string, other string, m *sdk.Message) {
	who := other
	if m.SenderId == me {
		who = "me"
	}
	ts := time.UnixMilli(m.CreatedAt).Format("15:04")
	fmt.Fprintf(w, "[%s] %s: %s\n", ts, who, m.Content)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
