package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vovakirdan/sushistage/internal/core"
)

func watchLoop(ctx context.Context, events <-chan core.Event, out io.Writer) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			printEvent(out, ev)
		}
	}
}

func printEvent(out io.Writer, ev core.Event) {
	switch ev.Kind {
	case core.EventRoomUpdated:
		if ev.Origin == core.OriginRemote {
			fmt.Fprintf(out, "[room %s] members: %s\n", ev.Room.ID, memberList(ev.Room.Members))
		}
	case core.EventNotice:
		fmt.Fprintf(out, "%s joined\n", ev.Notice)
	case core.EventErrorQueued:
		if ev.Error != nil {
			fmt.Fprintf(out, "error: %s\n", ev.Error.Message)
		}
	}
}

func commandLoop(ctx context.Context, st *core.Store, in *bufio.Scanner, out io.Writer) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for in.Scan() {
			lines <- in.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := execute(ctx, st, line, out); quit {
				return
			}
		}
	}
}

// execute runs one REPL line and reports whether the loop should stop.
func execute(ctx context.Context, st *core.Store, line string, out io.Writer) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "quit", "exit":
		return true
	case "join", "leave":
		if len(fields) != 2 {
			fmt.Fprintf(out, "usage: %s <room>\n", fields[0])
			return false
		}
		var err error
		if fields[0] == "join" {
			err = st.JoinRoom(ctx, fields[1])
		} else {
			err = st.LeaveRoom(ctx, fields[1])
		}
		// Rejections are printed by the watcher when queued.
		if errors.Is(err, core.ErrRoomNotFound) || errors.Is(err, core.ErrNoIdentity) {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	case "rooms":
		for _, r := range st.Rooms() {
			mark := " "
			if st.IsMember(r.ID) {
				mark = "*"
			}
			fmt.Fprintf(out, "%s %s  %-10s %s\n", mark, r.ID, r.Name, memberList(r.Members))
		}
	case "whoami":
		if u, ok := st.CurrentUser(); ok {
			fmt.Fprintf(out, "%s (%s)\n", u.Name, u.ID)
		} else {
			fmt.Fprintln(out, "not logged in")
		}
	case "errors":
		for _, e := range st.Errors() {
			fmt.Fprintf(out, "%s: %s\n", e.Code, e.Message)
		}
		if n := st.Notice(); n != "" {
			fmt.Fprintf(out, "notice: %s joined\n", n)
		}
	default:
		fmt.Fprintf(out, "unknown command %q\n", fields[0])
	}
	return false
}

func memberList(members []core.User) string {
	if len(members) == 0 {
		return "-"
	}
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Name)
	}
	return strings.Join(names, ", ")
}
