package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/matheus3301/wppdesk/internal/chats"
	"github.com/matheus3301/wppdesk/internal/client"
	"github.com/matheus3301/wppdesk/internal/config"
	"github.com/matheus3301/wppdesk/internal/lock"
	"github.com/matheus3301/wppdesk/internal/profile"
	"github.com/matheus3301/wppdesk/internal/wa"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	addrFlag := flag.String("addr", "", "daemon address (default: from the profile lock or config)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fatal(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c := client.New(daemonAddr(name, *addrFlag))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, *jsonFlag)
	case "sessions":
		cmdSessions(ctx, c, *jsonFlag)
	case "chats":
		refresh := len(args) > 1 && args[1] == "refresh"
		view, err := c.Chats(ctx, refresh)
		if err != nil {
			fatal(err)
		}
		printChats(view, *jsonFlag)
	case "more":
		view, err := c.MoreChats(ctx)
		if err != nil {
			fatal(err)
		}
		printChats(view, *jsonFlag)
	case "read":
		requireArgs(args, 2, "read <chat-id>")
		if err := c.MarkRead(ctx, args[1]); err != nil {
			fatal(err)
		}
		fmt.Println("Marked as read.")
	case "unread":
		requireArgs(args, 2, "unread <chat-id>")
		ok, err := c.MarkUnread(ctx, args[1])
		if err != nil {
			fatal(err)
		}
		if *jsonFlag {
			outputJSON(map[string]bool{"ok": ok})
			return
		}
		if ok {
			fmt.Println("Marked as unread.")
		} else {
			fmt.Println("Gateway did not accept the change.")
		}
	case "thread":
		cmdThread(ctx, c, args, *jsonFlag)
	case "reply":
		requireArgs(args, 4, "reply <session> <chat-id> <text>")
		id, err := c.Reply(ctx, args[1], args[2], strings.Join(args[3:], " "))
		if err != nil {
			fatal(err)
		}
		if *jsonFlag {
			outputJSON(map[string]string{"clientMsgId": id})
			return
		}
		fmt.Printf("Queued %s\n", id)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: wppdeskctl [--profile <name>] [--addr <host:port>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                        Show daemon status")
	fmt.Fprintln(os.Stderr, "  sessions                      List gateway sessions")
	fmt.Fprintln(os.Stderr, "  chats [refresh]               Show the chat list")
	fmt.Fprintln(os.Stderr, "  more                          Load the next page of chats")
	fmt.Fprintln(os.Stderr, "  read <chat-id>                Mark a chat as read")
	fmt.Fprintln(os.Stderr, "  unread <chat-id>              Mark a chat as unread")
	fmt.Fprintln(os.Stderr, "  thread <session> <chat-id>    Show the newest messages of a chat")
	fmt.Fprintln(os.Stderr, "  thread more                   Load older messages of the open chat")
	fmt.Fprintln(os.Stderr, "  reply <session> <chat-id> <text>")
}

// daemonAddr prefers the flag, then the address the running daemon wrote
// into its lock, then the profile config.
func daemonAddr(name, flagAddr string) string {
	if flagAddr != "" {
		return flagAddr
	}
	if info, err := lock.Read(profile.Dir(name)); err == nil && info.Addr != "" {
		return info.Addr
	}
	cfg, err := config.LoadOrDefault(profile.ConfigPath(name))
	if err != nil {
		return config.Default().Daemon.Listen
	}
	return cfg.Daemon.Listen
}

func cmdStatus(ctx context.Context, c *client.Client, jsonOut bool) {
	resp, err := c.Status(ctx)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Profile:  %s\n", resp.Profile)
	fmt.Printf("Chats:    %s (%d loaded, %d unread)\n", resp.Chats, resp.ChatCount, resp.UnreadCount)
	fmt.Printf("Messages: %s (polling %v)\n", resp.Messages, resp.Polling)
	fmt.Printf("Replies:  %d pending\n", resp.PendingReplies)
	fmt.Printf("Uptime:   %dms\n", resp.UptimeMs)
}

func cmdSessions(ctx context.Context, c *client.Client, jsonOut bool) {
	sessions, err := c.Sessions(ctx)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(sessions)
		return
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return
	}
	for _, s := range sessions {
		fmt.Println(s)
	}
}

func cmdThread(ctx context.Context, c *client.Client, args []string, jsonOut bool) {
	var (
		thread client.Thread
		err    error
	)
	switch {
	case len(args) == 2 && args[1] == "more":
		thread, err = c.MoreMessages(ctx)
	case len(args) == 3:
		thread, err = c.OpenThread(ctx, args[1], args[2])
	default:
		fmt.Fprintln(os.Stderr, "usage: wppdeskctl thread <session> <chat-id> | thread more")
		os.Exit(1)
	}
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(thread)
		return
	}
	if thread.Err != "" {
		fatal(fmt.Errorf("%s", thread.Err))
	}
	for _, m := range thread.Messages {
		who := "  "
		if m.Direction == wa.Outbound {
			who = "> "
		}
		ts := time.UnixMilli(m.Timestamp).Format("2006-01-02 15:04")
		fmt.Printf("%s%s [%s] %s (%s)\n", who, ts, m.Kind, m.Body, m.Status)
	}
	if thread.HasMore {
		fmt.Printf("~%d messages, more with: wppdeskctl thread more\n", thread.TotalEstimate)
	}
}

func printChats(view chats.View, jsonOut bool) {
	if jsonOut {
		outputJSON(view)
		return
	}
	if view.Err != "" {
		fatal(fmt.Errorf("%s", view.Err))
	}
	for _, s := range view.Chats {
		mark := " "
		switch {
		case s.Unread:
			mark = "*"
		case s.ReadNoReply:
			mark = "?"
		}
		preview := ""
		if s.LastMessage != nil {
			preview = s.LastMessage.Body
		}
		fmt.Printf("%s %-28s %-12s %-24s %s\n", mark, s.ID, s.SessionID, s.DisplayName, preview)
	}
	fmt.Printf("%d chats, %d unread, %d awaiting reply, %d groups\n",
		view.Counts.Total, view.Counts.Unread, view.Counts.ReadNoReply, view.Counts.Groups)
	if view.HasMore {
		fmt.Println("more with: wppdeskctl more")
	}
}

func requireArgs(args []string, n int, usage string) {
	if len(args) < n {
		fmt.Fprintf(os.Stderr, "usage: wppdeskctl %s\n", usage)
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
