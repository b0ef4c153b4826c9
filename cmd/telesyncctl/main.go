package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/telesync/internal/api"
	"github.com/matheus3301/telesync/internal/client"
	"github.com/matheus3301/telesync/internal/config"
	"github.com/matheus3301/telesync/internal/logging"
	"github.com/matheus3301/telesync/internal/notify"
	"github.com/matheus3301/telesync/internal/push"
	"github.com/matheus3301/telesync/internal/session"
	"github.com/matheus3301/telesync/internal/td"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fail("%v", err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// push may run without a daemon, so it does not dial up front.
	if args[0] == "push" {
		cmdPush(sessionName, args[1:])
		return
	}

	c, err := client.New(session.SocketPath(sessionName))
	if err != nil {
		fail("cannot connect to daemon for session %q: %v", sessionName, err)
	}
	defer func() { _ = c.Close() }()

	if args[0] == "watch" {
		cmdWatch(c, args[1:])
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, *jsonFlag)
	case "chats":
		cmdChats(ctx, c, args[1:], *jsonFlag)
	case "archive":
		n, err := c.LoadArchive(ctx, intArg(args, 1, 100))
		check(err)
		fmt.Printf("Loaded %d archived chats\n", n)
	case "open":
		need(args, 2, "open <chat_id>")
		resp, err := c.OpenChat(ctx, idArg(args[1]))
		check(err)
		printWindow(resp, *jsonFlag)
	case "history":
		need(args, 2, "history <chat_id> [--all]")
		all := len(args) > 2 && args[2] == "--all"
		resp, err := c.History(ctx, idArg(args[1]), 0, all)
		check(err)
		printWindow(resp, *jsonFlag)
	case "close":
		check(c.CloseChat(ctx, strings.Join(args[1:], " ")))
	case "send":
		need(args, 3, "send <chat_id> <text>")
		id, err := c.Send(ctx, idArg(args[1]), 0, strings.Join(args[2:], " "))
		check(err)
		fmt.Printf("Queued: %s\n", id)
	case "read":
		need(args, 2, "read <chat_id> [message_id]")
		var msgID int64
		if len(args) > 2 {
			msgID = idArg(args[2])
		}
		check(c.MarkRead(ctx, idArg(args[1]), msgID))
	case "reply":
		need(args, 3, "reply <chat_id> <text>")
		check(c.Action(ctx, idArg(args[1]), string(notify.ActionReply), strings.Join(args[2:], " ")))
	case "dismiss":
		need(args, 2, "dismiss <chat_id>")
		check(c.Dismiss(ctx, idArg(args[1])))
	case "logout":
		check(c.LogOut(ctx))
		fmt.Println("Logged out.")
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: telesyncctl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                    Show session status")
	fmt.Fprintln(os.Stderr, "  chats [main|archive] [n]  List chats")
	fmt.Fprintln(os.Stderr, "  archive [n]               Load the archive list")
	fmt.Fprintln(os.Stderr, "  open <chat_id>            Open a chat and show its messages")
	fmt.Fprintln(os.Stderr, "  history <chat_id> [--all] Load older messages of the open chat")
	fmt.Fprintln(os.Stderr, "  close [draft]             Close the open chat")
	fmt.Fprintln(os.Stderr, "  send <chat_id> <text>     Send a text message")
	fmt.Fprintln(os.Stderr, "  read <chat_id> [msg_id]   Mark a chat read")
	fmt.Fprintln(os.Stderr, "  reply <chat_id> <text>    Reply from a notification")
	fmt.Fprintln(os.Stderr, "  dismiss <chat_id>         Dismiss a notification")
	fmt.Fprintln(os.Stderr, "  watch [namespace...]      Stream daemon events")
	fmt.Fprintln(os.Stderr, "  push [payload]            Process a push payload (stdin when omitted)")
	fmt.Fprintln(os.Stderr, "  logout                    Log out of the account")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func check(err error) {
	if err != nil {
		fail("%v", err)
	}
}

func need(args []string, n int, usage string) {
	if len(args) < n {
		fail("usage: telesyncctl %s", usage)
	}
}

func idArg(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fail("invalid id %q", s)
	}
	return id
}

func intArg(args []string, i, def int) int {
	if len(args) <= i {
		return def
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		fail("invalid number %q", args[i])
	}
	return n
}

func cmdStatus(ctx context.Context, c *client.Client, jsonOut bool) {
	resp, err := c.Status(ctx)
	check(err)
	if jsonOut {
		outputJSON(resp)
		return
	}
	f := resp.GetFields()
	fmt.Printf("Session:       %s\n", f["session"].GetStringValue())
	fmt.Printf("Status:        %s\n", f["status"].GetStringValue())
	fmt.Printf("Authorization: %s\n", f["authorization"].GetStringValue())
	fmt.Printf("Connection:    %s\n", f["connection"].GetStringValue())
	fmt.Printf("Chats:         %d\n", int64(f["chats"].GetNumberValue()))
	if acct := f["account"].GetStringValue(); acct != "" {
		fmt.Printf("Account:       %s\n", acct)
	}
	fmt.Printf("Uptime:        %dms\n", int64(f["uptime_ms"].GetNumberValue()))
	if f["authorization"].GetStringValue() == string(td.AuthWaitOtherDeviceConfirmation) {
		fmt.Printf("\nScan the login QR code at %s\n", session.QRPath(f["session"].GetStringValue()))
	}
}

func cmdChats(ctx context.Context, c *client.Client, args []string, jsonOut bool) {
	list := "main"
	if len(args) > 0 {
		list = args[0]
	}
	chats, err := c.ListChats(ctx, list, intArg(args, 1, 0))
	check(err)
	if jsonOut {
		for _, ch := range chats {
			outputJSON(ch)
		}
		return
	}
	if len(chats) == 0 {
		fmt.Println("No chats.")
		return
	}
	for _, ch := range chats {
		f := ch.GetFields()
		marker := " "
		if f["pinned"].GetBoolValue() {
			marker = "*"
		}
		unread := ""
		if n := int64(f["unread"].GetNumberValue()); n > 0 {
			unread = fmt.Sprintf(" (%d)", n)
		}
		fmt.Printf("%s %-20s %-30s%s  %s\n", marker, f["id"].GetStringValue(), f["title"].GetStringValue(), unread, f["preview"].GetStringValue())
	}
}

func printWindow(resp *structpb.Struct, jsonOut bool) {
	if jsonOut {
		outputJSON(resp)
		return
	}
	msgs := resp.GetFields()["messages"].GetListValue().GetValues()
	// Windows are newest first; print oldest first like a conversation.
	for i := len(msgs) - 1; i >= 0; i-- {
		f := msgs[i].GetStructValue().GetFields()
		ts := time.Unix(int64(f["date"].GetNumberValue()), 0).Format("2006-01-02 15:04")
		who := "<"
		if f["outgoing"].GetBoolValue() {
			who = ">"
		}
		fmt.Printf("%s %s [%s] %s\n", ts, who, f["id"].GetStringValue(), f["preview"].GetStringValue())
	}
}

func cmdWatch(c *client.Client, namespaces []string) {
	if len(namespaces) == 0 {
		namespaces = api.WatchNamespaces
	}
	err := c.Watch(context.Background(), namespaces, func(evt *structpb.Struct) error {
		outputJSON(evt)
		return nil
	})
	check(err)
}

// cmdPush handles one push payload. It goes to the daemon when one holds
// the session, otherwise to a short-lived session in this process.
func cmdPush(sessionName string, args []string) {
	payload := strings.Join(args, " ")
	if payload == "" {
		data, err := io.ReadAll(os.Stdin)
		check(err)
		payload = strings.TrimSpace(string(data))
	}
	if payload == "" {
		fail("usage: telesyncctl push <payload>")
	}

	cfg, err := config.LoadOrDefault(session.ConfigPath())
	check(err)
	logger, err := logging.NewQuiet(session.LogPath(sessionName), sessionName)
	check(err)
	defer func() { _ = logger.Sync() }()

	r := push.NewResponder(push.DefaultOptions(sessionName, cfg, stdoutNotifier{}, logger), logger)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	check(r.Handle(ctx, payload))
}

// stdoutNotifier prints notifications raised by a short-lived session.
type stdoutNotifier struct{}

func (stdoutNotifier) Post(_ context.Context, n notify.Notification) error {
	for _, m := range n.Messages {
		fmt.Printf("[%s] %s: %s\n", n.Title, m.Sender, m.Text)
	}
	return nil
}

func (stdoutNotifier) Cancel(context.Context, int64) error { return nil }

func outputJSON(m proto.Message) {
	data, err := protojson.MarshalOptions{Indent: "  "}.Marshal(m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
		return
	}
	fmt.Println(string(data))
}
