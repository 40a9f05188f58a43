// chatmsg CLI - Command line client for the chatmsg API
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/olekukonko/tablewriter"

	"github.com/eldtechnologies/chatmsg/clients/go/chatmsg"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	client := chatmsg.NewClient(os.Getenv("CHATMSG_URL"), os.Getenv("CHATMSG_API_KEY"))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]

	switch cmd {
	case "health":
		resp, err := client.Health(ctx)
		exitOnError(err)
		printJSON(resp)

	case "post":
		fs := flag.NewFlagSet("post", flag.ExitOnError)
		session := fs.String("session", "", "session id (default: new UUIDv7)")
		id := fs.String("id", "", "message id (default: new ULID)")
		sender := fs.String("sender", chatmsg.SenderUser, "sender: user or system")
		fs.Parse(args)
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "Usage: chatmsg post [-session id] [-id id] [-sender user|system] <message>")
			os.Exit(1)
		}

		req := chatmsg.CreateMessageRequest{
			MessageID: *id,
			SessionID: *session,
			Content:   strings.Join(fs.Args(), " "),
			Sender:    *sender,
		}
		if req.MessageID == "" {
			req.MessageID = ulid.Make().String()
		}
		if req.SessionID == "" {
			req.SessionID = uuid.Must(uuid.NewV7()).String()
		}

		msg, err := client.CreateMessage(ctx, req)
		exitOnError(err)
		fmt.Printf("Posted %s to session %s\n", msg.MessageID, msg.SessionID)
		printJSON(msg)

	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		limit := fs.Int("limit", 0, "page size (server default 10, max 100)")
		offset := fs.Int("offset", 0, "messages to skip")
		sender := fs.String("sender", "", "only messages from this sender")
		query := fs.String("query", "", "case-insensitive content search")
		fs.Parse(args)
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "Usage: chatmsg list [-limit n] [-offset n] [-sender s] [-query q] <session_id>")
			os.Exit(1)
		}

		messages, err := client.ListMessages(ctx, fs.Arg(0), chatmsg.ListOptions{
			Limit:  *limit,
			Offset: *offset,
			Sender: *sender,
			Query:  *query,
		})
		exitOnError(err)
		printMessages(os.Stdout, messages)

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`chatmsg CLI - chat message API client

Usage: chatmsg <command> [options]

Commands:
  post <message>          Store a message
  list <session_id>       List a session's messages
  health                  Check server health

Environment:
  CHATMSG_URL       Server URL (default: http://localhost:8080)
  CHATMSG_API_KEY   API key sent as X-API-Key`)
}

func printMessages(w io.Writer, messages []chatmsg.Message) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Time", "Message ID", "Sender", "Words", "Content"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, m := range messages {
		words := ""
		if m.Metadata != nil {
			words = strconv.Itoa(m.Metadata.WordCount)
		}
		table.Append([]string{
			m.Timestamp.Local().Format("2006-01-02 15:04:05"),
			m.MessageID,
			m.Sender,
			words,
			m.Content,
		})
	}
	table.Render()
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
