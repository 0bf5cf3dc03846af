package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/Shivanand-hulikatti/eventhub/internal/clientsync"
	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/notify"
)

const usage = `usage: eventwatch [-api=<url>] [-token=<jwt>] [-admin] [-v]

Follows the push channel of an eventhub server and prints the event list
every time it changes. The list is fetched again after every reconnect.

   -api        The server base URL. EVENTHUB_API is used if this flag is not set.
   -token      A bearer token. EVENTHUB_TOKEN is used if this flag is not set.
   -admin      Join the admin channel; requires an admin token.
   -v          Log connection details to stderr.
`

var (
	apiFlag     = flag.String("api", "", "server base url")
	tokenFlag   = flag.String("token", "", "bearer token")
	adminFlag   = flag.Bool("admin", false, "join the admin channel")
	verboseFlag = flag.Bool("v", false, "verbose logging")
)

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	log.SetFlags(0)

	api := firstNonEmpty(*apiFlag, os.Getenv("EVENTHUB_API"), "http://localhost:8080")
	token := firstNonEmpty(*tokenFlag, os.Getenv("EVENTHUB_TOKEN"))

	level := slog.LevelWarn
	if *verboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	channel := notify.ChannelUser
	if *adminFlag {
		channel = notify.ChannelAdmin
	}

	var client *clientsync.Client
	client = clientsync.NewClient(clientsync.Config{
		URL:     wsURL(api),
		Token:   token,
		Channel: channel,
		Logger:  logger,
		OnFrame: func(f notify.Frame) {
			// The join ack is read right after the initial listing.
			if f.Event == notify.EventRoomJoined {
				fmt.Println("── synced")
			} else {
				fmt.Printf("── %s\n", f.Event)
			}
			printEvents(client.View().Events())
		},
	}, &clientsync.HTTPLister{BaseURL: api, Token: token})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

func printEvents(events []model.EventView) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tDATE\tSEATS\tTITLE")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\n",
			e.Status, e.Date.Local().Format("2006-01-02 15:04"), e.AttendeeCount, e.MaxAttendees, e.Title)
	}
	tw.Flush()
}

// wsURL maps http(s)://host to ws(s)://host/ws.
func wsURL(api string) string {
	api = strings.TrimRight(api, "/")
	switch {
	case strings.HasPrefix(api, "https://"):
		api = "wss://" + strings.TrimPrefix(api, "https://")
	case strings.HasPrefix(api, "http://"):
		api = "ws://" + strings.TrimPrefix(api, "http://")
	}
	return api + "/ws"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
