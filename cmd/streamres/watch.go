package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/streamres/pkg/lifecycle"
	"github.com/vango-dev/streamres/pkg/loaders/wsfeed"
	"github.com/vango-dev/streamres/pkg/resource"
	"github.com/vango-dev/streamres/pkg/server"
	"github.com/vango-dev/streamres/pkg/stream"
)

func watchCmd() *cobra.Command {
	var retry time.Duration

	cmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "Print the snapshots of a served feed",
		Long: `Connect to a feed's WebSocket endpoint and print every state
transition, coloured by status.

Examples:
  streamres watch ws://localhost:8080/feeds/chat/ws
  streamres watch --retry 5s ws://localhost:8080/feeds/chat/ws`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, args[0], retry, cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVarP(&retry, "retry", "r", 0, "Reload after a failure instead of exiting")

	return cmd
}

// runWatch follows url until ctx is done. A failure ends the watch unless
// retry is positive, in which case the request is reloaded after retry.
func runWatch(ctx context.Context, url string, retry time.Duration, w io.Writer) error {
	scope := lifecycle.FromContext(ctx)
	defer scope.Dispose()

	requests := stream.NewSubject[resource.Request[string]]()
	res := resource.New(wsfeed.Frame{}, requests, wsfeed.Loader(nil), resource.Last[wsfeed.Frame](),
		resource.WithScope(scope), resource.WithName("watch"))

	failed := make(chan error, 1)
	unsubscribe := res.Subscribe(func(st resource.State[wsfeed.Frame]) {
		fmt.Fprintln(w, formatState(st))
		if st.Status == resource.Error {
			select {
			case failed <- st.Err:
			default:
			}
		}
	})
	defer unsubscribe()

	requests.Next(resource.Some(url))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-failed:
			if retry <= 0 {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retry):
				res.Reload()
			}
		}
	}
}

func statusColor(s resource.Status) string {
	switch s {
	case resource.Resolved:
		return "2"
	case resource.Loading, resource.Reloading:
		return "3"
	case resource.Error:
		return "1"
	default:
		return "8"
	}
}

func formatState(st resource.State[wsfeed.Frame]) string {
	label := paint(fmt.Sprintf("%-9s", st.Status), statusColor(st.Status))
	switch {
	case st.Status == resource.Error && st.Err != nil:
		return label + " " + st.Err.Error()
	case st.Status == resource.Resolved:
		return label + " " + describeFrame(st.Value)
	default:
		return label
	}
}

// describeFrame renders a server snapshot, or the raw text of any other
// frame.
func describeFrame(f wsfeed.Frame) string {
	var snap server.Snapshot
	if err := json.Unmarshal(f.Data, &snap); err != nil || snap.Name == "" {
		return f.Text()
	}
	value, _ := json.Marshal(snap.Value)
	line := fmt.Sprintf("%s %s %s", snap.Name, paint(snap.Status.String(), statusColor(snap.Status)), value)
	if snap.Error != "" {
		line += " error=" + snap.Error
	}
	return line
}
