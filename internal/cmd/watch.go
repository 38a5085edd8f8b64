package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/computehome/launcher/internal/activity"
	"github.com/computehome/launcher/internal/client"
	"github.com/computehome/launcher/internal/config"
	"github.com/computehome/launcher/internal/connection"
	"github.com/computehome/launcher/internal/protocol"
	"github.com/spf13/cobra"
)

var (
	watchURL          string
	watchReconnect    bool
	watchReconnectMax time.Duration
	watchOnce         bool
	watchTimeout      time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "👀 Connect to the launcher and follow its state",
	Long: `# 👀 Watch

**Connect to the launcher backend and print connection, progress and container changes.**

## 🔧 Configuration

Flags override the environment:
- `+"`LAUNCHER_URL`"+` - launcher page URL, the websocket endpoint is derived from it
- `+"`LAUNCHER_RECONNECT`"+` - set to **true** to reconnect after unexpected closes
- `+"`LAUNCHER_RECONNECT_MAX`"+` - longest delay between attempts, e.g. **30s**
- `+"`LAUNCHER_DEBUG`"+` - set to **true** for debug logs

## 💡 Examples

Follow a local dev backend:
` + "```bash\nlauncher watch --url http://localhost:8080/app\n```" + `

Print the containers once and exit:
` + "```bash\nlauncher watch --once\n```",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		if cmd.Flags().Changed("url") {
			cfg.PageURL = watchURL
		}
		if cmd.Flags().Changed("reconnect") {
			if watchReconnect {
				cfg.Reconnect = connection.DefaultReconnectPolicy()
			} else {
				cfg.Reconnect = connection.ReconnectPolicy{}
			}
		}
		if cmd.Flags().Changed("reconnect-max") && cfg.Reconnect.Enabled {
			cfg.Reconnect.Max = watchReconnectMax
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if watchTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, watchTimeout)
			defer cancel()
		}

		return runWatch(ctx, cfg, cmd.OutOrStdout(), watchOnce)
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchURL, "url", "u", config.DefaultURL, "Launcher page URL")
	watchCmd.Flags().BoolVar(&watchReconnect, "reconnect", false, "Reconnect after unexpected closes")
	watchCmd.Flags().DurationVar(&watchReconnectMax, "reconnect-max", 30*time.Second, "Longest delay between reconnect attempts")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Exit once the containers have loaded")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 0, "Give up after this long (0 waits forever)")
	rootCmd.AddCommand(watchCmd)
}

// ErrUnauthorised is returned by a --once watch that the backend rejects.
var ErrUnauthorised = errors.New("not authorised")

// runWatch connects, prints every state change to out, and returns when ctx
// ends. With once it returns as soon as the container list has loaded.
func runWatch(ctx context.Context, cfg config.ClientConfig, out io.Writer, once bool) error {
	c, err := client.New(cfg)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	// Subscribers run one at a time on the client's scheduler, so writes to
	// out never interleave.
	ready := make(chan struct{}, 1)
	rejected := make(chan struct{}, 1)
	notify := func(ch chan struct{}) {
		select {
		case ch <- struct{}{}:
		default:
		}
	}

	unsubscribe := []func(){
		c.Status().Subscribe(func(s connection.Status) {
			fmt.Fprintln(out, renderStatus(s))
		}),
		c.Activity().Subscribe(func(state *activity.State) {
			if line := renderActivity(state); line != "" {
				fmt.Fprintln(out, line)
			}
		}),
		c.Containers().Subscribe(func(containers []protocol.Container) {
			if containers == nil {
				return
			}
			fmt.Fprintln(out, renderContainers(containers))
			notify(ready)
		}),
		c.IsUnauthorised().Subscribe(func(unauthorised bool) {
			if unauthorised {
				fmt.Fprintln(out, errorStyle.Render("Not authorised, log in through the launcher page"))
				notify(rejected)
			}
		}),
		c.IsLoggedOut().Subscribe(func(loggedOut bool) {
			if loggedOut {
				fmt.Fprintln(out, errorStyle.Render("Logged out"))
				notify(rejected)
			}
		}),
	}
	defer func() {
		for _, fn := range unsubscribe {
			fn()
		}
	}()

	c.Connect()

	if !once {
		<-ctx.Done()
		return nil
	}

	select {
	case <-ready:
		return nil
	case <-rejected:
		return ErrUnauthorised
	case <-ctx.Done():
		return fmt.Errorf("waiting for containers: %w", ctx.Err())
	}
}
