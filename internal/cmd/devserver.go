package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/computehome/launcher/internal/devserver"
	"github.com/spf13/cobra"
)

var (
	devServerAddr         string
	devServerUnauthorised bool
)

var devServerCmd = &cobra.Command{
	Use:   "dev-server",
	Short: "🧪 Run a local launcher backend",
	Long: `# 🧪 Dev Server

**Serve the launcher websocket protocol with demo data.**

The backend pushes its configuration when a client connects and answers
**request-config**, **request-user** and **request-containers**.

## 💡 Examples

` + "```bash\nlauncher dev-server --addr 127.0.0.1:8080\n```",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := devserver.DemoOptions()
		opts.Unauthorised = devServerUnauthorised

		s := devserver.New(opts)
		if _, err := s.Start(devServerAddr); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", headerStyle.Render("Dev backend"), s.URL())

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("Shutting down..."))
		return s.Close()
	},
}

func init() {
	devServerCmd.Flags().StringVarP(&devServerAddr, "addr", "a", "127.0.0.1:8080", "Listen address")
	devServerCmd.Flags().BoolVar(&devServerUnauthorised, "unauthorised", false, "Reject every session")
	rootCmd.AddCommand(devServerCmd)
}
