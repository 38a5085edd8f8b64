package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/computehome/launcher/internal/config"
	"github.com/computehome/launcher/internal/logger"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "launcher",
	Short: "🚀 Launcher - headless client for the container launcher",
	Long: `# 🚀 Launcher

**A headless client for the container launcher backend.**

## ✨ Features

- 🔌 **Single websocket channel** to the launcher backend
- 📊 **Live progress** while authenticating and loading your containers
- 🔁 **Optional reconnection** with exponential backoff
- 🧪 **Built-in dev backend** for local testing

## 🚀 Getting Started

Run **launcher dev-server** in one terminal and **launcher watch** in another.

Use **launcher watch --help** for detailed options.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		logger.Configure(cfg.LogLevel(), cfg.Dev)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().Bool("dev", false, "Development mode, pretty debug logs (env LAUNCHER_DEV)")

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		renderMarkdownHelp(cmd)
	})
}

// loadConfig reads the environment and applies the flags shared by every
// command.
func loadConfig(cmd *cobra.Command) config.ClientConfig {
	cfg := config.FromEnv()
	if cmd.Flags().Changed("dev") {
		cfg.Dev, _ = cmd.Flags().GetBool("dev")
	}
	return cfg
}

// helpMarkdown assembles a command's help page as markdown: its description
// followed by usage, subcommands and flags.
func helpMarkdown(cmd *cobra.Command) string {
	var b strings.Builder

	switch {
	case cmd.Long != "":
		b.WriteString(cmd.Long)
	case cmd.Short != "":
		b.WriteString("# " + cmd.Short)
	}
	b.WriteString("\n\n")

	fenced(&b, "📖 Usage", "bash", cmd.UseLine()+"\n")

	var subs []string
	for _, sub := range cmd.Commands() {
		if sub.IsAvailableCommand() {
			subs = append(subs, fmt.Sprintf("- `%s` %s", sub.Name(), sub.Short))
		}
	}
	if len(subs) > 0 {
		b.WriteString("## 🔧 Commands\n\n" + strings.Join(subs, "\n") + "\n\n")
	}

	if usages := cmd.LocalFlags().FlagUsages(); usages != "" {
		fenced(&b, "⚙️  Flags", "", usages)
	}
	if cmd.HasParent() {
		if usages := cmd.InheritedFlags().FlagUsages(); usages != "" {
			fenced(&b, "🌐 Global Flags", "", usages)
		}
	}
	return b.String()
}

func fenced(b *strings.Builder, title, lang, body string) {
	fmt.Fprintf(b, "## %s\n\n```%s\n%s```\n\n", title, lang, body)
}

// renderMarkdownHelp prints the help page through glamour, or the plain cobra
// usage if the terminal renderer can't be built.
func renderMarkdownHelp(cmd *cobra.Command) {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		var rendered string
		if rendered, err = renderer.Render(helpMarkdown(cmd)); err == nil {
			fmt.Fprint(cmd.OutOrStdout(), rendered)
			return
		}
	}
	_ = cmd.Usage()
}
