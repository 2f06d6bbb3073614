package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stone-age-io/hwinventory/internal/agent"
)

var (
	version    = "dev"
	commitHash = "unknown"
	buildDate  = "unknown"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "hwinventory",
	Short: "Hardware inventory agent",
	Long: `hwinventory collects this machine's hardware inventory (CPU, GPU, disk type,
RAM, network identity) and submits it, together with the asset tag, the
responsible person and the room, to the inventory API.

Run without a subcommand to open the form (equivalent to 'form').`,
	SilenceUsage: true,
	RunE:         runForm,
}

var formCmd = &cobra.Command{
	Use:   "form",
	Short: "Choose asset, responsible and room, then submit",
	RunE:  runForm,
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit without prompting, using flags and the saved selection",
	RunE:  runSubmit,
}

var listCmd = &cobra.Command{
	Use:       "list {assets|rooms|users}",
	Short:     "Print a directory list",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"assets", "rooms", "users"},
	RunE:      runList,
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <asset>",
	Short: "Print the responsible person and room recorded for an asset",
	Args:  cobra.ExactArgs(1),
	RunE:  runLookup,
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Print this machine's inventory record without sending it",
	RunE:  runCollect,
}

var autostartCmd = &cobra.Command{
	Use:   "autostart",
	Short: "Manage starting the daemon with the system",
}

var autostartInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Register the daemon with the service manager",
	RunE:  runAutostartInstall,
}

var autostartRemoveCmd = &cobra.Command{
	Use:     "remove",
	Aliases: []string{"uninstall"},
	Short:   "Remove the registration",
	RunE:    runAutostartRemove,
}

var autostartStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the registration state",
	RunE:  runAutostartStatus,
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print the end of the agent's log file",
	RunE:  runLogs,
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Resubmit the saved selection once a month (service mode)",
	RunE:  runDaemon,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hwinventory %s (commit: %s, built: %s)\n", version, commitHash, buildDate)
	},
}

var logLines int

var (
	submitAsset       string
	submitResponsible string
	submitRoom        string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: next to the executable, then the platform config directory)")

	submitCmd.Flags().StringVar(&submitAsset, "asset", "", "asset id (default: saved selection)")
	submitCmd.Flags().StringVar(&submitResponsible, "responsible", "", "responsible person id (default: saved selection)")
	submitCmd.Flags().StringVar(&submitRoom, "room", "", "room id (default: saved selection)")

	logsCmd.Flags().IntVarP(&logLines, "lines", "n", 50, "number of lines to print")

	autostartCmd.AddCommand(autostartInstallCmd)
	autostartCmd.AddCommand(autostartRemoveCmd)
	autostartCmd.AddCommand(autostartStatusCmd)

	rootCmd.AddCommand(formCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(autostartCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withAgent builds the agent, runs fn with a context cancelled on SIGINT or
// SIGTERM, and closes the agent afterwards
func withAgent(fn func(ctx context.Context, a *agent.Agent) error) error {
	a, err := agent.New(cfgFile, version)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return fn(ctx, a)
}

func runForm(cmd *cobra.Command, _ []string) error {
	return withAgent(func(ctx context.Context, a *agent.Agent) error {
		return a.RunForm(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	})
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	return withAgent(func(ctx context.Context, a *agent.Agent) error {
		return a.SubmitOnce(ctx, selectionFromFlags(), cmd.OutOrStdout())
	})
}

func runList(cmd *cobra.Command, args []string) error {
	return withAgent(func(ctx context.Context, a *agent.Agent) error {
		items, err := listItems(ctx, a.Directory(), args[0])
		if err != nil {
			return err
		}
		for _, it := range items {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", it.ID, it.Label)
		}
		return nil
	})
}

func runLookup(cmd *cobra.Command, args []string) error {
	return withAgent(func(ctx context.Context, a *agent.Agent) error {
		return printJSON(cmd, a.Directory().FetchAssignment(ctx, args[0]))
	})
}

func runCollect(cmd *cobra.Command, _ []string) error {
	return withAgent(func(ctx context.Context, a *agent.Agent) error {
		return printJSON(cmd, a.Collect(ctx))
	})
}

func runAutostartInstall(cmd *cobra.Command, _ []string) error {
	return withAgent(func(_ context.Context, a *agent.Agent) error {
		m := a.Autostart()
		if err := m.Install(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Autostart %s installed\n", m.Name())
		return nil
	})
}

func runAutostartRemove(cmd *cobra.Command, _ []string) error {
	return withAgent(func(_ context.Context, a *agent.Agent) error {
		m := a.Autostart()
		if err := m.Uninstall(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Autostart %s removed\n", m.Name())
		return nil
	})
}

func runAutostartStatus(cmd *cobra.Command, _ []string) error {
	return withAgent(func(_ context.Context, a *agent.Agent) error {
		m := a.Autostart()
		status, err := m.Status()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Autostart %s: %s\n", m.Name(), status)
		return nil
	})
}

func runLogs(cmd *cobra.Command, _ []string) error {
	return withAgent(func(_ context.Context, a *agent.Agent) error {
		lines, err := a.TailLog(logLines)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	})
}

func runDaemon(_ *cobra.Command, _ []string) error {
	a, err := agent.New(cfgFile, version)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.RunDaemon()
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
