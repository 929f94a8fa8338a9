package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"avva-desktop/internal/config"
	"avva-desktop/internal/ipc"
)

// errRemote marks a request the application answered with status "error".
var errRemote = errors.New("request failed")

type sendFunc func(endpoint string, req ipc.Request) (*ipc.Response, error)

func main() {
	root := newRootCmd(ipc.Send)
	if err := root.Execute(); err != nil {
		if errors.Is(err, errRemote) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(send sendFunc) *cobra.Command {
	var endpoint string
	root := &cobra.Command{
		Use:           "avvactl",
		Short:         "Query and control a running avva-desktop",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&endpoint, "socket", defaultEndpoint(), "Control socket path (ignored on windows)")

	request := func(cmd *cobra.Command, req ipc.Request) error {
		resp, err := send(endpoint, req)
		if err != nil {
			return fmt.Errorf("ipc error: %w", err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
		if strings.ToLower(resp.Status) == "error" {
			return errRemote
		}
		return nil
	}

	simple := func(use, short, action string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return request(cmd, ipc.NewRequest(action))
			},
		}
	}

	run := &cobra.Command{
		Use:   "run <program> [args...]",
		Short: "Run an allow-listed program through the shell plugin",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.NewRequest(ipc.ActionRun)
			req.Program = args[0]
			req.Args = args[1:]
			return request(cmd, req)
		},
	}
	// Flags after the program belong to it.
	run.Flags().SetInterspersed(false)

	root.AddCommand(
		simple("status", "Show application and helper status", ipc.ActionGetStatus),
		simple("ping", "Check that the application is reachable", ipc.ActionPing),
		simple("stop-helper", "Stop the background helper", ipc.ActionStopHelper),
		run,
	)
	return root
}

func defaultEndpoint() string {
	if runtime.GOOS == "windows" {
		return ""
	}
	if p := os.Getenv("AVVA_CONFIG"); p != "" {
		if cfg, err := config.Load(p); err == nil {
			return cfg.IPC.SocketPath
		}
	}
	return filepath.Join(config.Default().App.DataDir, "avva.sock")
}
