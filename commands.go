package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"i4.energy/across/expresslink/at"
	"i4.energy/across/expresslink/expresslink"
)

var execCmd = &cobra.Command{
	Use:   "exec COMMAND...",
	Short: "Send one command (without the AT+ prefix) and print the response",
	Example: `  expresslink exec CONF? ThingName
  expresslink exec SEND1 hello world`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLink(cmd, func(ctx context.Context, el *expresslink.ExpressLink) error {
			resp, err := el.Execute(ctx, commandLine(args))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatResponse(resp))
			return resp.Err()
		})
	},
}

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Take pending events from the module's event queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		follow, _ := cmd.Flags().GetBool("follow")
		interval, _ := cmd.Flags().GetDuration("interval")
		return withLink(cmd, func(ctx context.Context, el *expresslink.ExpressLink) error {
			return drainEvents(ctx, el, cmd.OutOrStdout(), follow, interval)
		})
	},
}

var confCmd = &cobra.Command{
	Use:   "conf",
	Short: "Read and write configuration keys",
}

var confGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print the value of a configuration key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLink(cmd, func(ctx context.Context, el *expresslink.ExpressLink) error {
			v, err := el.Conf().Get(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		})
	},
}

var confSetCmd = &cobra.Command{
	Use:   "set KEY VALUE...",
	Short: "Write a configuration key",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLink(cmd, func(ctx context.Context, el *expresslink.ExpressLink) error {
			return el.Conf().Set(ctx, args[0], strings.Join(args[1:], " "))
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the module's identification keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLink(cmd, func(ctx context.Context, el *expresslink.ExpressLink) error {
			info, err := el.Info(ctx)
			printInfo(cmd.OutOrStdout(), info)
			return err
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the module's connection status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLink(cmd, func(ctx context.Context, el *expresslink.ExpressLink) error {
			st, err := el.ConnectionStatus(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "connected: %t\nonboarded: %t\n", st.Connected, st.Onboarded)
			if st.Detail != "" {
				fmt.Fprintf(out, "detail:    %s\n", st.Detail)
			}
			return nil
		})
	},
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List the serial ports on this host",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := expresslink.PortNames()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	eventCmd.Flags().BoolP("follow", "f", false, "Keep polling for new events until interrupted")
	eventCmd.Flags().Duration("interval", time.Second, "Polling interval with --follow")

	confCmd.AddCommand(confGetCmd, confSetCmd)
	rootCmd.AddCommand(execCmd, eventCmd, confCmd, infoCmd, statusCmd, portsCmd)
}

// commandLine joins command arguments and drops a typed AT+ prefix.
func commandLine(args []string) string {
	line := strings.TrimSpace(strings.Join(args, " "))
	if len(line) >= 3 && strings.EqualFold(line[:3], "AT+") {
		line = line[3:]
	}
	return line
}

// formatResponse renders a response the way the module sent it.
func formatResponse(resp expresslink.Response) string {
	var status string
	switch {
	case resp.Timeout:
		status = "TIMEOUT"
	case resp.OK():
		status = "OK"
	case resp.Type == at.TypeError:
		status = fmt.Sprintf("ERR%d", resp.Code)
	default:
		status = "MALFORMED"
	}
	if resp.Payload == "" {
		return status
	}
	return status + " " + resp.Payload
}

// drainEvents prints events until the queue is empty, or until ctx is done
// when follow is set.
func drainEvents(ctx context.Context, el *expresslink.ExpressLink, out io.Writer, follow bool, interval time.Duration) error {
	for {
		ev, err := el.PollEvent(ctx)
		if err != nil {
			return err
		}
		if ev != nil {
			fmt.Fprintln(out, formatEvent(*ev))
			continue
		}
		if !follow {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func formatEvent(ev expresslink.Event) string {
	s := fmt.Sprintf("%d %d %s", int(ev.ID), ev.Parameter, ev.Mnemonic)
	if ev.Detail != "" {
		s += " " + ev.Detail
	}
	return s
}

func printInfo(out io.Writer, info map[string]string) {
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return slices.Index(expresslink.InfoKeys, a) - slices.Index(expresslink.InfoKeys, b)
	})
	for _, k := range keys {
		fmt.Fprintf(out, "%-12s %s\n", k+":", info[k])
	}
}
