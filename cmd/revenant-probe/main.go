// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"net"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/revenant/binder"
	"github.com/bureau-foundation/revenant/lib/codec"
	"github.com/bureau-foundation/revenant/lib/config"
	"github.com/bureau-foundation/revenant/lib/hostinfo"
	"github.com/bureau-foundation/revenant/lib/ipc"
	"github.com/bureau-foundation/revenant/lib/version"
)

const usageText = `revenant-probe inspects the revival transport and running daemons.

Usage:
  revenant-probe probe [--device PATH]
  revenant-probe start --package NAME --component NAME --platform-version N [--device PATH]
  revenant-probe diag
  revenant-probe status [--socket PATH | --config FILE --identity NAME] [--diagnostics]
  revenant-probe --version
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usageText)
		return fmt.Errorf("subcommand required")
	}
	switch args[0] {
	case "--version":
		fmt.Printf("revenant-probe %s\n", version.Info())
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(os.Stderr, usageText)
		return nil
	case "probe":
		return cmdProbe(args[1:])
	case "start":
		return cmdStart(args[1:])
	case "diag":
		return cmdDiag(args[1:])
	case "status":
		return cmdStatus(args[1:])
	}
	fmt.Fprint(os.Stderr, usageText)
	return fmt.Errorf("unknown subcommand %q", args[0])
}

func cmdProbe(args []string) error {
	flags := pflag.NewFlagSet("probe", pflag.ContinueOnError)
	device := flags.String("device", binder.DefaultDevice, "binder device node")
	if err := flags.Parse(args); err != nil {
		return err
	}

	transport := binder.NewTransport(*device)
	if !transport.Attach() {
		return fmt.Errorf("device %s: %w", *device, transport.Err())
	}
	fmt.Printf("device %s: available (protocol version %d)\n", *device, binder.ProtocolVersion)
	return nil
}

func cmdStart(args []string) error {
	flags := pflag.NewFlagSet("start", pflag.ContinueOnError)
	device := flags.String("device", binder.DefaultDevice, "binder device node")
	pkg := flags.String("package", "", "target package identifier")
	component := flags.String("component", "", "fully-qualified component class")
	platformVersion := flags.Int("platform-version", 0, "platform release the supervisor speaks")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *pkg == "" || *component == "" {
		return fmt.Errorf("start requires --package and --component")
	}
	if *platformVersion < 1 {
		return fmt.Errorf("start requires --platform-version, a positive release number")
	}

	channel, err := binder.Open(*device)
	if err != nil {
		return err
	}
	defer channel.Close()

	handle, err := binder.ResolveSupervisor(channel)
	if err != nil {
		return err
	}
	target := binder.StartTarget{Package: *pkg, Component: *component}
	if err := binder.StartService(channel, handle, target, *platformVersion); err != nil {
		return err
	}
	fmt.Printf("start delivered: %s via handle %d\n", target, handle)
	return nil
}

func cmdDiag(args []string) error {
	flags := pflag.NewFlagSet("diag", pflag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}

	memory := hostinfo.Memory()
	writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "pid\t%d\n", os.Getpid())
	if nice, err := hostinfo.Nice(0); err == nil {
		fmt.Fprintf(writer, "nice\t%d\n", nice)
	}
	fmt.Fprintf(writer, "resident bytes\t%d\n", memory.SelfResidentBytes)
	fmt.Fprintf(writer, "virtual bytes\t%d\n", memory.SelfVirtualBytes)
	fmt.Fprintf(writer, "total memory\t%d\n", memory.TotalBytes)
	fmt.Fprintf(writer, "free memory\t%d\n", memory.FreeBytes)
	fmt.Fprintf(writer, "elevated\t%v\n", hostinfo.Elevated())
	fmt.Fprintf(writer, "processes\t%d\n", hostinfo.ProcessCount())
	return writer.Flush()
}

func cmdStatus(args []string) error {
	flags := pflag.NewFlagSet("status", pflag.ContinueOnError)
	socket := flags.String("socket", "", "daemon status socket path")
	configPath := flags.String("config", "", "config file used to derive the socket path")
	identity := flags.String("identity", "", "identity whose daemon to query")
	diagnostics := flags.Bool("diagnostics", false, "ask for host diagnostics instead of set status")
	if err := flags.Parse(args); err != nil {
		return err
	}

	socketPath, err := resolveSocket(*socket, *configPath, *identity)
	if err != nil {
		return err
	}

	action := ipc.ActionStatus
	if *diagnostics {
		action = ipc.ActionDiagnostics
	}
	response, err := query(socketPath, action)
	if err != nil {
		return err
	}
	if *diagnostics {
		return printDiagnostics(response.Diagnostics)
	}
	return printStatus(response.Status)
}

// resolveSocket picks the socket path: an explicit --socket wins,
// otherwise the configuration names it per identity.
func resolveSocket(socket, configPath, identity string) (string, error) {
	if socket != "" {
		return socket, nil
	}
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return "", err
	}
	if identity == "" {
		identity = cfg.Identity
	}
	if identity == "" {
		return "", fmt.Errorf("status requires --socket, or an identity (--identity or config)")
	}
	return cfg.StatusSocketPath(identity), nil
}

// query performs the one-request-per-connection exchange the daemon's
// status socket speaks.
func query(socketPath, action string) (*ipc.Response, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dialing daemon: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	if err := codec.NewEncoder(conn).Encode(ipc.Request{Action: action}); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	var response ipc.Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if !response.OK {
		return nil, fmt.Errorf("daemon: %s", response.Error)
	}
	return &response, nil
}

func printStatus(status *ipc.SetStatus) error {
	if status == nil {
		return fmt.Errorf("daemon returned no status payload")
	}
	transport := "unavailable"
	if status.TransportAvailable {
		transport = "available"
	}
	writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "identity\t%s\n", status.Identity)
	fmt.Fprintf(writer, "pid\t%d\n", status.PID)
	fmt.Fprintf(writer, "started\t%s\n", status.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "transport\t%s\n", transport)
	fmt.Fprintf(writer, "helper sha256\t%s\n", status.HelperBinaryHash)
	if err := writer.Flush(); err != nil {
		return err
	}

	if len(status.Relationships) == 0 {
		fmt.Println("no relationships")
		return nil
	}
	fmt.Println()
	writer = tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "SELF\tPEER\tSTATE\tSINCE\tWATCHDOG\tLAST ERROR\n")
	for _, entry := range status.Relationships {
		watchdog := "-"
		if entry.WatchdogPID > 0 {
			watchdog = fmt.Sprintf("%d", entry.WatchdogPID)
		}
		lastError := entry.LastError
		if lastError == "" {
			lastError = "-"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
			entry.Self, entry.Peer, entry.State,
			entry.Since.Format(time.RFC3339), watchdog, lastError)
	}
	return writer.Flush()
}

func printDiagnostics(diagnostics *ipc.Diagnostics) error {
	if diagnostics == nil {
		return fmt.Errorf("daemon returned no diagnostics payload")
	}
	writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "nice\t%d\n", diagnostics.Nice)
	fmt.Fprintf(writer, "resident bytes\t%d\n", diagnostics.SelfResidentBytes)
	fmt.Fprintf(writer, "virtual bytes\t%d\n", diagnostics.SelfVirtualBytes)
	fmt.Fprintf(writer, "total memory\t%d\n", diagnostics.TotalMemoryBytes)
	fmt.Fprintf(writer, "free memory\t%d\n", diagnostics.FreeMemoryBytes)
	fmt.Fprintf(writer, "elevated\t%v\n", diagnostics.Elevated)
	fmt.Fprintf(writer, "processes\t%d\n", diagnostics.ProcessCount)
	return writer.Flush()
}
