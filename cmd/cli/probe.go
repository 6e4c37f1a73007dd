package main

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/hamed0406/playlistchecker/internal/app"
	"github.com/hamed0406/playlistchecker/internal/domain"
	"github.com/hamed0406/playlistchecker/internal/probe"
	"github.com/hamed0406/playlistchecker/internal/scheduler"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <channel-url>",
		Short: "Probe a single channel and print every hop as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runProbe,
	}
}

func runProbe(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.logger.Sync() }()

	target := args[0]
	p := app.NewPipeline(e.cfg, e.logger, nil)
	res := p.Prober.Probe(cmd.Context(), target, probe.NewHostCache())

	out := struct {
		Report domain.ProbeReport `json:"report"`
		DNS    *probe.DNSStatus   `json:"dns,omitempty"`
	}{Report: scheduler.NewReport(target, res)}
	if res.Reason == probe.ReasonDownloadError {
		if u, err := url.Parse(target); err == nil && u.Hostname() != "" {
			dns := probe.CheckDNS(cmd.Context(), u.Hostname())
			out.DNS = &dns
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	if !res.Passed() {
		return fmt.Errorf("channel failed: %s", res.Reason)
	}
	return nil
}
