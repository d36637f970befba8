package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"inferd/pkg/types"
)

func newStatusCmd() *cobra.Command {
	var server string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show resident models of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			st, err := fetchStatus(ctx, server)
			if err != nil {
				return err
			}
			printStatus(cmd, st)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "inferd base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}

func fetchStatus(ctx context.Context, base string) (types.StatusResponse, error) {
	var st types.StatusResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/status", nil)
	if err != nil {
		return st, err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return st, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return st, fmt.Errorf("GET /status: status=%d", res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}

func printStatus(cmd *cobra.Command, st types.StatusResponse) {
	out := cmd.OutOrStdout()
	state := color.GreenString(st.State)
	if st.State != "ready" {
		state = color.RedString(st.State)
	}
	fmt.Fprintf(out, "state: %s  resident: %d/%d  memory: %s  loads: %d  evictions: %d  uptime: %s\n",
		state, st.TotalResident, st.Capacity, humanize.Bytes(uint64(st.MemoryBytes)),
		st.LoadsTotal, st.EvictionsTotal, time.Duration(st.UptimeSeconds)*time.Second)
	if len(st.Models) == 0 {
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tMEMORY\tUSES\tAVG MS\tINFLIGHT\tLAST USED")
	for _, m := range st.Models {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%d\t%s\n",
			m.ModelID,
			humanize.Bytes(uint64(m.MemoryBytes)),
			humanize.Comma(int64(m.UsageCount)),
			m.AvgInferenceMs,
			m.Inflight,
			humanize.Time(time.Unix(m.LastUsed, 0)))
	}
	_ = tw.Flush()
}
