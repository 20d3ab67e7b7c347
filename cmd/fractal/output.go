package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmax-ai/fractald/pkg/client"
	"github.com/rmax-ai/fractald/pkg/graph"
)

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func withTimeout(cmd *cobra.Command, opts *cliOptions) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, opts.timeout)
}

// describe turns client errors into messages fit for a terminal.
func describe(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrNotFound):
		return fmt.Errorf("not found: %w", err)
	case errors.As(err, &apiErr):
		return err
	default:
		return fmt.Errorf("%w (is fractald running?)", err)
	}
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func contextNames(cs []graph.Context) string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.String()
	}
	return strings.Join(names, ",")
}

func printNode(w io.Writer, n graph.Node) {
	fmt.Fprintf(w, "ID:         %s\n", n.ID)
	fmt.Fprintf(w, "Name:       %s\n", n.Name)
	fmt.Fprintf(w, "Level:      %d\n", n.FractalLevel)
	fmt.Fprintf(w, "Flow state: %s\n", n.FlowState)
	fmt.Fprintf(w, "Resonance:  %.2f\n", n.Resonance)
	fmt.Fprintf(w, "Archetype:  %s\n", strings.Join(n.Archetype, ", "))
	if len(n.Contexts) > 0 {
		fmt.Fprintf(w, "Contexts:   %s\n", contextNames(n.Contexts))
	}
}

func printNodeTable(w io.Writer, nodes []graph.Node) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLEVEL\tFLOW\tRESONANCE")
	for _, n := range nodes {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%.2f\n", n.ID, n.FractalLevel, n.FlowState, n.Resonance)
	}
	tw.Flush()
}

func printContributionTable(w io.Writer, list []graph.Contribution) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tUSER\tNODE\tRESONANCE\tCONTENT")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\n",
			c.Timestamp.Format(time.RFC3339), c.UserID, c.NodeID, c.Resonance, truncate(c.Content, 48))
	}
	tw.Flush()
}
