package main

import (
	"encoding/json"
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

type cliOptions struct {
	endpoint string
	jsonOut  bool
	timeout  time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "fractal",
		Short:         "Query and contribute to a fractald knowledge node",
		Version:       fmt.Sprintf("%s (%s, %s)", Version, Commit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.endpoint, "endpoint", envOrDefault("FRACTAL_ENDPOINT", client.DefaultEndpoint), "fractald base URL")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print raw JSON")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(
		newStatsCmd(opts),
		newNodeCmd(opts),
		newExpandCmd(opts),
		newSubnodesCmd(opts),
		newFamilyCmd(opts),
		newLevelsCmd(opts),
		newContributeCmd(opts),
		newContributionCmd(opts),
		newContributionsCmd(opts),
		newOutboxCmd(opts),
		newExportCmd(opts),
		newPeersCmd(opts),
	)
	return root
}

func (o *cliOptions) client() *client.Client {
	return client.NewClient(o.endpoint)
}

// emit prints v as JSON when --json is set and otherwise calls text.
func (o *cliOptions) emit(w io.Writer, v any, text func(io.Writer)) error {
	if o.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func newStatsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show storage statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd, opts)
			defer cancel()
			stats, err := opts.client().Stats(ctx)
			if err != nil {
				return describe(err)
			}
			return opts.emit(cmd.OutOrStdout(), stats, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "Version:\t%s\n", stats.Version)
				fmt.Fprintf(tw, "Base nodes:\t%d\n", stats.TotalNodes)
				fmt.Fprintf(tw, "Subnodes:\t%d\n", stats.TotalSubnodes)
				fmt.Fprintf(tw, "Contributions:\t%d\n", stats.TotalContributions)
				fmt.Fprintf(tw, "Users:\t%d\n", stats.TotalUsers)
				fmt.Fprintf(tw, "Max level:\t%d\n", stats.FractalLevel)
				fmt.Fprintf(tw, "Size:\t%d bytes\n", stats.TotalSize)
				tw.Flush()
			})
		},
	}
}

func newNodeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "node <id>",
		Short: "Show a node with its hierarchy annotations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd, opts)
			defer cancel()
			view, err := opts.client().GetNode(ctx, args[0])
			if err != nil {
				return describe(err)
			}
			return opts.emit(cmd.OutOrStdout(), view, func(w io.Writer) {
				printNode(w, view.Node)
				fmt.Fprintf(w, "Context:    %s\n", view.FractalContext)
				if view.ParentContext != "" {
					fmt.Fprintf(w, "Parent:     %s (%s)\n", view.ParentID, view.ParentContext)
				}
				if view.ExpansionAvailable {
					fmt.Fprintf(w, "Subnodes:   %d\n", view.SubnodeCount)
				}
			})
		},
	}
}

func newExpandCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "expand <id>",
		Short: "Show the derivatives of a base node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd, opts)
			defer cancel()
			exp, err := opts.client().Expand(ctx, args[0])
			if err != nil {
				return describe(err)
			}
			return opts.emit(cmd.OutOrStdout(), exp, func(w io.Writer) {
				fmt.Fprintf(w, "%s (%d expansions)\n", exp.Node.ID, exp.Total)
				printNodeTable(w, exp.Derivatives)
			})
		},
	}
}

func newSubnodesCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "subnodes <id>",
		Short: "List the derivatives stored under a base node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd, opts)
			defer cancel()
			nodes, err := opts.client().Subnodes(ctx, args[0])
			if err != nil {
				return describe(err)
			}
			return opts.emit(cmd.OutOrStdout(), nodes, func(w io.Writer) {
				printNodeTable(w, nodes)
			})
		},
	}
}

func newFamilyCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "family <scientific|symbolic|physical-state>",
		Short: "List the nodes tagged with any context of a family",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd, opts)
			defer cancel()
			nodes, err := opts.client().NodesByFamily(ctx, args[0])
			if err != nil {
				return describe(err)
			}
			return opts.emit(cmd.OutOrStdout(), nodes, func(w io.Writer) {
				printNodeTable(w, nodes)
			})
		},
	}
}

func newLevelsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "levels",
		Short: "Summarize the populated fractal levels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd, opts)
			defer cancel()
			levels, err := opts.client().Levels(ctx)
			if err != nil {
				return describe(err)
			}
			return opts.emit(cmd.OutOrStdout(), levels, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "LEVEL\tNAME\tNODES")
				for _, lvl := range levels.FractalLevels {
					stat := levels.LevelStatistics[fmt.Sprintf("level_%d", lvl)]
					fmt.Fprintf(tw, "%d\t%s\t%d\n", lvl, stat.Name, stat.Count)
				}
				tw.Flush()
			})
		},
	}
}

func newContributeCmd(opts *cliOptions) *cobra.Command {
	var (
		actor      string
		resonance  float64
		contextArg string
	)
	cmd := &cobra.Command{
		Use:   "contribute <node-id> <content>",
		Short: "Submit a contribution to a node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := client.Contribution{Actor: actor, NodeID: args[0], Content: args[1]}
			if cmd.Flags().Changed("resonance") {
				in.Resonance = &resonance
			}
			if contextArg != "" {
				c, err := graph.ParseContext(contextArg)
				if err != nil {
					return err
				}
				in.Context = &c
			}

			ctx, cancel := withTimeout(cmd, opts)
			defer cancel()
			receipt, err := opts.client().Contribute(ctx, in)
			if err != nil {
				return describe(err)
			}
			return opts.emit(cmd.OutOrStdout(), receipt, func(w io.Writer) {
				fmt.Fprintf(w, "Contribution accepted: %s\n", receipt.ID)
				fmt.Fprintf(w, "Hash: %s\n", receipt.ContentHash)
				fmt.Fprintf(w, "Resonance: %.2f\n", receipt.Resonance)
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", os.Getenv("FRACTAL_ACTOR"), "contributing user (default anonymous)")
	cmd.Flags().Float64Var(&resonance, "resonance", graph.DefaultResonance, "resonance weight, usually in [0,1]")
	cmd.Flags().StringVar(&contextArg, "context", "", "fractal context, e.g. scientific:empirical or hybrid:scientific:empirical+symbolic:personal")
	return cmd
}

func newContributionCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "contribution <hash>",
		Short: "Look up a contribution by content hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd, opts)
			defer cancel()
			c, err := opts.client().GetContribution(ctx, args[0])
			if err != nil {
				return describe(err)
			}
			return opts.emit(cmd.OutOrStdout(), c, func(w io.Writer) {
				printContributionTable(w, []graph.Contribution{c})
			})
		},
	}
}

func newContributionsCmd(opts *cliOptions) *cobra.Command {
	var nodeID, userID string
	cmd := &cobra.Command{
		Use:   "contributions",
		Short: "List contributions for a node or a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (nodeID == "") == (userID == "") {
				return errors.New("exactly one of --node or --user is required")
			}
			ctx, cancel := withTimeout(cmd, opts)
			defer cancel()

			var (
				list []graph.Contribution
				err  error
			)
			if nodeID != "" {
				list, err = opts.client().ContributionsByNode(ctx, nodeID)
			} else {
				list, err = opts.client().ContributionsByUser(ctx, userID)
			}
			if err != nil {
				return describe(err)
			}
			return opts.emit(cmd.OutOrStdout(), list, func(w io.Writer) {
				printContributionTable(w, list)
			})
		},
	}
	cmd.Flags().StringVar(&nodeID, "node", "", "node id")
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	return cmd
}

func newOutboxCmd(opts *cliOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Show the most recent contributions as activities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd, opts)
			defer cancel()
			outbox, err := opts.client().Outbox(ctx, limit)
			if err != nil {
				return describe(err)
			}
			return opts.emit(cmd.OutOrStdout(), outbox, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "PUBLISHED\tACTOR\tNODE\tCONTENT")
				for _, item := range outbox.OrderedItems {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
						item.Published.Format(time.RFC3339), item.Actor, item.Object.NodeID, truncate(item.Object.Content, 48))
				}
				tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of activities")
	return cmd
}

func newExportCmd(opts *cliOptions) *cobra.Command {
	var (
		export   client.ExportOptions
		from, to string
		output   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export contributions or nodes as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if export.From, err = parseTime(from); err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			if export.To, err = parseTime(to); err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			ctx, cancel := withTimeout(cmd, opts)
			defer cancel()
			return describe(opts.client().Export(ctx, w, export))
		},
	}
	cmd.Flags().StringVar(&export.Type, "type", "contributions", "report type: contributions|nodes")
	cmd.Flags().StringVar(&export.NodeID, "node", "", "filter by node id")
	cmd.Flags().StringVar(&export.UserID, "user", "", "filter by user id")
	cmd.Flags().IntVar(&export.Level, "level", 0, "filter nodes by fractal level")
	cmd.Flags().StringVar(&from, "from", "", "RFC3339 start of the window")
	cmd.Flags().StringVar(&to, "to", "", "RFC3339 end of the window")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newPeersCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "peers",
		Short: "List federation peers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd, opts)
			defer cancel()
			peers, err := opts.client().Peers(ctx)
			if err != nil {
				return describe(err)
			}
			return opts.emit(cmd.OutOrStdout(), peers, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tURL\tSTATUS\tCAPABILITIES")
				for _, p := range peers {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.URL, p.Status, strings.Join(p.Capabilities, ","))
				}
				tw.Flush()
			})
		},
	}
}
