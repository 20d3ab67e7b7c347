package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ContributionReport exports the contribution ledger in append order.
type ContributionReport struct {
	store ReportStore
}

// NewContributionReport creates a new ContributionReport generator.
func NewContributionReport(s ReportStore) *ContributionReport {
	return &ContributionReport{store: s}
}

// Generate writes one row per contribution. Supported filters are node_id
// and user_id; Start and End bound the contribution timestamp when set.
func (r *ContributionReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	headers := []string{"id", "node_id", "user_id", "resonance", "fractal_context", "hash", "timestamp"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	nodeID := stringFilter(params, "node_id")
	userID := stringFilter(params, "user_id")

	for _, c := range r.store.Contributions() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if nodeID != "" && c.NodeID != nodeID {
			continue
		}
		if userID != "" && c.UserID != userID {
			continue
		}
		if !params.Start.IsZero() && c.Timestamp.Before(params.Start) {
			continue
		}
		if !params.End.IsZero() && c.Timestamp.After(params.End) {
			continue
		}

		fractalContext := ""
		if c.Context != nil {
			fractalContext = c.Context.String()
		}
		row := []string{
			c.ID,
			c.NodeID,
			c.UserID,
			strconv.FormatFloat(c.Resonance, 'f', -1, 64),
			fractalContext,
			c.Hash(),
			c.Timestamp.UTC().Format(time.RFC3339Nano),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush writer: %w", err)
	}

	return buf, nil
}
