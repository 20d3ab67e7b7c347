package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// NodeReport exports the node table sorted by id.
type NodeReport struct {
	store ReportStore
}

// NewNodeReport creates a new NodeReport generator.
func NewNodeReport(s ReportStore) *NodeReport {
	return &NodeReport{store: s}
}

// Generate writes one row per node. The level filter restricts output to a
// single fractal level; parent_id restricts it to the derivatives of one base.
func (r *NodeReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	headers := []string{"id", "name", "fractal_level", "parent_id", "flow_state", "resonance", "archetype", "contexts"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	level := 0
	if l := stringFilter(params, "level"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid level filter %q", l)
		}
		level = n
	}
	parentID := stringFilter(params, "parent_id")

	for _, n := range r.store.List() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if level != 0 && n.FractalLevel != level {
			continue
		}
		if parentID != "" && n.ParentID != parentID {
			continue
		}

		contexts := make([]string, len(n.Contexts))
		for i, c := range n.Contexts {
			contexts[i] = c.String()
		}
		row := []string{
			n.ID,
			n.Name,
			strconv.Itoa(n.FractalLevel),
			n.ParentID,
			string(n.FlowState),
			strconv.FormatFloat(n.Resonance, 'f', -1, 64),
			strings.Join(n.Archetype, ";"),
			strings.Join(contexts, ";"),
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
