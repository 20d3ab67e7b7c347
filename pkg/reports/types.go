package reports

import (
	"context"
	"io"
	"time"

	"github.com/rmax-ai/fractald/pkg/graph"
)

type ReportType string

const (
	ReportTypeContributions ReportType = "contributions"
	ReportTypeNodes         ReportType = "nodes"
)

type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
)

type ReportParams struct {
	Start   time.Time
	End     time.Time
	Filters map[string]interface{}
}

// ReportStore defines the interface for data access required by reports.
// *graph.Store satisfies it.
type ReportStore interface {
	Contributions() []graph.Contribution
	List() []graph.Node
}

type Generator interface {
	Generate(ctx context.Context, params ReportParams) (io.Reader, error)
}

func stringFilter(params ReportParams, key string) string {
	if v, ok := params.Filters[key].(string); ok {
		return v
	}
	return ""
}
