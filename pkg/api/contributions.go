package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rmax-ai/fractald/pkg/graph"
	"github.com/rmax-ai/fractald/pkg/metrics"
	"github.com/rmax-ai/fractald/pkg/reports"
)

const anonymousActor = "anonymous"

func (s *Server) handleContribution(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetContributionByHash(chi.URLParam(r, "hash"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleContributionsByNode(w http.ResponseWriter, r *http.Request) {
	list := s.store.GetContributionsByNode(chi.URLParam(r, "nodeID"))
	writeJSON(w, http.StatusOK, ContributionList{Contributions: list, Count: len(list)})
}

func (s *Server) handleContributionsByUser(w http.ResponseWriter, r *http.Request) {
	list := s.store.GetContributionsByUser(chi.URLParam(r, "userID"))
	writeJSON(w, http.StatusOK, ContributionList{Contributions: list, Count: len(list)})
}

// handleInbox accepts an ActivityPub Create activity and records its object
// as a contribution attributed to the activity's actor.
func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	var activity InboxActivity
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&activity); err != nil {
		writeBadRequest(w, "invalid activity: "+err.Error())
		return
	}
	if err := s.validate.Struct(activity); err != nil {
		writeBadRequest(w, validationDetails(err))
		return
	}

	actor := activity.Actor
	if actor == "" {
		actor = anonymousActor
	}

	receipt, err := s.store.CreateContribution(graph.NewContribution{
		NodeID:    activity.Object.NodeID,
		UserID:    actor,
		Content:   activity.Object.Content,
		Resonance: activity.Object.Resonance,
		Context:   activity.Object.FractalContext,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	metrics.ContributionsTotal.Inc()

	if actor != anonymousActor && s.peers.Touch(actor) {
		s.logger.Debug("peer_activity", zap.String("actor", actor))
	}

	writeJSON(w, http.StatusOK, InboxResponse{Status: "accepted", Result: receipt})
}

// handleExport streams the ledger as CSV. Query parameters node_id,
// user_id, from and to (RFC3339) narrow the export.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := reports.ReportParams{Filters: map[string]interface{}{}}
	for _, key := range []string{"node_id", "user_id", "level", "parent_id"} {
		if v := q.Get(key); v != "" {
			params.Filters[key] = v
		}
	}
	for key, dst := range map[string]*time.Time{"from": &params.Start, "to": &params.End} {
		if v := q.Get(key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeBadRequest(w, "invalid "+key+": must be RFC3339")
				return
			}
			*dst = t
		}
	}

	reportType := reports.ReportType(q.Get("type"))
	if reportType == "" {
		reportType = reports.ReportTypeContributions
	}
	gen, err := reports.NewReportGenerator(reportType, s.store)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	out, err := gen.Generate(r.Context(), params)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+string(reportType)+`.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, out); err != nil {
		s.logger.Warn("export_write_failed", zap.Error(err))
	}
}
