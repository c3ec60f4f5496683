package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/pipelinewatch/internal/series"
	"github.com/JakeFAU/pipelinewatch/internal/storage"
)

type pipelinesResponse struct {
	Pipelines []string `json:"pipelines"`
}

// reportResponse is one pipeline's table. Each row maps column name to
// value; absent values are null.
type reportResponse struct {
	Pipeline string           `json:"pipeline"`
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
}

func (s *Server) listPipelines(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, pipelinesResponse{Pipelines: s.pipelines.Names()})
}

func (s *Server) getPipeline(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, ok := s.pipelines.Get(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, "pipeline not found")
		return
	}
	n, err := s.rowsParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	table, err := s.store.Load(r.Context(), p)
	if err != nil {
		s.logger.Error("load snapshot failed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("pipeline", name),
			zap.Error(err),
		)
		msg := "failed to load snapshot"
		if errors.Is(err, series.ErrCorrupt) {
			msg = "snapshot is corrupt"
		}
		s.writeError(w, http.StatusInternalServerError, msg)
		return
	}
	s.writeJSON(w, http.StatusOK, buildReport(table, n))
}

func (s *Server) downloadPipeline(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := s.pipelines.Get(name); !ok {
		s.writeError(w, http.StatusNotFound, "pipeline not found")
		return
	}
	data, err := s.store.Raw(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "snapshot not written yet")
			return
		}
		s.logger.Error("read snapshot failed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("pipeline", name),
			zap.Error(err),
		)
		s.writeError(w, http.StatusInternalServerError, "failed to read snapshot")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", series.SnapshotName(name)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write snapshot failed", zap.String("pipeline", name), zap.Error(err))
	}
}

func (s *Server) rowsParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("rows")
	if raw == "" {
		return s.cfg.Scan.DefaultRows, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("rows must be a non-negative integer")
	}
	return n, nil
}

func buildReport(t *series.Table, n int) reportResponse {
	cols := t.Columns()
	resp := reportResponse{
		Pipeline: t.Pipeline(),
		Columns:  make([]string, 0, len(cols)+1),
		Rows:     []map[string]any{},
	}
	resp.Columns = append(resp.Columns, series.DateColumn)
	for _, c := range cols {
		resp.Columns = append(resp.Columns, c.Name)
	}
	for _, row := range t.Tail(n) {
		out := make(map[string]any, len(cols)+1)
		out[series.DateColumn] = row.Date.String()
		for _, c := range cols {
			out[c.Name] = cell(row, c)
		}
		resp.Rows = append(resp.Rows, out)
	}
	return resp
}

func cell(row series.Row, c series.Column) any {
	if c.Percent {
		if v, ok := row.Percents[c.Stage]; ok {
			return v
		}
		return nil
	}
	if v, ok := row.Counts[c.Stage]; ok {
		return v
	}
	return nil
}
