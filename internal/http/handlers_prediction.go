package http

import (
	"net/http"

	applog "kharcha/internal/log"
)

func (s *Server) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	preds, err := s.predictions.History(r.Context(), currentUser(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]predictionView, 0, len(preds))
	for _, p := range preds {
		views = append(views, newPredictionView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": views})
}

// handleCreatePrediction forecasts the requested month, next month when
// omitted. With "async": true the request is queued for the worker and
// answered with 202.
func (s *Server) handleCreatePrediction(w http.ResponseWriter, r *http.Request) {
	var req predictionRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	target, err := parseOptionalMonth(req.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user := currentUser(r.Context())

	if req.Async {
		if err := s.predictions.RequestForecast(r.Context(), user.ID, target); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	p, err := s.predictions.Generate(r.Context(), user.ID, target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Prediction served",
		applog.FieldMonth, p.Month.String(),
		applog.FieldPredictionID, p.ID)
	writeJSON(w, http.StatusCreated, newPredictionView(p))
}

func (s *Server) handleLatestPrediction(w http.ResponseWriter, r *http.Request) {
	p, err := s.predictions.Latest(r.Context(), currentUser(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPredictionView(p))
}
