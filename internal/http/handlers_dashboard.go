package http

import (
	"net/http"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.expenses.Dashboard(r.Context(), currentUser(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDashboardView(d))
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	months, err := parseMonths(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := s.expenses.Charts(r.Context(), currentUser(r.Context()).ID, months)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newChartsView(data))
}
