package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"fleetsense/core/logger"
	"fleetsense/core/model"
	"fleetsense/core/pipeline"
	"fleetsense/core/scheduler"
	"fleetsense/core/telemetry"
	"fleetsense/core/vehiclestate"
)

// Server exposes the decision pipeline and the scheduler over HTTP.
type Server struct {
	pipe   *pipeline.Pipeline
	sched  *scheduler.Scheduler
	states vehiclestate.Store
	log    logger.Logger
}

// NewServer assembles the HTTP surface.
func NewServer(pipe *pipeline.Pipeline, sched *scheduler.Scheduler, states vehiclestate.Store, log logger.Logger) *Server {
	return &Server{pipe: pipe, sched: sched, states: states, log: log}
}

// Routes returns the request multiplexer.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/vehicles/{id}/readings", s.handleSubmitReading)
	mux.HandleFunc("GET /api/vehicles/{id}/status", s.handleVehicleStatus)
	mux.HandleFunc("GET /api/vehicles", s.handleListVehicles)
	mux.HandleFunc("POST /api/appointments", s.handleRequestAppointment)
	mux.HandleFunc("GET /api/appointments/{id}", s.handleGetAppointment)
	mux.HandleFunc("DELETE /api/appointments/{id}", s.handleCancelAppointment)
	mux.HandleFunc("GET /api/slots", s.handleSlots)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Run serves the API until the context is canceled.
func (s *Server) Run(ctx context.Context, addr string, readTimeout time.Duration) error {
	srv := &http.Server{Addr: addr, Handler: s.Routes(), ReadTimeout: readTimeout}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleSubmitReading(w http.ResponseWriter, r *http.Request) {
	var raw telemetry.RawSample
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	// The path is authoritative for the vehicle identity.
	raw.VehicleID = r.PathValue("id")

	res, err := s.pipe.Process(r.Context(), raw)
	if err != nil {
		var verr *telemetry.ValidationError
		if errors.As(err, &verr) {
			s.writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		s.internalError(w, err)
		return
	}

	resp := struct {
		pipeline.Result
		BookingError string `json:"booking_error,omitempty"`
	}{Result: res}
	status := http.StatusOK
	if res.BookingError != nil {
		// The derived chain is still returned; the booking failure is
		// visible, never dropped.
		resp.BookingError = res.BookingError.Error()
		status = http.StatusConflict
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleVehicleStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.states.Get(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown vehicle")
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleListVehicles(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, struct {
		Vehicles []vehiclestate.Snapshot `json:"vehicles"`
	}{Vehicles: s.states.List()})
}

func (s *Server) handleRequestAppointment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VehicleID     string `json:"vehicle_id"`
		ServiceType   string `json:"service_type"`
		PreferredDate string `json:"preferred_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if req.VehicleID == "" || req.ServiceType == "" {
		s.writeError(w, http.StatusBadRequest, "vehicle_id and service_type are required")
		return
	}
	var preferred time.Time
	if req.PreferredDate != "" {
		var err error
		preferred, err = time.Parse("2006-01-02", req.PreferredDate)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "preferred_date must be YYYY-MM-DD")
			return
		}
	}

	appt, err := s.sched.Book(r.Context(), req.VehicleID, model.ServiceType(req.ServiceType), preferred, false)
	if err != nil {
		var noCap *scheduler.NoCapacityError
		if errors.As(err, &noCap) {
			s.writeError(w, http.StatusConflict, noCap.Error())
			return
		}
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, appt)
}

func (s *Server) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := s.sched.Appointment(r.Context(), r.PathValue("id"))
	if err != nil {
		var nf *scheduler.NotFoundError
		if errors.As(err, &nf) {
			s.writeError(w, http.StatusNotFound, nf.Error())
			return
		}
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, appt)
}

func (s *Server) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.Cancel(r.Context(), r.PathValue("id")); err != nil {
		var nf *scheduler.NotFoundError
		if errors.As(err, &nf) {
			s.writeError(w, http.StatusNotFound, nf.Error())
			return
		}
		s.internalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		s.writeError(w, http.StatusBadRequest, "date query parameter is required")
		return
	}
	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	slots, err := s.sched.DaySlots(r.Context(), day)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Date  string           `json:"date"`
		Slots []model.TimeSlot `json:"slots"`
	}{Date: dateStr, Slots: slots})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && s.log != nil {
		s.log.Errorf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	if s.log != nil {
		s.log.Errorf("internal error: %v", err)
	}
	s.writeError(w, http.StatusInternalServerError, "internal error")
}
