package measure

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

// Server exposes an Evaluator over the §4.H operations as mTLS JSON-over-
// HTTP handlers, single-tenant: Router is built once per Server so
// run_experiment's exclusive-core access is the Evaluator's concern, not
// this transport layer's (§5 "Scheduling").
type Server struct {
	Eval   Evaluator
	Log    *logrus.Logger
	Router *mux.Router
}

// NewServer wires the five §4.H routes onto a fresh gorilla/mux router.
func NewServer(eval Evaluator, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{Eval: eval, Log: log, Router: mux.NewRouter()}
	s.Router.HandleFunc("/get_insns", s.handleGetInsns).Methods(http.MethodPost)
	s.Router.HandleFunc("/get_num_ports", s.handleGetNumPorts).Methods(http.MethodPost)
	s.Router.HandleFunc("/get_description", s.handleGetDescription).Methods(http.MethodPost)
	s.Router.HandleFunc("/run_experiment", s.handleRunExperiment).Methods(http.MethodPost)
	s.Router.HandleFunc("/gen_code", s.handleGenCode).Methods(http.MethodPost)
	return s
}

// Listen starts an mTLS HTTP server on addr using m's certificate
// material, blocking until ctx is canceled or the server fails.
func (s *Server) Listen(ctx context.Context, addr string, m Material) error {
	tlsConfig, err := ServerTLSConfig(m)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:      addr,
		Handler:   s.Router,
		TLSConfig: tlsConfig,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServeTLS(m.CertFile, m.KeyFile)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) requestLog(op string) *logrus.Entry {
	return s.Log.WithField("component", "measure").WithField("op", op).WithField("request_id", xid.New().String())
}

func (s *Server) handleGetInsns(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog("get_insns")
	log.Info("handling request for instruction list")
	writeJSON(w, map[string]any{"insns": s.Eval.GetInsns()})
}

func (s *Server) handleGetNumPorts(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog("get_num_ports")
	log.Info("handling request for port number")
	writeJSON(w, map[string]any{"num_ports": s.Eval.GetNumPorts()})
}

func (s *Server) handleGetDescription(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog("get_description")
	log.Info("handling request for human-readable description")
	writeJSON(w, map[string]any{"description": s.Eval.GetDescription()})
}

func (s *Server) handleRunExperiment(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog("run_experiment")

	var req RunExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.WithError(err).Warn("malformed run_experiment request")
		writeJSON(w, map[string]any{"cycles": nil, "error_cause": "malformed request"})
		return
	}

	log.WithField("iseq", req.Insns).Info("handling request for running experiment")
	writeJSON(w, s.Eval.RunExperiment(r.Context(), req))
}

func (s *Server) handleGenCode(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog("gen_code")

	var req GenCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.WithError(err).Warn("malformed gen_code request")
		writeJSON(w, map[string]any{"error": "malformed request"})
		return
	}

	log.WithField("iseq", req.Insns).Info("handling request for generating code for experiment")
	body, numTestcaseInstances, err := s.Eval.GenCode(r.Context(), req)
	if err != nil {
		writeJSON(w, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, map[string]any{"code": body, "num_testcase_instances": numTestcaseInstances})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
