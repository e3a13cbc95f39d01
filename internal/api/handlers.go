package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/sells-group/waste-risk/internal/geospatial"
	"github.com/sells-group/waste-risk/internal/inference"
)

const (
	riskDataKey  = "risk-data"
	maxBodyBytes = 1 << 20
)

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"message": Banner})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	model := "ready"
	if err := s.svc.Ready(r.Context()); err != nil {
		model = "unavailable"
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok", "model": model})
}

func (s *Server) riskData(w http.ResponseWriter, r *http.Request) {
	if s.cache != nil {
		if v, ok := s.cache.Get(riskDataKey); ok {
			writeRaw(w, r, "application/geo+json", v.([]byte))
			return
		}
	}

	data, err := geospatial.ReadFile(s.opts.RiskDataPath)
	if errors.Is(err, geospatial.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "Risk data not generated yet.")
		return
	}
	if err != nil {
		zap.L().Error("api: read risk data", zap.String("path", s.opts.RiskDataPath), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "risk data could not be read")
		return
	}
	if !json.Valid(data) {
		zap.L().Error("api: risk data is not valid JSON", zap.String("path", s.opts.RiskDataPath))
		writeError(w, r, http.StatusInternalServerError, "risk data is corrupt")
		return
	}

	if s.cache != nil {
		s.cache.Set(riskDataKey, data, cache.DefaultExpiration)
	}
	writeRaw(w, r, "application/geo+json", data)
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	var req inference.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		status, msg := decodeError(err)
		writeError(w, r, status, msg)
		return
	}

	fv, err := req.FeatureVector()
	if err != nil {
		writeError(w, r, statusFor(err), err.Error())
		return
	}

	pred, err := s.svc.Predict(r.Context(), fv)
	if err != nil {
		writeError(w, r, statusFor(err), messageFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, pred)
}

func (s *Server) modelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, inference.ModelInfo(s.opts.ModelName))
}

// decodeError maps body decoding failures: malformed JSON is 400, a JSON
// value of the wrong type is 422.
func decodeError(err error) (int, string) {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return http.StatusUnprocessableEntity, typeErr.Field + " must be a " + expectedType(typeErr)
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge, "request body too large"
	}
	if errors.Is(err, io.EOF) {
		return http.StatusBadRequest, "request body is required"
	}
	return http.StatusBadRequest, "invalid JSON body"
}

func expectedType(e *json.UnmarshalTypeError) string {
	t := e.Type.String()
	switch {
	case strings.Contains(t, "float"):
		return "number"
	case strings.Contains(t, "string"):
		return "string"
	}
	return t
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, inference.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, inference.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, inference.ErrInvalidInput):
		return err.Error()
	case errors.Is(err, inference.ErrUnavailable):
		return "Model not trained yet."
	}
	return "prediction failed"
}
