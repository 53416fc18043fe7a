package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-wiz/internal/bridges/wiz"
)

// handleGetState reads the bulb's current pilot state.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "getState", nil)
}

// handleScenes lists the built-in scene table.
func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "getScenes", nil)
}

// handleDiscover broadcasts for bulbs and adopts the first responder.
// With ?state=true the new target's state is read in the same call.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	verb := "discover"
	if withState, _ := strconv.ParseBool(r.URL.Query().Get("state")); withState {
		verb = "discoverAndGetState"
	}
	s.dispatch(w, r, verb, nil)
}

// handleClearCache forgets the remembered bulb.
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "clearCache", nil)
}

// handleListBulbs lists every bulb in the bulb log.
func (s *Server) handleListBulbs(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "bulbs", nil)
}

// handleHistory returns recent state reads for one bulb.
// GET /api/v1/bulbs/{mac}/history?limit=N
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	args := []string{chi.URLParam(r, "mac")}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		args = append(args, limit)
	}
	s.dispatch(w, r, "history", args)
}

// handleCommands returns the command audit trail, newest first.
// GET /api/v1/commands?limit=N
func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	var args []string
	if limit := r.URL.Query().Get("limit"); limit != "" {
		args = append(args, limit)
	}
	s.dispatch(w, r, "commands", args)
}

// handleVerb runs any named verb with arguments taken from a JSON object
// body, e.g. POST /api/v1/bulb/setRGB {"r": 255, "g": 0, "b": 64}.
func (s *Server) handleVerb(w http.ResponseWriter, r *http.Request) {
	verb := chi.URLParam(r, "verb")

	body, err := decodeArgs(r.Body)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var args []string
	for _, name := range wiz.VerbParams(verb) {
		value, present := body[name]
		if !present {
			break
		}
		arg, err := argString(value)
		if err != nil {
			writeBadRequest(w, fmt.Sprintf("%s: %v", name, err))
			return
		}
		args = append(args, arg)
	}

	s.dispatch(w, r, verb, args)
}

// dispatch runs a verb and writes its envelope with a matching status.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, verb string, args []string) {
	env := s.controller.Dispatch(r.Context(), verb, args)
	if !env.Success() {
		s.logger.Debug("verb failed",
			"verb", verb,
			"message", env.Message(),
			"reason", string(env.Reason()),
			"request_id", requestID(r),
		)
	}
	writeJSON(w, envelopeStatus(env), env)
}

// envelopeStatus maps an envelope to an HTTP status code.
func envelopeStatus(env wiz.Envelope) int {
	if env.Success() {
		return http.StatusOK
	}
	switch env.Reason() {
	case wiz.ReasonNoDeviceFound:
		return http.StatusNotFound
	case wiz.ReasonTimeout:
		return http.StatusGatewayTimeout
	case wiz.ReasonTransportError, wiz.ReasonMalformedReply, wiz.ReasonDeviceError:
		return http.StatusBadGateway
	}
	if env.Message() == wiz.MsgBulbLogDisabled {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadRequest
}

// decodeArgs reads an optional JSON object body. An empty body yields no
// arguments.
func decodeArgs(body io.Reader) (map[string]any, error) {
	if body == nil {
		return nil, nil
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return args, nil
}

// argString renders a JSON value the way it would be typed on the command
// line.
func argString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}
