package api

import (
	"net/http"
	"slices"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-wiz/internal/bridges/wiz"
)

func TestRoutes_DispatchVerbs(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantVerb string
		wantArgs []string
	}{
		{"get state", http.MethodGet, "/api/v1/bulb/state", "", "getState", nil},
		{"scenes", http.MethodGet, "/api/v1/scenes", "", "getScenes", nil},
		{"discover", http.MethodPost, "/api/v1/discover", "", "discover", nil},
		{"discover with state", http.MethodPost, "/api/v1/discover?state=true", "", "discoverAndGetState", nil},
		{"clear cache", http.MethodDelete, "/api/v1/cache", "", "clearCache", nil},
		{"bulbs", http.MethodGet, "/api/v1/bulbs", "", "bulbs", nil},
		{"history", http.MethodGet, "/api/v1/bulbs/a8bb50112233/history", "", "history", []string{"a8bb50112233"}},
		{"history with limit", http.MethodGet, "/api/v1/bulbs/a8bb50112233/history?limit=5", "", "history", []string{"a8bb50112233", "5"}},
		{"commands", http.MethodGet, "/api/v1/commands", "", "commands", nil},
		{"commands with limit", http.MethodGet, "/api/v1/commands?limit=3", "", "commands", []string{"3"}},
		{"brightness", http.MethodPost, "/api/v1/bulb/setBrightness", `{"brightness": 80}`, "setBrightness", []string{"80"}},
		{"rgb", http.MethodPost, "/api/v1/bulb/setRGB", `{"r": 255, "g": 0, "b": 64}`, "setRGB", []string{"255", "0", "64"}},
		{"warm white", http.MethodPost, "/api/v1/bulb/setWarmWhite", `{"brightness": 50, "temp": 2700}`, "setWarmWhite", []string{"50", "2700"}},
		{"scene with speed", http.MethodPost, "/api/v1/bulb/setSceneWithSpeed", `{"scene_id": 4, "speed": 10}`, "setSceneWithSpeed", []string{"4", "10"}},
		{"power bool", http.MethodPost, "/api/v1/bulb/setPower", `{"state": false}`, "setPower", []string{"false"}},
		{"power string", http.MethodPost, "/api/v1/bulb/setPower", `{"state": "on"}`, "setPower", []string{"on"}},
		{"extra keys ignored", http.MethodPost, "/api/v1/bulb/setColorTemp", `{"temp": 4000, "other": 1}`, "setColorTemp", []string{"4000"}},
		{"missing args stop early", http.MethodPost, "/api/v1/bulb/setRGB", `{"r": 1, "b": 3}`, "setRGB", []string{"1"}},
		{"empty body", http.MethodPost, "/api/v1/bulb/setBrightness", "", "setBrightness", nil},
		{"verb without params", http.MethodPost, "/api/v1/bulb/getState", "{}", "getState", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, ctrl := testServer(t)

			w, resp := do(t, srv, tt.method, tt.path, tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
			}
			if resp["success"] != true {
				t.Errorf("success = %v, want true", resp["success"])
			}

			call := ctrl.lastCall(t)
			if call.verb != tt.wantVerb {
				t.Errorf("verb = %q, want %q", call.verb, tt.wantVerb)
			}
			if !slices.Equal(call.args, tt.wantArgs) {
				t.Errorf("args = %q, want %q", call.args, tt.wantArgs)
			}
		})
	}
}

func TestVerb_BadBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{"brightness":`},
		{"not an object", `[80]`},
		{"nested value", `{"brightness": {"v": 80}}`},
		{"null value", `{"brightness": null}`},
		{"oversized", `{"brightness": "` + strings.Repeat("9", maxRequestBodySize) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, ctrl := testServer(t)

			w, resp := do(t, srv, http.MethodPost, "/api/v1/bulb/setBrightness", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if resp["code"] != ErrCodeBadRequest {
				t.Errorf("code = %v, want %s", resp["code"], ErrCodeBadRequest)
			}
			if msg, _ := resp["message"].(string); resp["success"] != false || msg == "" {
				t.Errorf("body = %v, want failure envelope with a message", resp)
			}
			if len(ctrl.calls) != 0 {
				t.Errorf("verb dispatched despite bad body: %+v", ctrl.calls)
			}
		})
	}
}

func TestEnvelopeStatus(t *testing.T) {
	tests := []struct {
		name string
		env  wiz.Envelope
		want int
	}{
		{"success", wiz.Envelope{"success": true}, http.StatusOK},
		{"no device", wiz.Envelope{"success": false, "message": wiz.MsgNoBulbFound, "reason": wiz.ReasonNoDeviceFound}, http.StatusNotFound},
		{"timeout", wiz.Envelope{"success": false, "message": wiz.MsgTimedOut, "reason": wiz.ReasonTimeout}, http.StatusGatewayTimeout},
		{"transport", wiz.Envelope{"success": false, "reason": wiz.ReasonTransportError}, http.StatusBadGateway},
		{"malformed", wiz.Envelope{"success": false, "reason": wiz.ReasonMalformedReply}, http.StatusBadGateway},
		{"device error", wiz.Envelope{"success": false, "reason": wiz.ReasonDeviceError}, http.StatusBadGateway},
		{"bulb log disabled", wiz.Envelope{"success": false, "message": wiz.MsgBulbLogDisabled}, http.StatusServiceUnavailable},
		{"bad argument", wiz.Envelope{"success": false, "message": "Brightness value required"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := envelopeStatus(tt.env); got != tt.want {
				t.Errorf("envelopeStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestVerb_FailureEnvelope(t *testing.T) {
	srv, ctrl := testServer(t)
	ctrl.results["getState"] = wiz.Envelope{
		"success": false,
		"message": wiz.MsgTimedOut,
		"reason":  wiz.ReasonTimeout,
	}

	w, resp := do(t, srv, http.MethodGet, "/api/v1/bulb/state", "")
	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", w.Code)
	}
	if resp["success"] != false {
		t.Errorf("success = %v, want false", resp["success"])
	}
	if resp["message"] != wiz.MsgTimedOut {
		t.Errorf("message = %v, want %q", resp["message"], wiz.MsgTimedOut)
	}
	if resp["reason"] != string(wiz.ReasonTimeout) {
		t.Errorf("reason = %v, want %q", resp["reason"], wiz.ReasonTimeout)
	}
}
