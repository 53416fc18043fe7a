package wiz

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestCommand_Encode(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{
			name: "getPilot",
			cmd:  GetPilotCommand(),
			want: `{"method":"getPilot","params":{}}`,
		},
		{
			name: "setPilot state",
			cmd:  SetPilotCommand(map[string]any{"state": true}),
			want: `{"method":"setPilot","params":{"state":true}}`,
		},
		{
			name: "registration",
			cmd:  RegistrationCommand("", ""),
			want: `{"method":"registration","params":{"id":1,"phoneIp":"1.2.3.4","phoneMac":"AAAAAAAAAAAA","register":false}}`,
		},
		{
			name: "zero value command",
			cmd:  Command{Method: MethodGetPilot},
			want: `{"method":"getPilot","params":{}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.Encode()
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Encode() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewCommand_CopiesParams(t *testing.T) {
	params := map[string]any{"dimming": 50}
	cmd := SetPilotCommand(params)
	params["dimming"] = 99

	if cmd.Params["dimming"] != 50 {
		t.Errorf("command params changed after construction: %v", cmd.Params)
	}
}

func TestParseRegistrationReply(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantMAC string
		wantOK  bool
	}{
		{name: "valid", data: `{"method":"registration","result":{"mac":"a8bb50000001","success":true}}`, wantMAC: "a8bb50000001", wantOK: true},
		{name: "wrong method", data: `{"method":"getPilot","result":{"mac":"a8bb50000001"}}`},
		{name: "empty mac", data: `{"method":"registration","result":{"mac":""}}`},
		{name: "no result", data: `{"method":"registration"}`},
		{name: "result not object", data: `{"method":"registration","result":"ok"}`},
		{name: "not json", data: `hello`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mac, ok := parseRegistrationReply([]byte(tt.data))
			if ok != tt.wantOK || mac != tt.wantMAC {
				t.Errorf("parseRegistrationReply() = %q, %v; want %q, %v", mac, ok, tt.wantMAC, tt.wantOK)
			}
		})
	}
}

func TestDecodeReply(t *testing.T) {
	if _, err := decodeReply([]byte(`{"result":{"success":true}}`)); err != nil {
		t.Errorf("decodeReply(object) error = %v", err)
	}
	for _, bad := range []string{`null`, `"text"`, `42`, `{`} {
		if _, err := decodeReply([]byte(bad)); !errors.Is(err, ErrMalformedReply) {
			t.Errorf("decodeReply(%s) error = %v, want ErrMalformedReply", bad, err)
		}
	}
}

func TestReplyError(t *testing.T) {
	var reply map[string]any
	if err := json.Unmarshal([]byte(`{"error":{"code":-32602,"message":"Invalid params"}}`), &reply); err != nil {
		t.Fatal(err)
	}
	msg, ok := replyError(reply)
	if !ok || msg != "Invalid params" {
		t.Errorf("replyError() = %q, %v", msg, ok)
	}

	if _, ok := replyError(map[string]any{"error": nil}); ok {
		t.Error("null error member should not count as an error")
	}
}

func TestFailure_WrapsSentinel(t *testing.T) {
	tests := []struct {
		reason   Reason
		sentinel error
	}{
		{ReasonTimeout, ErrTimeout},
		{ReasonMalformedReply, ErrMalformedReply},
		{ReasonNoDeviceFound, ErrNoDeviceFound},
		{ReasonTransportError, ErrTransport},
		{ReasonDeviceError, ErrDeviceError},
	}

	cause := errors.New("underlying")
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			res := Failure(tt.reason, cause)
			if res.OK() {
				t.Fatal("failure reported OK")
			}
			if !errors.Is(res.Err, tt.sentinel) || !errors.Is(res.Err, cause) {
				t.Errorf("Err = %v, want wrapping both sentinel and cause", res.Err)
			}
			if bare := Failure(tt.reason, nil); bare.Err != tt.sentinel {
				t.Errorf("Failure(nil cause).Err = %v, want bare sentinel", bare.Err)
			}
		})
	}
}
