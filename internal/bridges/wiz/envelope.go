package wiz

// Failure messages shown to callers.
const (
	MsgNoBulbFound     = "No bulb found"
	MsgNoBulbsFound    = "No bulbs found"
	MsgTimedOut        = "Timed out waiting for bulb reply"
	MsgCacheCleared    = "Cache cleared successfully"
	MsgCommandRequired = "Command required"
	MsgBulbLogDisabled = "Bulb log is not enabled"
)

// Envelope is the flat result object returned by every verb:
// {"success": bool, "message"?: string, ...payload}.
type Envelope map[string]any

// Success reports the envelope's success flag.
func (e Envelope) Success() bool {
	v, _ := e["success"].(bool)
	return v
}

// Message returns the envelope's message, if any.
func (e Envelope) Message() string {
	v, _ := e["message"].(string)
	return v
}

// Reason returns the engine failure reason, if any.
func (e Envelope) Reason() Reason {
	v, _ := e["reason"].(Reason)
	return v
}

// ok builds a success envelope from key/value pairs.
func ok(keysAndValues ...any) Envelope {
	env := Envelope{"success": true}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, isString := keysAndValues[i].(string); isString {
			env[key] = keysAndValues[i+1]
		}
	}
	return env
}

// fail builds a failure envelope with a message.
func fail(message string) Envelope {
	return Envelope{"success": false, "message": message}
}

// FailureEnvelope builds the envelope for an error raised outside any verb, such as
// a configuration or storage failure at startup.
func FailureEnvelope(err error) Envelope {
	return fail(err.Error())
}

// resultEnvelope converts an engine result to an envelope.
func resultEnvelope(res Result) Envelope {
	if res.OK() {
		return ok("response", res.Response)
	}

	var env Envelope
	switch res.Reason {
	case ReasonNoDeviceFound:
		env = fail(MsgNoBulbFound)
	case ReasonTimeout:
		env = fail(MsgTimedOut)
	default:
		env = fail(res.Err.Error())
	}
	env["reason"] = res.Reason
	return env
}
