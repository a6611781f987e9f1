package storefront

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// envelope covers the response shapes the storefront API produces:
// {"success":..,"message":..,"data":X}, {"<key>":X} and bare X.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// unwrap strips the envelope once so callers only ever see the payload.
func unwrap(body []byte, key string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Success != nil && !*env.Success {
		msg := env.Message
		if msg == "" {
			msg = "request was not successful"
		}
		return nil, &APIError{Status: http.StatusUnprocessableEntity, Message: msg}
	}

	payload := trimmed
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		payload = env.Data
	}

	if key != "" && len(payload) > 0 && payload[0] == '{' {
		var keyed map[string]json.RawMessage
		if err := json.Unmarshal(payload, &keyed); err == nil {
			if inner, ok := keyed[key]; ok {
				payload = inner
			}
		}
	}
	return payload, nil
}

// decodeInto normalizes body and validates the result.
func decodeInto[T any](v *validator.Validate, body []byte, key string) (T, error) {
	var out T
	payload, err := unwrap(body, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("decode %T: %w", out, err)
	}

	switch reflect.Indirect(reflect.ValueOf(out)).Kind() {
	case reflect.Struct:
		err = v.Struct(out)
	case reflect.Slice:
		err = v.Var(out, "dive")
	}
	if err != nil {
		return out, fmt.Errorf("invalid %T in response: %w", out, err)
	}
	return out, nil
}
