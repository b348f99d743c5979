package connector

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	AuthBasic  = "basic"
	AuthBearer = "bearer"
)

// fetchREST performs the configured outbound request and extracts rows from
// the JSON response body.
func (e *Executor) fetchREST(ctx context.Context, cfg *RESTConfig) ([]map[string]interface{}, error) {
	req, err := buildRESTRequest(ctx, cfg)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("request to %s failed: %v", cfg.URL, err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{
			Message: fmt.Sprintf("%s returned status %d: %s", cfg.URL, resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var payload interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("%s returned a non-JSON body: %v", cfg.URL, err), Err: err}
	}

	if cfg.ResultPath != "" {
		extracted, ok := lookupPath(payload, cfg.ResultPath)
		if !ok {
			return nil, &UpstreamError{Message: fmt.Sprintf("result path %q not found in response from %s", cfg.ResultPath, cfg.URL)}
		}
		payload = extracted
	}
	return toRows(payload), nil
}

// buildRESTRequest assembles the outbound request: method defaults to GET,
// the body is attached only for mutating methods, and the auth block is
// injected as an Authorization header.
func buildRESTRequest(ctx context.Context, cfg *RESTConfig) (*http.Request, error) {
	if cfg == nil || strings.TrimSpace(cfg.URL) == "" {
		return nil, configErrorf("rest connection has no url")
	}

	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	mutating := method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
	if mutating && cfg.Body != "" {
		body = strings.NewReader(cfg.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, body)
	if err != nil {
		return nil, configErrorf("invalid rest request: %v", err)
	}

	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if cfg.Auth != nil {
		switch strings.ToLower(cfg.Auth.Type) {
		case AuthBasic:
			credentials := base64.StdEncoding.EncodeToString([]byte(cfg.Auth.Username + ":" + cfg.Auth.Password))
			req.Header.Set("Authorization", "Basic "+credentials)
		case AuthBearer:
			req.Header.Set("Authorization", "Bearer "+cfg.Auth.Token)
		case "":
			// no auth block content, nothing to inject
		default:
			return nil, configErrorf("unsupported auth type %q", cfg.Auth.Type)
		}
	}
	return req, nil
}

// lookupPath walks a dot-path into nested JSON objects.
func lookupPath(value interface{}, path string) (interface{}, bool) {
	for _, key := range strings.Split(path, ".") {
		obj, ok := value.(map[string]interface{})
		if !ok {
			return nil, false
		}
		value, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return value, true
}

// toRows normalizes a decoded JSON value into tabular rows. Arrays become one
// row per element, a lone object becomes a single row, and scalars are
// wrapped under a "value" key.
func toRows(value interface{}) []map[string]interface{} {
	switch v := value.(type) {
	case nil:
		return []map[string]interface{}{}
	case []interface{}:
		rows := make([]map[string]interface{}, 0, len(v))
		for _, element := range v {
			if obj, ok := element.(map[string]interface{}); ok {
				rows = append(rows, obj)
			} else {
				rows = append(rows, map[string]interface{}{"value": element})
			}
		}
		return rows
	case map[string]interface{}:
		return []map[string]interface{}{v}
	default:
		return []map[string]interface{}{{"value": v}}
	}
}
