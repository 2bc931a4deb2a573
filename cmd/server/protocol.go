// Package main provides a TCP SQL server for NestDB.
package main

import (
	"encoding/json"

	"github.com/nestdb/nestdb/core"
	"github.com/nestdb/nestdb/db"
)

// Request represents a SQL query from the client.
type Request struct {
	Query string `json:"query"`
}

// Response represents the server's response to a query.
type Response struct {
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
	Type     string          `json:"type,omitempty"` // "query" or "auth"
	Results  []ResultPayload `json:"results,omitempty"`
	Warning  string          `json:"warning,omitempty"`
	Database string          `json:"database,omitempty"`
	TimeMs   float64         `json:"time_ms,omitempty"`
	Auth     *AuthResponse   `json:"auth,omitempty"`
}

// ResultPayload carries one normalized statement result.
type ResultPayload struct {
	Kind      string     `json:"kind"`
	Statement string     `json:"statement,omitempty"`
	Columns   []string   `json:"columns,omitempty"`
	Rows      []core.Row `json:"rows,omitempty"`
	Value     any        `json:"value,omitempty"`
	Message   string     `json:"message,omitempty"`
	Form      *db.Form   `json:"form,omitempty"`
}

// AuthResponse reports the outcome of an AUTH command.
type AuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity,omitempty"`
	ExpiresIn     int    `json:"expires_in,omitempty"`
}

// EncodeResponse serializes a Response to JSON with a newline.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeRequest parses a JSON request from a byte slice.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	err := json.Unmarshal(data, &req)
	return req, err
}

// toPayload flattens a batch result into wire payloads.
func toPayload(res db.Result) []ResultPayload {
	out := make([]ResultPayload, 0, len(res.Data))
	for _, set := range res.Data {
		out = append(out, ResultPayload{
			Kind:      string(set.Kind),
			Statement: set.Statement,
			Columns:   set.Columns,
			Rows:      set.Rows,
			Value:     set.Value,
			Message:   set.Message,
			Form:      set.Form,
		})
	}
	return out
}
