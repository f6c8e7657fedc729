package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/querypilot/querypilot/internal/assistant"
	"github.com/querypilot/querypilot/internal/conn"
	"github.com/querypilot/querypilot/internal/query"
	"github.com/querypilot/querypilot/internal/schema"
)

const maxRequestBytes = 1 << 20

type translateQueryRequest struct {
	NaturalLanguageQuery string        `json:"natural_language_query"`
	ConnectionDetails    *conn.Details `json:"connection_details,omitempty"`
	Execute              bool          `json:"execute"`
}

type sqlQueryRequest struct {
	SQLQuery          string        `json:"sql_query"`
	ConnectionDetails *conn.Details `json:"connection_details,omitempty"`
}

type connectResponse struct {
	Message string   `json:"message"`
	Tables  []string `json:"tables"`
}

type translateQueryResponse struct {
	SQLQuery     string `json:"sql_query"`
	Result       any    `json:"result,omitempty"`
	Message      string `json:"message,omitempty"`
	RowsAffected *int64 `json:"rows_affected,omitempty"`
	Truncated    bool   `json:"truncated,omitempty"`
}

type executeQueryResponse struct {
	Result       []query.Row `json:"result"`
	Message      string      `json:"message,omitempty"`
	RowsAffected *int64      `json:"rows_affected,omitempty"`
	Truncated    bool        `json:"truncated,omitempty"`
}

type explainQueryResponse struct {
	Explanation string `json:"explanation"`
}

func handleConnect(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var details conn.Details
	if !decodeBody(w, r, &details) {
		return
	}
	summary, err := deps.Pipeline.Connect(r.Context(), details)
	if err != nil {
		writePipelineError(w, err, "Connection failed")
		return
	}
	writeJSON(w, http.StatusOK, connectResponse{Message: "Connection successful", Tables: nonNil(summary.Tables)})
}

func handleUpdateModel(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var details conn.Details
	if !decodeBody(w, r, &details) {
		return
	}
	summary, err := deps.Pipeline.UpdateModel(r.Context(), details)
	if err != nil {
		writePipelineError(w, err, "Updating model failed")
		return
	}
	writeJSON(w, http.StatusOK, connectResponse{Message: "Model updated successfully", Tables: nonNil(summary.Tables)})
}

func handleTranslateQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req translateQueryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.NaturalLanguageQuery) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "natural_language_query is required")
		return
	}
	out, err := deps.Pipeline.Translate(r.Context(), assistant.TranslateInput{
		NaturalLanguage: req.NaturalLanguageQuery,
		Details:         req.ConnectionDetails,
		Execute:         req.Execute,
	})
	if err != nil {
		writePipelineError(w, err, "Connection failed")
		return
	}
	resp := translateQueryResponse{SQLQuery: out.SQL}
	if out.Result != nil {
		resp.Result = nonNilRows(out.Result.Rows)
		resp.Message = out.Result.Message
		resp.RowsAffected = out.Result.RowsAffected
		resp.Truncated = out.Result.Truncated
	}
	writeJSON(w, http.StatusOK, resp)
}

func handleExecuteQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req sqlQueryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SQLQuery) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "sql_query is required")
		return
	}
	if req.ConnectionDetails == nil {
		writeDetail(w, http.StatusUnprocessableEntity, "connection_details are required")
		return
	}
	result, err := deps.Pipeline.Execute(r.Context(), req.SQLQuery, *req.ConnectionDetails)
	if err != nil {
		writePipelineError(w, err, "Connection failed")
		return
	}
	writeJSON(w, http.StatusOK, executeQueryResponse{
		Result:       nonNilRows(result.Rows),
		Message:      result.Message,
		RowsAffected: result.RowsAffected,
		Truncated:    result.Truncated,
	})
}

func handleExplainQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req sqlQueryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SQLQuery) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "sql_query is required")
		return
	}
	explanation, err := deps.Pipeline.Explain(r.Context(), req.SQLQuery, req.ConnectionDetails)
	if err != nil {
		writePipelineError(w, err, "Connection failed")
		return
	}
	writeJSON(w, http.StatusOK, explainQueryResponse{Explanation: explanation.Text})
}

type schemaResponse struct {
	Tables     []schema.Table `json:"tables"`
	CapturedAt time.Time      `json:"captured_at"`
}

// handleSchema returns the snapshot that grounds translations for a connection.
func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var details conn.Details
	if !decodeBody(w, r, &details) {
		return
	}
	snapshot, ok, err := deps.Pipeline.Snapshot(r.Context(), details)
	if err != nil {
		writePipelineError(w, err, "Connection failed")
		return
	}
	if !ok {
		writeDetail(w, http.StatusNotFound, "No schema snapshot for this connection; call /connect first")
		return
	}
	tables := snapshot.Tables
	if tables == nil {
		tables = []schema.Table{}
	}
	writeJSON(w, http.StatusOK, schemaResponse{Tables: tables, CapturedAt: snapshot.CapturedAt})
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(target); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

// writePipelineError maps a pipeline failure to a response. connectionPrefix labels
// connection failures, which differ between connect and update_model.
func writePipelineError(w http.ResponseWriter, err error, connectionPrefix string) {
	switch assistant.KindOf(err) {
	case assistant.KindInvalid:
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
	case assistant.KindConnection:
		writeDetail(w, http.StatusBadRequest, connectionPrefix+": "+err.Error())
	case assistant.KindTranslation:
		writeDetail(w, http.StatusBadGateway, "Translation failed: "+translationCause(err))
	case assistant.KindExecution:
		writeDetail(w, http.StatusBadRequest, "Query execution failed: "+executionCause(err))
	default:
		writeDetail(w, http.StatusInternalServerError, err.Error())
	}
}

func translationCause(err error) string {
	return strings.TrimPrefix(err.Error(), "translation failed: ")
}

func executionCause(err error) string {
	var execErr *query.ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Error()
	}
	return err.Error()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilRows(rows []query.Row) []query.Row {
	if rows == nil {
		return []query.Row{}
	}
	return rows
}
