package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/wshadow/advisor-engine/engine/contract"
	storex "github.com/wshadow/advisor-engine/store"
)

const defaultTaskLimit = 20

// AlertScanner runs one on-demand pass of the background alert rules.
type AlertScanner interface {
	ScanOnce(ctx context.Context) ([]contractx.Alert, error)
}

// API serves the advisor REST surface and mounts the websocket channel on
// the same mux.
type API struct {
	store   storex.Store
	scanner AlertScanner
	ws      *WSHandler
}

func NewAPI(store storex.Store, scanner AlertScanner, ws *WSHandler) *API {
	return &API{store: store, scanner: scanner, ws: ws}
}

func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", a.health)
	mux.HandleFunc("GET /api/clients", a.listClients)
	mux.HandleFunc("GET /api/clients/{id}", a.getClient)
	mux.HandleFunc("GET /api/clients/{id}/accounts", a.getAccounts)
	mux.HandleFunc("GET /api/clients/{id}/chat", a.getChat)
	mux.HandleFunc("GET /api/tasks", a.listTasks)
	mux.HandleFunc("POST /api/tasks/{id}/action", a.actOnTask)
	mux.HandleFunc("GET /api/alerts", a.listAlerts)
	mux.HandleFunc("POST /api/alerts/scan", a.scanAlerts)
	mux.HandleFunc("POST /api/alerts/{id}/action", a.actOnAlert)
	if a.ws != nil {
		mux.Handle("GET /ws", a.ws)
	}
	return mux
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// clientSummary augments a profile with the two dashboard rollups the list
// view renders.
type clientSummary struct {
	contractx.ClientProfile
	TotalPortfolio float64 `json:"total_portfolio"`
	PendingAlerts  int     `json:"pending_alerts"`
}

func (a *API) listClients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clients, err := a.store.Clients(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list clients")
		return
	}

	out := make([]clientSummary, 0, len(clients))
	for _, client := range clients {
		summary := clientSummary{ClientProfile: client}
		accounts, err := a.store.Accounts(ctx, client.ID)
		if err == nil {
			for _, acct := range accounts {
				summary.TotalPortfolio += acct.Balance
			}
		}
		pending, err := a.store.PendingAlertTypes(ctx, client.ID)
		if err == nil {
			summary.PendingAlerts = len(pending)
		}
		out = append(out, summary)
	}
	writeJSON(w, http.StatusOK, out)
}

type clientDetail struct {
	Client         contractx.ClientProfile `json:"client"`
	Accounts       []contractx.Account     `json:"accounts"`
	Documents      []contractx.Document    `json:"documents"`
	ChatHistory    []contractx.ChatMessage `json:"chat_history"`
	TotalPortfolio float64                 `json:"total_portfolio"`
}

func (a *API) getClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID := r.PathValue("id")

	client, err := a.store.Client(ctx, clientID)
	if err != nil {
		if errors.Is(err, storex.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Client not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load client")
		return
	}

	detail := clientDetail{Client: client}
	if detail.Accounts, err = a.store.Accounts(ctx, clientID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load accounts")
		return
	}
	if detail.Documents, err = a.store.Documents(ctx, clientID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load documents")
		return
	}
	if detail.ChatHistory, err = a.store.Messages(ctx, clientID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load chat history")
		return
	}
	for _, acct := range detail.Accounts {
		detail.TotalPortfolio += acct.Balance
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *API) getAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := a.store.Accounts(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load accounts")
		return
	}
	if accounts == nil {
		accounts = []contractx.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (a *API) getChat(w http.ResponseWriter, r *http.Request) {
	messages, err := a.store.Messages(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load chat history")
		return
	}
	if messages == nil {
		messages = []contractx.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, messages)
}

// taskView mirrors the persisted row with snapshots decoded into objects so
// the dashboard never has to parse nested JSON strings.
type taskView struct {
	ID            string                 `json:"id"`
	ClientID      string                 `json:"client_id"`
	Provider      contractx.ProviderName `json:"provider"`
	Status        contractx.TaskStatus   `json:"status"`
	InputData     map[string]any         `json:"input_data"`
	OutputData    map[string]any         `json:"output_data"`
	AdvisorAction string                 `json:"advisor_action,omitempty"`
	AdvisorNote   string                 `json:"advisor_note,omitempty"`
	CreatedAt     string                 `json:"created_at"`
	CompletedAt   string                 `json:"completed_at,omitempty"`
}

func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	filter := storex.TaskFilter{
		Status:   contractx.TaskStatus(r.URL.Query().Get("status")),
		ClientID: r.URL.Query().Get("client_id"),
		Limit:    defaultTaskLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	tasks, err := a.store.Tasks(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	out := make([]taskView, 0, len(tasks))
	for _, task := range tasks {
		view := taskView{
			ID:            task.ID,
			ClientID:      task.ClientID,
			Provider:      task.Provider,
			Status:        task.Status,
			InputData:     decodeSnapshot(task.InputSnapshot),
			OutputData:    decodeSnapshot(task.OutputSnapshot),
			AdvisorAction: task.AdvisorAction,
			AdvisorNote:   task.AdvisorNote,
			CreatedAt:     task.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if !task.CompletedAt.IsZero() {
			view.CompletedAt = task.CompletedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, out)
}

type reviewRequest struct {
	Action string `json:"action"`
	Note   string `json:"note"`
}

func (a *API) actOnTask(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Action) == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	if err := a.store.SetTaskReview(r.Context(), taskID, req.Action, req.Note); err != nil {
		if errors.Is(err, storex.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to record review")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"task_id": taskID,
		"action":  req.Action,
	})
}

func (a *API) listAlerts(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = string(contractx.AlertPending)
	}
	alerts, err := a.store.Alerts(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []contractx.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (a *API) scanAlerts(w http.ResponseWriter, r *http.Request) {
	if a.scanner == nil {
		writeError(w, http.StatusServiceUnavailable, "scanner not configured")
		return
	}
	created, err := a.scanner.ScanOnce(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("on-demand alert scan")
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"new_alerts": len(created)})
}

func (a *API) actOnAlert(w http.ResponseWriter, r *http.Request) {
	alertID := r.PathValue("id")
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Action) == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	found, err := a.store.SetAlertStatus(r.Context(), alertID, req.Action)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update alert")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Alert not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"alert_id": alertID,
		"action":   req.Action,
	})
}

func decodeSnapshot(raw json.RawMessage) map[string]any {
	out := map[string]any{}
	if len(raw) == 0 {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("encode response body")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
