// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package httpapi is the read/query HTTP surface over the store plus the
// command submission endpoints feeding the Command Pipeline.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ipnet-mesh/meshbridge/internal/command"
	"github.com/ipnet-mesh/meshbridge/internal/repository"
	"github.com/ipnet-mesh/meshbridge/pkg/log"
	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

// RestApi bundles the dependencies of the HTTP handlers. Handlers are
// concurrent readers of the store and concurrent producers into the
// pipeline; each request owns its own query, never a shared session.
type RestApi struct {
	Store    *repository.Store
	Pipeline *command.Pipeline
}

func New(store *repository.Store, pipeline *command.Pipeline) *RestApi {
	return &RestApi{Store: store, Pipeline: pipeline}
}

func (api *RestApi) MountRoutes(r *mux.Router) {
	r = r.PathPrefix("/api").Subrouter()
	r.StrictSlash(true)

	r.HandleFunc("/nodes/", api.getNodes).Methods(http.MethodGet)
	r.HandleFunc("/nodes/{pubkey}", api.getNode).Methods(http.MethodGet)
	r.HandleFunc("/nodes/{pubkey}/tags/", api.getTags).Methods(http.MethodGet)
	r.HandleFunc("/nodes/{pubkey}/tags/{key}", api.getTag).Methods(http.MethodGet)
	r.HandleFunc("/nodes/{pubkey}/tags/{key}", api.putTag).Methods(http.MethodPut)
	r.HandleFunc("/nodes/{pubkey}/tags/{key}", api.deleteTag).Methods(http.MethodDelete)
	r.HandleFunc("/messages/", api.getMessages).Methods(http.MethodGet)
	r.HandleFunc("/advertisements/", api.getAdvertisements).Methods(http.MethodGet)
	r.HandleFunc("/tracepaths/", api.getTracePaths).Methods(http.MethodGet)
	r.HandleFunc("/telemetry/{pubkey}", api.getTelemetry).Methods(http.MethodGet)
	r.HandleFunc("/eventlog/", api.getEventLog).Methods(http.MethodGet)
	r.HandleFunc("/commands/", api.postCommand).Methods(http.MethodPost)
	r.HandleFunc("/commands/stats", api.getCommandStats).Methods(http.MethodGet)
}

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func handleError(err error, statusCode int, rw http.ResponseWriter) {
	log.Warnf("httpapi: REST error: %s", err.Error())
	rw.Header().Add("Content-Type", "application/json")
	rw.WriteHeader(statusCode)
	if err := json.NewEncoder(rw).Encode(errorResponse{
		Status: http.StatusText(statusCode),
		Error:  err.Error(),
	}); err != nil {
		log.Errorf("httpapi: encode error response: %v", err)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Add("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		log.Errorf("httpapi: encode response: %v", err)
	}
}

// validHex reports whether s is non-empty lowercase-foldable hex.
func validHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range strings.ToLower(s) {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func queryLimit(r *http.Request, fallback int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func (api *RestApi) getNodes(rw http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 100)
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	if prefix := r.URL.Query().Get("prefix"); prefix != "" {
		norm := strings.ToLower(prefix)
		if !validHex(norm) || len(norm) < 2 {
			handleError(fmt.Errorf("invalid prefix %q: want >= 2 hex characters", prefix), http.StatusBadRequest, rw)
			return
		}
		nodes, err := api.Store.FindNodesByPrefix(norm)
		if err != nil {
			handleError(err, http.StatusInternalServerError, rw)
			return
		}
		writeJSON(rw, http.StatusOK, nodes)
		return
	}

	nodes, err := api.Store.ListNodes(limit, offset)
	if err != nil {
		handleError(err, http.StatusInternalServerError, rw)
		return
	}
	writeJSON(rw, http.StatusOK, nodes)
}

// nodeKey validates the {pubkey} path variable as a full 64-char key.
func nodeKey(r *http.Request) (string, error) {
	pubkey := strings.ToLower(mux.Vars(r)["pubkey"])
	if len(pubkey) != 64 || !validHex(pubkey) {
		return "", fmt.Errorf("invalid public key %q: want 64 lowercase hex characters", mux.Vars(r)["pubkey"])
	}
	return pubkey, nil
}

func (api *RestApi) getNode(rw http.ResponseWriter, r *http.Request) {
	pubkey, err := nodeKey(r)
	if err != nil {
		handleError(err, http.StatusBadRequest, rw)
		return
	}

	node, err := api.Store.GetNode(pubkey)
	if errors.Is(err, repository.ErrNotFound) {
		handleError(err, http.StatusNotFound, rw)
		return
	} else if err != nil {
		handleError(err, http.StatusInternalServerError, rw)
		return
	}
	writeJSON(rw, http.StatusOK, node)
}

func (api *RestApi) getTags(rw http.ResponseWriter, r *http.Request) {
	pubkey, err := nodeKey(r)
	if err != nil {
		handleError(err, http.StatusBadRequest, rw)
		return
	}

	tags, err := api.Store.ListTags(pubkey)
	if err != nil {
		handleError(err, http.StatusInternalServerError, rw)
		return
	}
	writeJSON(rw, http.StatusOK, tags)
}

func (api *RestApi) getTag(rw http.ResponseWriter, r *http.Request) {
	pubkey, err := nodeKey(r)
	if err != nil {
		handleError(err, http.StatusBadRequest, rw)
		return
	}

	tag, err := api.Store.GetTag(pubkey, mux.Vars(r)["key"])
	if errors.Is(err, repository.ErrNotFound) {
		handleError(err, http.StatusNotFound, rw)
		return
	} else if err != nil {
		handleError(err, http.StatusInternalServerError, rw)
		return
	}
	writeJSON(rw, http.StatusOK, tag)
}

// tagBody is the PUT payload: a typed value with exactly one populated slot.
type tagBody struct {
	ValueType meshmodel.TagValueType `json:"value_type"`
	Value     json.RawMessage        `json:"value"`
}

func (api *RestApi) putTag(rw http.ResponseWriter, r *http.Request) {
	pubkey, err := nodeKey(r)
	if err != nil {
		handleError(err, http.StatusBadRequest, rw)
		return
	}
	key := mux.Vars(r)["key"]
	if key == "" {
		handleError(fmt.Errorf("empty tag key"), http.StatusBadRequest, rw)
		return
	}

	var body tagBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		handleError(fmt.Errorf("decode request body: %w", err), http.StatusBadRequest, rw)
		return
	}

	tag := &meshmodel.NodeTag{NodePublicKey: pubkey, Key: key, ValueType: body.ValueType}
	if err := meshmodel.DecodeTagValue(tag, body.Value); err != nil {
		handleError(err, http.StatusBadRequest, rw)
		return
	}

	out, err := api.Store.UpsertTag(tag)
	if err != nil {
		handleError(err, http.StatusInternalServerError, rw)
		return
	}
	writeJSON(rw, http.StatusOK, out)
}

func (api *RestApi) deleteTag(rw http.ResponseWriter, r *http.Request) {
	pubkey, err := nodeKey(r)
	if err != nil {
		handleError(err, http.StatusBadRequest, rw)
		return
	}

	err = api.Store.DeleteTag(pubkey, mux.Vars(r)["key"])
	if errors.Is(err, repository.ErrNotFound) {
		handleError(err, http.StatusNotFound, rw)
		return
	} else if err != nil {
		handleError(err, http.StatusInternalServerError, rw)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (api *RestApi) getMessages(rw http.ResponseWriter, r *http.Request) {
	msgs, err := api.Store.ListMessages(
		strings.ToLower(r.URL.Query().Get("pubkey_prefix")),
		r.URL.Query().Get("message_type"),
		queryLimit(r, 100))
	if err != nil {
		handleError(err, http.StatusInternalServerError, rw)
		return
	}
	writeJSON(rw, http.StatusOK, msgs)
}

func (api *RestApi) getAdvertisements(rw http.ResponseWriter, r *http.Request) {
	advs, err := api.Store.ListAdvertisements(strings.ToLower(r.URL.Query().Get("public_key")), queryLimit(r, 100))
	if err != nil {
		handleError(err, http.StatusInternalServerError, rw)
		return
	}
	writeJSON(rw, http.StatusOK, advs)
}

func (api *RestApi) getTracePaths(rw http.ResponseWriter, r *http.Request) {
	var tag *uint32
	if v := r.URL.Query().Get("initiator_tag"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			handleError(fmt.Errorf("invalid initiator_tag %q", v), http.StatusBadRequest, rw)
			return
		}
		t := uint32(n)
		tag = &t
	}

	paths, err := api.Store.ListTracePaths(tag, queryLimit(r, 100))
	if err != nil {
		handleError(err, http.StatusInternalServerError, rw)
		return
	}
	writeJSON(rw, http.StatusOK, paths)
}

func (api *RestApi) getTelemetry(rw http.ResponseWriter, r *http.Request) {
	pubkey, err := nodeKey(r)
	if err != nil {
		handleError(err, http.StatusBadRequest, rw)
		return
	}

	if r.URL.Query().Get("latest") == "true" {
		t, err := api.Store.LatestTelemetry(pubkey)
		if errors.Is(err, repository.ErrNotFound) {
			handleError(err, http.StatusNotFound, rw)
			return
		} else if err != nil {
			handleError(err, http.StatusInternalServerError, rw)
			return
		}
		writeJSON(rw, http.StatusOK, t)
		return
	}

	ts, err := api.Store.ListTelemetry(pubkey, queryLimit(r, 100))
	if err != nil {
		handleError(err, http.StatusInternalServerError, rw)
		return
	}
	writeJSON(rw, http.StatusOK, ts)
}

func (api *RestApi) getEventLog(rw http.ResponseWriter, r *http.Request) {
	entries, err := api.Store.ListEventLog(r.URL.Query().Get("event_type"), queryLimit(r, 100))
	if err != nil {
		handleError(err, http.StatusInternalServerError, rw)
		return
	}
	writeJSON(rw, http.StatusOK, entries)
}

// commandResponse is the synchronous answer to a submitted command: queue
// placement, plus the executing call's cached CommandResult when this was
// a debounced duplicate of a command that has already finished.
type commandResponse struct {
	Accepted bool                     `json:"accepted"`
	Queue    meshmodel.QueueInfo      `json:"queue"`
	Result   *meshmodel.CommandResult `json:"result,omitempty"`
}

func (api *RestApi) postCommand(rw http.ResponseWriter, r *http.Request) {
	var req meshmodel.CommandRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		handleError(fmt.Errorf("decode request body: %w", err), http.StatusBadRequest, rw)
		return
	}

	switch req.Type {
	case meshmodel.CommandSendMessage, meshmodel.CommandSendChannelMessage,
		meshmodel.CommandSendAdvert, meshmodel.CommandSendTracePath,
		meshmodel.CommandPing, meshmodel.CommandSendTelemetryReq:
	default:
		handleError(fmt.Errorf("unknown command type %q", req.Type), http.StatusBadRequest, rw)
		return
	}

	result, info, err := api.Pipeline.Submit(req)
	if errors.Is(err, command.ErrQueueFull) {
		handleError(err, http.StatusTooManyRequests, rw)
		return
	} else if err != nil {
		handleError(err, http.StatusInternalServerError, rw)
		return
	}

	status := http.StatusAccepted
	if info.Debounced {
		status = http.StatusOK
	}
	writeJSON(rw, status, commandResponse{Accepted: true, Queue: info, Result: result})
}

func (api *RestApi) getCommandStats(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, api.Pipeline.Stats())
}
