package presence

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aliboard/aliboard-server/config"
	"github.com/aliboard/aliboard-server/persistence"
	"github.com/aliboard/aliboard-server/types"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
)

// IdentityFunc resolves the authenticated principal of a request, nil if the
// request carries no (valid) credentials.
type IdentityFunc func(r *http.Request) *types.User

// Handler exposes the heartbeat channel: clients ping every few seconds over
// plain HTTP (separate from the board websocket) and poll the other
// participant's derived online status.
type Handler struct {
	Tracker   *Tracker
	Persister persistence.Persister
	Cfg       *config.Config
	Identify  IdentityFunc
	Logger    hclog.Logger

	// test seam
	Now func() time.Time
}

func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/presence/ping", h.ping).Methods(http.MethodPost)
	router.HandleFunc("/presence/{session}/status", h.status).Methods(http.MethodGet)
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	user := h.Identify(r)
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	sessionId := r.FormValue("session_id")
	if sessionId == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing session_id"})
		return
	}
	h.Tracker.Heartbeat(user.Id, sessionId, h.now())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	user := h.Identify(r)
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	sessionId := mux.Vars(r)["session"]
	room := &types.Room{Id: sessionId}
	if h.Persister == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown session"})
		return
	}
	if err := h.Persister.GetRoom(room); err != nil {
		if err != persistence.ErrNotFound {
			h.Logger.Error("could not load room", "room", sessionId, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown session"})
		return
	}
	if !room.IsParticipant(user.Id) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not a participant"})
		return
	}
	other := room.OtherParticipant(user.Id)
	online := false
	if other != "" {
		online = h.Tracker.IsOnline(other, sessionId, h.now(), h.Cfg.PresenceConfig.OnlineThreshold())
	}
	writeJSON(w, http.StatusOK, map[string]bool{"online": online})
}
