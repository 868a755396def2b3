package signaling

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
)

// IdentityFunc resolves the caller id of a request. An empty result is mapped
// to "anon": the handshake works without login, the lock then simply keys on
// the anonymous identity.
type IdentityFunc func(r *http.Request) string

// Handler implements the polled offer/answer handshake over the cache. The
// endpoints are stateless request/response, independent of the board
// websocket.
type Handler struct {
	Cache    *Cache
	Identify IdentityFunc
	Logger   hclog.Logger
}

func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/signal/{session}/offer", h.offer).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/signal/{session}/answer", h.answer).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/signal/{session}/hangup", h.hangup).Methods(http.MethodPost)
	router.HandleFunc("/signal/{session}/debug", h.debug).Methods(http.MethodGet)
}

func (h *Handler) callerId(r *http.Request) string {
	if h.Identify != nil {
		if id := h.Identify(r); id != "" {
			return id
		}
	}
	return "anon"
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func errorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) offer(w http.ResponseWriter, r *http.Request) {
	sessionId := mux.Vars(r)["session"]
	if r.Method == http.MethodPost {
		sdp := SDP{}
		if err := json.NewDecoder(r.Body).Decode(&sdp); err != nil || sdp.Type != "offer" || sdp.Sdp == "" {
			errorJSON(w, http.StatusBadRequest, "Invalid SDP payload")
			return
		}
		callerId := h.callerId(r)
		err := h.Cache.PutOffer(sessionId, callerId, sdp)
		if err == ErrConflict {
			h.Logger.Info("offer blocked by lock", "session", sessionId)
			errorJSON(w, http.StatusConflict, "Offerer already set")
			return
		}
		if err != nil {
			h.Logger.Error("could not store offer", "session", sessionId, "error", err)
			errorJSON(w, http.StatusInternalServerError, "Internal error while posting offer")
			return
		}
		h.Logger.Info("stored offer", "session", sessionId, "len", len(sdp.Sdp), "by", callerId)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	sdp, err := h.Cache.GetOffer(sessionId)
	if err != nil {
		errorJSON(w, http.StatusNotFound, "No offer yet")
		return
	}
	writeJSON(w, http.StatusOK, sdp)
}

func (h *Handler) answer(w http.ResponseWriter, r *http.Request) {
	sessionId := mux.Vars(r)["session"]
	if r.Method == http.MethodPost {
		sdp := SDP{}
		// an answer must carry an actual session description, not an
		// empty or truncated blob, hence the version-line check
		if err := json.NewDecoder(r.Body).Decode(&sdp); err != nil || sdp.Type != "answer" || !strings.HasPrefix(sdp.Sdp, "v=") {
			errorJSON(w, http.StatusBadRequest, "Invalid SDP payload")
			return
		}
		err := h.Cache.PutAnswer(sessionId, sdp)
		if err == ErrNotFound {
			errorJSON(w, http.StatusNotFound, "No offer to answer")
			return
		}
		if err != nil {
			h.Logger.Error("could not store answer", "session", sessionId, "error", err)
			errorJSON(w, http.StatusInternalServerError, "Internal error while posting answer")
			return
		}
		h.Logger.Info("stored answer", "session", sessionId, "len", len(sdp.Sdp))
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	sdp, err := h.Cache.GetAnswer(sessionId)
	if err != nil {
		errorJSON(w, http.StatusNotFound, "No answer yet")
		return
	}
	writeJSON(w, http.StatusOK, sdp)
}

func (h *Handler) hangup(w http.ResponseWriter, r *http.Request) {
	sessionId := mux.Vars(r)["session"]
	if err := h.Cache.Hangup(sessionId); err != nil {
		h.Logger.Error("could not clear session", "session", sessionId, "error", err)
		errorJSON(w, http.StatusInternalServerError, "Internal error while clearing session")
		return
	}
	h.Logger.Info("hangup, session state cleared", "session", sessionId)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) debug(w http.ResponseWriter, r *http.Request) {
	sessionId := mux.Vars(r)["session"]
	state, err := h.Cache.Debug(sessionId)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "Internal error while reading session")
		return
	}
	writeJSON(w, http.StatusOK, state)
}
