package signaling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	cache := newTestCache(t)
	handler := &Handler{
		Cache: cache,
		Identify: func(r *http.Request) string {
			return r.Header.Get("X-Test-User")
		},
		Logger: hclog.NewNullLogger(),
	}
	router := mux.NewRouter()
	handler.Register(router)
	return router
}

func doSignal(router *mux.Router, method, target, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := map[string]string{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestPostAndPollOffer(t *testing.T) {
	router := newTestRouter(t)

	rec := doSignal(router, http.MethodGet, "/signal/lesson-1/offer", "bob", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No offer yet", errorOf(t, rec))

	rec = doSignal(router, http.MethodPost, "/signal/lesson-1/offer", "alice", `{"type":"offer","sdp":"v=0\r\no=alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = doSignal(router, http.MethodGet, "/signal/lesson-1/offer", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sdp := SDP{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sdp))
	assert.Equal(t, "offer", sdp.Type)
	assert.Equal(t, "v=0\r\no=alice", sdp.Sdp)
}

func TestOfferConflict(t *testing.T) {
	router := newTestRouter(t)

	rec := doSignal(router, http.MethodPost, "/signal/lesson-1/offer", "alice", `{"type":"offer","sdp":"v=0"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doSignal(router, http.MethodPost, "/signal/lesson-1/offer", "bob", `{"type":"offer","sdp":"v=0"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Offerer already set", errorOf(t, rec))
}

func TestOfferValidation(t *testing.T) {
	router := newTestRouter(t)

	for _, body := range []string{
		"",
		"not json",
		`{"type":"answer","sdp":"v=0"}`,
		`{"type":"offer","sdp":""}`,
	} {
		rec := doSignal(router, http.MethodPost, "/signal/lesson-1/offer", "alice", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
		assert.Equal(t, "Invalid SDP payload", errorOf(t, rec))
	}
}

func TestAnswerValidation(t *testing.T) {
	router := newTestRouter(t)
	doSignal(router, http.MethodPost, "/signal/lesson-1/offer", "alice", `{"type":"offer","sdp":"v=0"}`)

	for _, body := range []string{
		`{"type":"offer","sdp":"v=0"}`,
		`{"type":"answer","sdp":"no version line"}`,
		`{"type":"answer","sdp":""}`,
	} {
		rec := doSignal(router, http.MethodPost, "/signal/lesson-1/answer", "bob", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestAnswerWithoutOffer(t *testing.T) {
	router := newTestRouter(t)

	rec := doSignal(router, http.MethodPost, "/signal/lesson-1/answer", "bob", `{"type":"answer","sdp":"v=0"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No offer to answer", errorOf(t, rec))
}

func TestAnswerFlow(t *testing.T) {
	router := newTestRouter(t)
	doSignal(router, http.MethodPost, "/signal/lesson-1/offer", "alice", `{"type":"offer","sdp":"v=0"}`)

	rec := doSignal(router, http.MethodGet, "/signal/lesson-1/answer", "alice", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No answer yet", errorOf(t, rec))

	rec = doSignal(router, http.MethodPost, "/signal/lesson-1/answer", "bob", `{"type":"answer","sdp":"v=0\r\no=bob"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doSignal(router, http.MethodGet, "/signal/lesson-1/answer", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sdp := SDP{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sdp))
	assert.Equal(t, "v=0\r\no=bob", sdp.Sdp)

	// the offer is gone once answered
	rec = doSignal(router, http.MethodGet, "/signal/lesson-1/offer", "bob", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHangupEndpoint(t *testing.T) {
	router := newTestRouter(t)
	doSignal(router, http.MethodPost, "/signal/lesson-1/offer", "alice", `{"type":"offer","sdp":"v=0"}`)

	rec := doSignal(router, http.MethodPost, "/signal/lesson-1/hangup", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	// repeat on an already-clean session
	rec = doSignal(router, http.MethodPost, "/signal/lesson-1/hangup", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doSignal(router, http.MethodGet, "/signal/lesson-1/offer", "bob", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDebugEndpoint(t *testing.T) {
	router := newTestRouter(t)
	doSignal(router, http.MethodPost, "/signal/lesson-1/offer", "alice", `{"type":"offer","sdp":"12345"}`)

	rec := doSignal(router, http.MethodGet, "/signal/lesson-1/debug", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	state := State{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.True(t, state.Offer)
	assert.Equal(t, 5, state.OfferLen)
	assert.Equal(t, "alice", state.LockHolder)
}

func TestAnonymousCallerHoldsLock(t *testing.T) {
	router := newTestRouter(t)

	rec := doSignal(router, http.MethodPost, "/signal/lesson-1/offer", "", `{"type":"offer","sdp":"v=0"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	state := State{}
	rec = doSignal(router, http.MethodGet, "/signal/lesson-1/debug", "", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "anon", state.LockHolder)
}
