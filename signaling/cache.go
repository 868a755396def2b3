package signaling

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/aliboard/aliboard-server/config"
	"github.com/tidwall/buntdb"
)

var (
	// ErrConflict is returned when a different caller already holds the
	// offerer lock of a session.
	ErrConflict = errors.New("offerer already set")
	// ErrNotFound is the steady-state "nothing stored yet" condition that
	// pollers run into during negotiation. Not an error worth logging.
	ErrNotFound = errors.New("no entry")
)

// SDP is an offer or answer payload, relayed verbatim.
type SDP struct {
	Type string `json:"type"`
	Sdp  string `json:"sdp"`
}

// State is the debug view of one session.
type State struct {
	Offer      bool   `json:"offer"`
	Answer     bool   `json:"answer"`
	OfferLen   int    `json:"offer_len"`
	AnswerLen  int    `json:"answer_len"`
	LockHolder string `json:"lock_holder"`
}

// Cache holds the ephemeral negotiation state of call attempts, keyed by
// session id. Offer, answer and offerer lock expire independently; the
// database transaction gives the lock claim its insert-if-absent atomicity.
type Cache struct {
	db        *buntdb.DB
	offerTTL  time.Duration
	answerTTL time.Duration
	lockTTL   time.Duration
}

func NewCache(cfg *config.Config) (*Cache, error) {
	db, err := buntdb.Open(cfg.SignalingConfig.DBPath())
	if err != nil {
		return nil, err
	}
	return &Cache{
		db:        db,
		offerTTL:  cfg.SignalingConfig.OfferTTL(),
		answerTTL: cfg.SignalingConfig.AnswerTTL(),
		lockTTL:   cfg.SignalingConfig.LockTTL(),
	}, nil
}

func offerKey(sessionId string) string  { return "webrtc:" + sessionId + ":offer" }
func answerKey(sessionId string) string { return "webrtc:" + sessionId + ":answer" }
func lockKey(sessionId string) string   { return "webrtc:" + sessionId + ":lock" }

// PutOffer stores an offer after claiming the offerer lock for callerId.
// A lock held by a different caller rejects the attempt with ErrConflict; the
// same caller may re-offer freely (last offer wins). Storing an offer clears
// any stale answer so pollers never observe an answer to a superseded offer.
func (c *Cache) PutOffer(sessionId, callerId string, offer SDP) error {
	data, err := json.Marshal(offer)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *buntdb.Tx) error {
		holder, err := tx.Get(lockKey(sessionId))
		switch {
		case err == nil && holder != callerId:
			return ErrConflict
		case errors.Is(err, buntdb.ErrNotFound):
			opts := &buntdb.SetOptions{Expires: true, TTL: c.lockTTL}
			if _, _, err := tx.Set(lockKey(sessionId), callerId, opts); err != nil {
				return err
			}
		case err != nil:
			return err
		}
		opts := &buntdb.SetOptions{Expires: true, TTL: c.offerTTL}
		if _, _, err := tx.Set(offerKey(sessionId), string(data), opts); err != nil {
			return err
		}
		if _, err := tx.Delete(answerKey(sessionId)); err != nil && !errors.Is(err, buntdb.ErrNotFound) {
			return err
		}
		return nil
	})
}

func (c *Cache) GetOffer(sessionId string) (SDP, error) {
	return c.get(offerKey(sessionId))
}

// PutAnswer stores an answer and deletes the offer: an answered call must not
// keep ringing for pollers of the offer.
func (c *Cache) PutAnswer(sessionId string, answer SDP) error {
	data, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Get(offerKey(sessionId)); err != nil {
			if errors.Is(err, buntdb.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		opts := &buntdb.SetOptions{Expires: true, TTL: c.answerTTL}
		if _, _, err := tx.Set(answerKey(sessionId), string(data), opts); err != nil {
			return err
		}
		if _, err := tx.Delete(offerKey(sessionId)); err != nil && !errors.Is(err, buntdb.ErrNotFound) {
			return err
		}
		return nil
	})
}

func (c *Cache) GetAnswer(sessionId string) (SDP, error) {
	return c.get(answerKey(sessionId))
}

// Hangup clears offer, answer and lock. Idempotent.
func (c *Cache) Hangup(sessionId string) error {
	return c.db.Update(func(tx *buntdb.Tx) error {
		for _, key := range []string{offerKey(sessionId), answerKey(sessionId), lockKey(sessionId)} {
			if _, err := tx.Delete(key); err != nil && !errors.Is(err, buntdb.ErrNotFound) {
				return err
			}
		}
		return nil
	})
}

// Debug reports the current session state without mutating it.
func (c *Cache) Debug(sessionId string) (State, error) {
	state := State{}
	err := c.db.View(func(tx *buntdb.Tx) error {
		if val, err := tx.Get(offerKey(sessionId)); err == nil {
			sdp := SDP{}
			_ = json.Unmarshal([]byte(val), &sdp)
			state.Offer = true
			state.OfferLen = len(sdp.Sdp)
		}
		if val, err := tx.Get(answerKey(sessionId)); err == nil {
			sdp := SDP{}
			_ = json.Unmarshal([]byte(val), &sdp)
			state.Answer = true
			state.AnswerLen = len(sdp.Sdp)
		}
		if val, err := tx.Get(lockKey(sessionId)); err == nil {
			state.LockHolder = val
		}
		return nil
	})
	return state, err
}

func (c *Cache) get(key string) (SDP, error) {
	sdp := SDP{}
	err := c.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(key)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(val), &sdp)
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return SDP{}, ErrNotFound
	}
	return sdp, err
}

func (c *Cache) Close() error {
	return c.db.Close()
}
