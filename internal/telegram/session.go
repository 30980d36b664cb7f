package telegram

import "sync"

// step is the pending input of a chat.
type step int

const (
	stepIdle step = iota
	stepAddAddress
	stepAddLabel
	stepAddMin
	stepAddMax
	stepRename
	stepEditMin
	stepEditMax
	stepChangeToken
	stepImport
)

// session holds the multi-message flow state of one chat.
type session struct {
	step     step
	walletID string

	// add-wallet draft
	address string
	label   string
	minBuy  float64
}

type sessions struct {
	mu   sync.Mutex
	byID map[int64]session
}

func newSessions() *sessions {
	return &sessions{byID: make(map[int64]session)}
}

func (s *sessions) get(chatID int64) session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[chatID]
}

func (s *sessions) set(chatID int64, sess session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.step == stepIdle {
		delete(s.byID, chatID)
		return
	}
	s.byID[chatID] = sess
}

func (s *sessions) reset(chatID int64) {
	s.set(chatID, session{})
}
