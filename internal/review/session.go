// Package review holds the per-file review state machine for one transaction
// along with its bulk repair and bulk instruct flows.
package review

import (
	"context"
	"errors"
	"fmt"

	"relaycode/internal/domain"
	"relaycode/internal/logx"
)

var (
	ErrTransitionBlocked = errors.New("transition blocked")
	ErrNothingApproved   = errors.New("no approved files to commit")
	ErrUnknownFile       = errors.New("unknown file")
	ErrNoTargets         = errors.New("no files match the bulk action")
)

// Reapplier is the external collaborator that retries a batch of files and
// reports one outcome per file.
type Reapplier interface {
	Reapply(ctx context.Context, txID string, files []domain.FileItem) (map[string]domain.FileOutcome, error)
}

type FileState struct {
	Status  domain.FileReviewStatus
	Error   string
	Details string
}

type SubView int

const (
	SubNone SubView = iota
	SubBulkRepair
	SubBulkInstruct
	SubHandoffConfirm
)

func (v SubView) String() string {
	switch v {
	case SubBulkRepair:
		return "bulk-repair"
	case SubBulkInstruct:
		return "bulk-instruct"
	case SubHandoffConfirm:
		return "handoff-confirm"
	default:
		return "none"
	}
}

type Session struct {
	tx    domain.Transaction
	order []string
	files map[string]*FileState
	sub   SubView
	// handoffFrom remembers which bulk view asked for confirmation so cancel
	// can return to it.
	handoffFrom SubView
	approved    bool
	handedOff   bool
	log         *logx.Logger
}

// NewSession starts a review with one entry per file. Files without a
// reported outcome start AWAITING.
func NewSession(tx domain.Transaction, outcomes map[string]domain.FileOutcome, log *logx.Logger) *Session {
	s := &Session{
		tx:    tx,
		order: make([]string, 0, len(tx.Files)),
		files: make(map[string]*FileState, len(tx.Files)),
		log:   log,
	}
	for _, f := range tx.Files {
		st := &FileState{Status: domain.ReviewAwaiting}
		if out, ok := outcomes[f.ID]; ok {
			st.Status = out.Status
			st.Error = out.Error
			st.Details = out.Details
		}
		if _, dup := s.files[f.ID]; dup {
			log.Warnf("review: duplicate file id %q in %s", f.ID, tx.ID)
			continue
		}
		s.order = append(s.order, f.ID)
		s.files[f.ID] = st
	}
	return s
}

func (s *Session) TxID() string                    { return s.tx.ID }
func (s *Session) Transaction() domain.Transaction { return s.tx }
func (s *Session) SubView() SubView                { return s.sub }
func (s *Session) Approved() bool                  { return s.approved }
func (s *Session) HandedOff() bool                 { return s.handedOff }

// FileIDs returns the file ids in transaction order.
func (s *Session) FileIDs() []string {
	return append([]string(nil), s.order...)
}

func (s *Session) File(id string) (FileState, bool) {
	st, ok := s.files[id]
	if !ok {
		return FileState{}, false
	}
	return *st, true
}

func (s *Session) Status(id string) domain.FileReviewStatus {
	if st, ok := s.files[id]; ok {
		return st.Status
	}
	return ""
}

// Outcomes snapshots every file's current state.
func (s *Session) Outcomes() map[string]domain.FileOutcome {
	out := make(map[string]domain.FileOutcome, len(s.files))
	for id, st := range s.files {
		out[id] = domain.FileOutcome{Status: st.Status, Error: st.Error, Details: st.Details}
	}
	return out
}

func (s *Session) Counts() map[domain.FileReviewStatus]int {
	counts := make(map[domain.FileReviewStatus]int, len(domain.AllReviewStatuses))
	for _, st := range s.files {
		counts[st.Status]++
	}
	return counts
}

// Targets returns the ids currently in status, in transaction order.
func (s *Session) Targets(status domain.FileReviewStatus) []string {
	var out []string
	for _, id := range s.order {
		if s.files[id].Status == status {
			out = append(out, id)
		}
	}
	return out
}

func (s *Session) items(ids []string) []domain.FileItem {
	out := make([]domain.FileItem, 0, len(ids))
	for _, id := range ids {
		if f, ok := s.tx.FileByID(id); ok {
			out = append(out, f)
		}
	}
	return out
}

// Toggle is the manual approve/reject switch. FAILED and RE_APPLYING files
// only move through repair.
func (s *Session) Toggle(id string) (domain.FileReviewStatus, error) {
	st, ok := s.files[id]
	if !ok {
		s.log.Warnf("review: toggle of unknown file %q ignored", id)
		return "", fmt.Errorf("toggle %q: %w", id, ErrUnknownFile)
	}
	switch st.Status {
	case domain.ReviewAwaiting, domain.ReviewRejected:
		st.Status = domain.ReviewApproved
	case domain.ReviewApproved:
		st.Status = domain.ReviewRejected
	default:
		return st.Status, fmt.Errorf("toggle %q from %s: %w", id, st.Status, ErrTransitionBlocked)
	}
	return st.Status, nil
}

func (s *Session) CanApprove() bool {
	return len(s.Targets(domain.ReviewApproved)) > 0
}

// Approve finalizes the review. The caller marks the transaction APPLIED.
func (s *Session) Approve() error {
	if !s.CanApprove() {
		return ErrNothingApproved
	}
	s.approved = true
	s.sub = SubNone
	return nil
}
