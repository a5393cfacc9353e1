package review

import (
	"fmt"

	"relaycode/internal/domain"
)

type BatchKind int

const (
	BatchRepair BatchKind = iota
	BatchInstruct
	BatchBulkRepair
)

func (k BatchKind) String() string {
	switch k {
	case BatchRepair:
		return "repair"
	case BatchInstruct:
		return "instruct"
	case BatchBulkRepair:
		return "bulk-repair"
	default:
		return "unknown"
	}
}

// Batch is one in-flight reapply attempt. It remembers what each file looked
// like before the attempt so a collaborator failure can be rolled back.
type Batch struct {
	Kind    BatchKind
	TxID    string
	FileIDs []string
	Files   []domain.FileItem
	// InFlight is the status the batch put its files in.
	InFlight domain.FileReviewStatus
	prev     map[string]FileState
}

func (b *Batch) Empty() bool { return b == nil || len(b.FileIDs) == 0 }

func (s *Session) begin(kind BatchKind, ids []string, inFlight domain.FileReviewStatus) *Batch {
	b := &Batch{
		Kind:     kind,
		TxID:     s.tx.ID,
		FileIDs:  append([]string(nil), ids...),
		Files:    s.items(ids),
		InFlight: inFlight,
		prev:     make(map[string]FileState, len(ids)),
	}
	for _, id := range ids {
		st := s.files[id]
		b.prev[id] = *st
		st.Status = inFlight
		st.Error = ""
	}
	return b
}

// StartRepair moves one FAILED file to RE_APPLYING.
func (s *Session) StartRepair(id string) (*Batch, error) {
	st, ok := s.files[id]
	if !ok {
		s.log.Warnf("review: repair of unknown file %q ignored", id)
		return nil, fmt.Errorf("repair %q: %w", id, ErrUnknownFile)
	}
	if st.Status != domain.ReviewFailed {
		return nil, fmt.Errorf("repair %q from %s: %w", id, st.Status, ErrTransitionBlocked)
	}
	return s.begin(BatchRepair, []string{id}, domain.ReviewReApplying), nil
}

// StartInstruct moves one REJECTED file back to AWAITING while new
// instructions are applied.
func (s *Session) StartInstruct(id string) (*Batch, error) {
	st, ok := s.files[id]
	if !ok {
		s.log.Warnf("review: instruct of unknown file %q ignored", id)
		return nil, fmt.Errorf("instruct %q: %w", id, ErrUnknownFile)
	}
	if st.Status != domain.ReviewRejected {
		return nil, fmt.Errorf("instruct %q from %s: %w", id, st.Status, ErrTransitionBlocked)
	}
	return s.begin(BatchInstruct, []string{id}, domain.ReviewAwaiting), nil
}

// ApplyResults settles every file of the batch to APPROVED or FAILED. A file
// with no result fails. Files that left the batch's in-flight status in the
// meantime are left alone.
func (s *Session) ApplyResults(b *Batch, results map[string]domain.FileOutcome) {
	if b.Empty() {
		return
	}
	for _, id := range b.FileIDs {
		st, ok := s.files[id]
		if !ok {
			continue
		}
		if st.Status != b.InFlight {
			s.log.Debugf("review: %s result for %q dropped, status is now %s", b.Kind, id, st.Status)
			continue
		}
		res, ok := results[id]
		switch {
		case !ok:
			st.Status = domain.ReviewFailed
			st.Error = "no result"
			st.Details = ""
		case res.Status == domain.ReviewApproved:
			st.Status = domain.ReviewApproved
			st.Error = ""
			st.Details = res.Details
		default:
			st.Status = domain.ReviewFailed
			st.Error = res.Error
			if st.Error == "" {
				st.Error = "reapply failed"
			}
			st.Details = res.Details
		}
	}
}

// Rollback restores the pre-attempt state of every file still in flight.
func (s *Session) Rollback(b *Batch) {
	if b.Empty() {
		return
	}
	for _, id := range b.FileIDs {
		st, ok := s.files[id]
		prev, had := b.prev[id]
		if !ok || !had || st.Status != b.InFlight {
			continue
		}
		*st = prev
	}
}
