package review

import (
	"fmt"

	"relaycode/internal/domain"
)

type RepairOption int

const (
	RepairCopyPrompt RepairOption = iota + 1
	RepairReapply
	RepairHandoff
	RepairReject
)

type InstructOption int

const (
	InstructCopyPrompt InstructOption = iota + 1
	InstructHandoff
	InstructApproveOriginal
)

type ActionKind int

const (
	ActionNone ActionKind = iota
	// ActionCopyPrompt asks the caller to build an aggregate prompt for
	// Targets and put it on the clipboard.
	ActionCopyPrompt
	// ActionReapply asks the caller to hand Batch to the Reapplier.
	ActionReapply
	ActionHandoffConfirm
	ActionStatusChanged
)

// Action is what a bulk option asks of its caller.
type Action struct {
	Kind    ActionKind
	Status  domain.FileReviewStatus
	Targets []domain.FileItem
	Batch   *Batch
}

// OpenBulkRepair shows the bulk repair menu when any file is FAILED.
func (s *Session) OpenBulkRepair() bool {
	if len(s.Targets(domain.ReviewFailed)) == 0 {
		return false
	}
	s.sub = SubBulkRepair
	return true
}

// OpenBulkInstruct shows the bulk instruct menu when any file is REJECTED.
func (s *Session) OpenBulkInstruct() bool {
	if len(s.Targets(domain.ReviewRejected)) == 0 {
		return false
	}
	s.sub = SubBulkInstruct
	return true
}

func (s *Session) CloseSubView() {
	s.sub = SubNone
	s.handoffFrom = SubNone
}

// BulkRepair executes a menu option against the files that are FAILED now,
// not when the menu opened.
func (s *Session) BulkRepair(opt RepairOption) (Action, error) {
	ids := s.Targets(domain.ReviewFailed)
	if len(ids) == 0 {
		s.CloseSubView()
		return Action{}, nil
	}
	switch opt {
	case RepairCopyPrompt:
		s.CloseSubView()
		return Action{Kind: ActionCopyPrompt, Status: domain.ReviewFailed, Targets: s.items(ids)}, nil
	case RepairReapply:
		s.CloseSubView()
		b := s.begin(BatchBulkRepair, ids, domain.ReviewReApplying)
		return Action{Kind: ActionReapply, Status: domain.ReviewFailed, Targets: b.Files, Batch: b}, nil
	case RepairHandoff:
		s.sub = SubHandoffConfirm
		s.handoffFrom = SubBulkRepair
		return Action{Kind: ActionHandoffConfirm, Status: domain.ReviewFailed, Targets: s.items(ids)}, nil
	case RepairReject:
		for _, id := range ids {
			s.files[id].Status = domain.ReviewRejected
		}
		s.CloseSubView()
		return Action{Kind: ActionStatusChanged, Status: domain.ReviewFailed, Targets: s.items(ids)}, nil
	default:
		return Action{}, fmt.Errorf("bulk repair option %d: %w", opt, ErrTransitionBlocked)
	}
}

// BulkInstruct executes a menu option against the files that are REJECTED
// now.
func (s *Session) BulkInstruct(opt InstructOption) (Action, error) {
	ids := s.Targets(domain.ReviewRejected)
	if len(ids) == 0 {
		s.CloseSubView()
		return Action{}, nil
	}
	switch opt {
	case InstructCopyPrompt:
		s.CloseSubView()
		return Action{Kind: ActionCopyPrompt, Status: domain.ReviewRejected, Targets: s.items(ids)}, nil
	case InstructHandoff:
		s.sub = SubHandoffConfirm
		s.handoffFrom = SubBulkInstruct
		return Action{Kind: ActionHandoffConfirm, Status: domain.ReviewRejected, Targets: s.items(ids)}, nil
	case InstructApproveOriginal:
		for _, id := range ids {
			st := s.files[id]
			st.Status = domain.ReviewApproved
			st.Error = ""
		}
		s.CloseSubView()
		return Action{Kind: ActionStatusChanged, Status: domain.ReviewRejected, Targets: s.items(ids)}, nil
	default:
		return Action{}, fmt.Errorf("bulk instruct option %d: %w", opt, ErrTransitionBlocked)
	}
}

// HandoffFiles lists the files a confirmed hand-off delegates: everything
// not yet approved.
func (s *Session) HandoffFiles() []domain.FileItem {
	var ids []string
	for _, id := range s.order {
		if s.files[id].Status != domain.ReviewApproved {
			ids = append(ids, id)
		}
	}
	return s.items(ids)
}

// ConfirmHandoff ends the review. The caller marks the transaction HANDOFF.
func (s *Session) ConfirmHandoff() error {
	if s.sub != SubHandoffConfirm {
		return fmt.Errorf("confirm hand-off from %s: %w", s.sub, ErrTransitionBlocked)
	}
	s.handedOff = true
	s.CloseSubView()
	return nil
}

// CancelHandoff returns to the bulk menu that asked for confirmation.
func (s *Session) CancelHandoff() {
	if s.sub != SubHandoffConfirm {
		return
	}
	s.sub = s.handoffFrom
	s.handoffFrom = SubNone
}
