package domain

import (
	"fmt"
	"strings"
)

type FileReviewStatus string

const (
	ReviewAwaiting   FileReviewStatus = "AWAITING"
	ReviewApproved   FileReviewStatus = "APPROVED"
	ReviewRejected   FileReviewStatus = "REJECTED"
	ReviewFailed     FileReviewStatus = "FAILED"
	ReviewReApplying FileReviewStatus = "RE_APPLYING"
)

var AllReviewStatuses = []FileReviewStatus{
	ReviewAwaiting,
	ReviewApproved,
	ReviewRejected,
	ReviewFailed,
	ReviewReApplying,
}

func ParseFileReviewStatus(raw string) (FileReviewStatus, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	value = strings.ReplaceAll(value, "-", "_")
	for _, s := range AllReviewStatuses {
		if value == string(s) {
			return s, nil
		}
	}
	return ReviewAwaiting, fmt.Errorf("invalid review status %q", raw)
}

// Settled reports whether a file has left the in-flight states.
func (s FileReviewStatus) Settled() bool {
	return s == ReviewApproved || s == ReviewFailed || s == ReviewRejected
}

func (s FileReviewStatus) Icon() string {
	switch s {
	case ReviewApproved:
		return "[✓]"
	case ReviewRejected:
		return "[✗]"
	case ReviewFailed:
		return "[!]"
	case ReviewReApplying:
		return "[●]"
	default:
		return "[ ]"
	}
}

// FileOutcome is the per-file result an apply or reapply attempt reports.
type FileOutcome struct {
	Status  FileReviewStatus `json:"status" yaml:"status"`
	Error   string           `json:"error,omitempty" yaml:"error,omitempty"`
	Details string           `json:"details,omitempty" yaml:"details,omitempty"`
}
