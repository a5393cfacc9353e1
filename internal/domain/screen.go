package domain

import (
	"fmt"
	"strings"
)

type Screen string

const (
	ScreenSplash             Screen = "splash"
	ScreenDashboard          Screen = "dashboard"
	ScreenReview             Screen = "review"
	ScreenReviewProcessing   Screen = "review-processing"
	ScreenTransactionDetail  Screen = "transaction-detail"
	ScreenTransactionHistory Screen = "transaction-history"
	ScreenGitCommit          Screen = "git-commit"
	ScreenDebugMenu          Screen = "debug-menu"
	ScreenDebugLog           Screen = "debug-log"
)

var AllScreens = []Screen{
	ScreenSplash,
	ScreenDashboard,
	ScreenReview,
	ScreenReviewProcessing,
	ScreenTransactionDetail,
	ScreenTransactionHistory,
	ScreenGitCommit,
	ScreenDebugMenu,
	ScreenDebugLog,
}

func ParseScreen(raw string) (Screen, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	for _, s := range AllScreens {
		if value == string(s) {
			return s, nil
		}
	}
	return ScreenDashboard, fmt.Errorf("invalid screen %q", raw)
}

type Overlay string

const (
	OverlayNone         Overlay = "none"
	OverlayHelp         Overlay = "help"
	OverlayCopy         Overlay = "copy"
	OverlayLog          Overlay = "log"
	OverlayDebug        Overlay = "debug"
	OverlayNotification Overlay = "notification"
)

func ParseOverlay(raw string) (Overlay, error) {
	switch value := Overlay(strings.ToLower(strings.TrimSpace(raw))); value {
	case "", OverlayNone:
		return OverlayNone, nil
	case OverlayHelp, OverlayCopy, OverlayLog, OverlayDebug, OverlayNotification:
		return value, nil
	default:
		return OverlayNone, fmt.Errorf("invalid overlay %q", raw)
	}
}
