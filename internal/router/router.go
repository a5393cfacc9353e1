// Package router tracks the active screen and the single overlay drawn on
// top of it, and owns the back/quit table.
package router

import (
	"relaycode/internal/domain"
	"relaycode/internal/logx"
)

type BackAction int

const (
	BackNone BackAction = iota
	BackCloseOverlay
	BackToDashboard
	BackExit
)

func (a BackAction) String() string {
	switch a {
	case BackCloseOverlay:
		return "close-overlay"
	case BackToDashboard:
		return "dashboard"
	case BackExit:
		return "exit"
	default:
		return "none"
	}
}

// backTable is the only place back/quit behaviour per screen is decided.
// Screens missing from it return to the dashboard.
var backTable = map[domain.Screen]BackAction{
	domain.ScreenSplash:    BackExit,
	domain.ScreenDashboard: BackExit,
}

// BackFor reports what back does on screen with no overlay open.
func BackFor(screen domain.Screen) BackAction {
	if a, ok := backTable[screen]; ok {
		return a
	}
	return BackToDashboard
}

// Owner names who receives key input: the overlay when one is open,
// otherwise the screen.
type Owner struct {
	Screen  domain.Screen
	Overlay domain.Overlay
}

func (o Owner) IsOverlay() bool { return o.Overlay != domain.OverlayNone }

type Router struct {
	screen  domain.Screen
	overlay domain.Overlay
	log     *logx.Logger
}

func New(start domain.Screen, log *logx.Logger) *Router {
	return &Router{screen: start, overlay: domain.OverlayNone, log: log}
}

func (r *Router) Screen() domain.Screen   { return r.screen }
func (r *Router) Overlay() domain.Overlay { return r.overlay }

// Navigate switches screens and closes any overlay. It returns the screen
// being left.
func (r *Router) Navigate(to domain.Screen) domain.Screen {
	from := r.screen
	to, err := domain.ParseScreen(string(to))
	if err != nil {
		r.log.Warnf("router: %v", err)
		return from
	}
	r.overlay = domain.OverlayNone
	r.screen = to
	if from != to {
		r.log.Debugf("router: %s -> %s", from, to)
	}
	return from
}

// Open shows o, replacing any other overlay.
func (r *Router) Open(o domain.Overlay) {
	o, err := domain.ParseOverlay(string(o))
	if err != nil {
		r.log.Warnf("router: %v", err)
		return
	}
	r.overlay = o
}

// Toggle opens o, or closes it when it is already showing.
func (r *Router) Toggle(o domain.Overlay) {
	if r.overlay == o {
		r.Close()
		return
	}
	r.Open(o)
}

// Close hides the overlay and reports whether one was open.
func (r *Router) Close() bool {
	if r.overlay == domain.OverlayNone {
		return false
	}
	r.overlay = domain.OverlayNone
	return true
}

// Back applies the back action and returns it. BackExit is left to the
// caller.
func (r *Router) Back() BackAction {
	if r.Close() {
		return BackCloseOverlay
	}
	action := BackFor(r.screen)
	if action == BackToDashboard {
		r.Navigate(domain.ScreenDashboard)
	}
	return action
}

func (r *Router) KeyOwner() Owner {
	return Owner{Screen: r.screen, Overlay: r.overlay}
}
