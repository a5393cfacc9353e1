package domain

import "testing"

func TestParseScreen(t *testing.T) {
	t.Parallel()

	for _, s := range AllScreens {
		got, err := ParseScreen(" " + string(s) + " ")
		if err != nil {
			t.Fatalf("ParseScreen(%q) error = %v", s, err)
		}
		if got != s {
			t.Fatalf("ParseScreen(%q) = %q", s, got)
		}
	}
	if _, err := ParseScreen("settings"); err == nil {
		t.Fatal("expected error for unknown screen")
	}
}

func TestParseOverlay(t *testing.T) {
	t.Parallel()

	if got, err := ParseOverlay(""); err != nil || got != OverlayNone {
		t.Fatalf("ParseOverlay(\"\") = %q, %v", got, err)
	}
	if got, err := ParseOverlay("COPY"); err != nil || got != OverlayCopy {
		t.Fatalf("ParseOverlay(COPY) = %q, %v", got, err)
	}
	if _, err := ParseOverlay("popup"); err == nil {
		t.Fatal("expected error for unknown overlay")
	}
}

func TestParseApplyScenario(t *testing.T) {
	t.Parallel()

	if got, _ := ParseApplyScenario(""); got != ScenarioSuccess {
		t.Fatalf("default scenario = %q, want success", got)
	}
	if got, _ := ParseApplyScenario("Failure"); got != ScenarioFailure {
		t.Fatalf("ParseApplyScenario(Failure) = %q", got)
	}
	if _, err := ParseApplyScenario("chaos"); err == nil {
		t.Fatal("expected error for unknown scenario")
	}
}
