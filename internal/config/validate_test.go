package config

import "testing"

func TestValidDefaultConfigHasNoErrors(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestValidateRejectsUnknownDebugLevel(t *testing.T) {
	cfg := Default()
	cfg.Debug = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown debug level")
	}
}

func TestValidateAcceptsKnownDebugLevelsCaseInsensitive(t *testing.T) {
	cfg := Default()
	for _, level := range []string{"ERROR", "warning", "Note", "info", "debug", "DEBUG1", "debug2"} {
		cfg.Debug = level
		if err := cfg.Validate(); err != nil {
			t.Fatalf("debug level %q should be valid: %v", level, err)
		}
	}
}

func TestValidateRejectsNonPositiveKeepAlivesUntilDeath(t *testing.T) {
	cfg := Default()
	cfg.KeepAlivesUntilDeath = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for keep_alives_until_death < 1")
	}
}

func TestValidateRejectsNegativeClipboardSharingSize(t *testing.T) {
	cfg := Default()
	cfg.ClipboardSharingSize = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative clipboard_sharing_size")
	}
}
