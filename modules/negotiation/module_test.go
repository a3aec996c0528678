package negotiation

import (
	"errors"
	"testing"
)

func TestConfigFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("TOTAL_RENT", "")
		t.Setenv("PARTICIPANTS", "")

		config, err := ConfigFromEnv()
		if err != nil {
			t.Fatalf("ConfigFromEnv() unexpected error: %v", err)
		}
		if config.TotalRent != 360600 {
			t.Errorf("TotalRent = %d, want 360600", config.TotalRent)
		}
		want := []string{"Karim", "Hassan", "Benjamin", "Hassaan"}
		if len(config.Names) != len(want) {
			t.Fatalf("got %d names, want %d", len(config.Names), len(want))
		}
		for i, name := range want {
			if config.Names[i] != name {
				t.Errorf("Names[%d] = %q, want %q", i, config.Names[i], name)
			}
		}
	})

	t.Run("custom values with whitespace", func(t *testing.T) {
		t.Setenv("TOTAL_RENT", "1800.50")
		t.Setenv("PARTICIPANTS", " Ada , Grace ,")

		config, err := ConfigFromEnv()
		if err != nil {
			t.Fatalf("ConfigFromEnv() unexpected error: %v", err)
		}
		if config.TotalRent != 180050 {
			t.Errorf("TotalRent = %d, want 180050", config.TotalRent)
		}
		if len(config.Names) != 2 || config.Names[0] != "Ada" || config.Names[1] != "Grace" {
			t.Errorf("Names = %v, want [Ada Grace]", config.Names)
		}
	})

	t.Run("bad rent", func(t *testing.T) {
		t.Setenv("TOTAL_RENT", "lots")

		if _, err := ConfigFromEnv(); !errors.Is(err, ErrConfiguration) {
			t.Errorf("ConfigFromEnv() error = %v, want ErrConfiguration", err)
		}
	})
}
