package authenticity

import (
	"errors"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/errors"
)

func TestCheck(t *testing.T) {
	cases := []struct {
		name   string
		item   Item
		reason string
	}{
		{"genuine", Item{ID: "123456789", Name: "Barilla Penne", Price: 1.98}, ""},
		{"six digits", Item{ID: "654321", Name: "Basil", Price: 2.5}, ""},
		{"twelve digits", Item{ID: "876543210987", Name: "Roma Tomatoes", Price: 0.25}, ""},
		{"mock prefix 10315", Item{ID: "10315777", Name: "Olive Oil", Price: 7}, ReasonMockPrefix},
		{"mock prefix 12345", Item{ID: "12345678", Name: "Olive Oil", Price: 7}, ReasonMockPrefix},
		{"mock prefix 99999", Item{ID: "99999123", Name: "Olive Oil", Price: 7}, ReasonMockPrefix},
		{"walmart- prefix", Item{ID: "walmart-42", Name: "Olive Oil", Price: 7}, ReasonMockPrefix},
		{"mock- prefix", Item{ID: "MOCK-1", Name: "Olive Oil", Price: 7}, ReasonMockPrefix},
		{"test- prefix", Item{ID: "test-7", Name: "Olive Oil", Price: 7}, ReasonMockPrefix},
		{"letters", Item{ID: "abc", Name: "Olive Oil", Price: 7}, ReasonIDFormat},
		{"too long", Item{ID: "1234567890123", Name: "Olive Oil", Price: 7}, ReasonMockPrefix},
		{"too long no prefix", Item{ID: "2234567890123", Name: "Olive Oil", Price: 7}, ReasonIDFormat},
		{"too short", Item{ID: "98765", Name: "Olive Oil", Price: 7}, ReasonIDFormat},
		{"short name", Item{ID: "223456789", Name: "Oil", Price: 7}, ReasonName},
		{"zero price", Item{ID: "223456789", Name: "Olive Oil", Price: 0}, ReasonPrice},
		{"price ceiling", Item{ID: "223456789", Name: "Olive Oil", Price: 1000}, ReasonPrice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Check(tc.item)
			if tc.reason == "" {
				if err != nil {
					t.Fatalf("expected acceptance, got %v", err)
				}
				if !Accept(tc.item) {
					t.Error("Accept disagrees with Check")
				}
				return
			}
			var rej *Rejection
			if !errors.As(err, &rej) {
				t.Fatalf("expected *Rejection, got %v", err)
			}
			if rej.Reason != tc.reason {
				t.Errorf("reason = %q, want %q", rej.Reason, tc.reason)
			}
			if !errors.Is(err, apperrors.ErrInvalidSelection) {
				t.Error("rejection should unwrap to ErrInvalidSelection")
			}
		})
	}
}

func TestValidateIDRejectsKnownFakes(t *testing.T) {
	for _, id := range []string{"10315abcd", "12345678", "99999123", "walmart-42", "mock-1", "test-7", "abc", "1234567890123"} {
		if err := ValidateID(id); err == nil {
			t.Errorf("ValidateID(%q) accepted a fabricated id", id)
		}
	}
}
