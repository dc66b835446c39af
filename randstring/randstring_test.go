package randstring_test

import (
	"strings"
	"testing"

	"github.com/ladzaretti/vaultagent/randstring"
)

func TestNew(t *testing.T) {
	s, err := randstring.New(20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got, want := len(s), 20; got != want {
		t.Errorf("len(s) = %d, want %d", got, want)
	}
}

func TestNew_InvalidLength(t *testing.T) {
	if _, err := randstring.New(0); err != randstring.ErrInvalidLength {
		t.Errorf("New(0) error = %v, want %v", err, randstring.ErrInvalidLength)
	}
}

func TestNewWithAlphabet_EmptyAlphabet(t *testing.T) {
	if _, err := randstring.NewWithAlphabet(5, ""); err != randstring.ErrEmptyAlphabet {
		t.Errorf("NewWithAlphabet error = %v, want %v", err, randstring.ErrEmptyAlphabet)
	}
}

func TestPasswordPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  randstring.PasswordPolicy
		wantErr error
	}{
		{"empty policy", randstring.PasswordPolicy{}, randstring.ErrEmptyPolicy},
		{"length only", randstring.PasswordPolicy{MinLength: 8}, nil},
		{"exceeds max", randstring.PasswordPolicy{MinLength: randstring.MaxLength + 1}, randstring.ErrLengthTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.policy.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewWithPolicy_SingleClassOnly(t *testing.T) {
	policy := randstring.PasswordPolicy{MinDigits: 6}

	s, err := randstring.NewWithPolicy(policy)
	if err != nil {
		t.Fatalf("NewWithPolicy: %v", err)
	}

	if got, want := len(s), 6; got != want {
		t.Errorf("len(s) = %d, want %d", got, want)
	}

	if strings.Trim(s, "0123456789") != "" {
		t.Errorf("generated string %q is not digits-only", s)
	}
}

func TestNewWithPolicy_SatisfiesMinLength(t *testing.T) {
	policy := randstring.PasswordPolicy{
		MinUppercase: 1,
		MinLength:    24,
	}

	s, err := randstring.NewWithPolicy(policy)
	if err != nil {
		t.Fatalf("NewWithPolicy: %v", err)
	}

	if got, want := len(s), 24; got != want {
		t.Errorf("len(s) = %d, want %d", got, want)
	}
}

func TestNewWithPolicy_AllClasses(t *testing.T) {
	policy := randstring.PasswordPolicy{
		MinUppercase: 2,
		MinLowercase: 2,
		MinDigits:    2,
		MinSymbols:   2,
		MinLength:    16,
	}

	s, err := randstring.NewWithPolicy(policy)
	if err != nil {
		t.Fatalf("NewWithPolicy: %v", err)
	}

	if got, want := len(s), 16; got != want {
		t.Errorf("len(s) = %d, want %d", got, want)
	}
}
