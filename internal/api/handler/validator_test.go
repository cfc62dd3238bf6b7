package handler

import (
	"strings"
	"testing"
)

type passwordForm struct {
	Password string `json:"password" validate:"password"`
}

func TestValidator_Password(t *testing.T) {
	v := NewValidator()

	valid := []string{"password1!", "Passw0rd?", "a1_bcdefg", "ÄÖÜäöüa1#"}
	for _, pw := range valid {
		if err := v.Validate(&passwordForm{Password: pw}); err != nil {
			t.Errorf("%q: unexpected error %v", pw, err)
		}
	}

	invalid := []string{
		"",
		"a1!",         // too short
		"abcdefgh!",   // no digit
		"12345678!",   // no letter
		"password12",  // no special
		"password-12", // '-' is not one of the accepted specials
		"비밀번호1234!", // letters must be ASCII
	}
	for _, pw := range invalid {
		err := v.Validate(&passwordForm{Password: pw})
		if err == nil {
			t.Errorf("%q: expected rejection", pw)
			continue
		}
		if !strings.Contains(err.Error(), "password must be at least 8 characters") {
			t.Errorf("%q: unexpected message %v", pw, err)
		}
	}
}
