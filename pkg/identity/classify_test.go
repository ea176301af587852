package identity

import "testing"

// These tables pin the literal provider codes and message fragments the
// classifier matches on. If the provider rewords an error, the fix belongs
// in classify and here, nowhere else.
func TestClassifyByCode(t *testing.T) {
	cases := []struct {
		code string
		want Kind
	}{
		{"invalid_credentials", KindInvalidCredentials},
		{"invalid_grant", KindInvalidCredentials},
		{"user_already_exists", KindDuplicateEmail},
		{"email_exists", KindDuplicateEmail},
		{"weak_password", KindWeakPassword},
		{"validation_failed", KindInvalidEmail},
		{"over_request_rate_limit", KindUnknown},
		{"", KindUnknown},
	}
	for _, c := range cases {
		if got := classify(c.code, ""); got != c.want {
			t.Fatalf("classify(code=%q) = %v, want %v", c.code, got, c.want)
		}
	}
}

func TestClassifyByMessage(t *testing.T) {
	cases := []struct {
		message string
		want    Kind
	}{
		{"Invalid login credentials", KindInvalidCredentials},
		{"User already registered", KindDuplicateEmail},
		{"A user with this email address already exists", KindDuplicateEmail},
		{"Password should be at least 6 characters", KindWeakPassword},
		{"password is too weak", KindWeakPassword},
		{"Unable to validate email address: invalid format", KindInvalidEmail},
		{"invalid email", KindInvalidEmail},
		{"Database error saving new user", KindUnknown},
	}
	for _, c := range cases {
		if got := classify("", c.message); got != c.want {
			t.Fatalf("classify(message=%q) = %v, want %v", c.message, got, c.want)
		}
	}
}

func TestClassifyCodeWinsOverMessage(t *testing.T) {
	// When a stable code is present it takes precedence over whatever the
	// message says.
	got := classify("weak_password", "User already registered")
	if got != KindWeakPassword {
		t.Fatalf("expected code to win, got %v", got)
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindUnknown:            "unknown",
		KindInvalidCredentials: "invalid_credentials",
		KindDuplicateEmail:     "duplicate_email",
		KindWeakPassword:       "weak_password",
		KindInvalidEmail:       "invalid_email",
	}
	for k, want := range cases {
		if k.String() != want {
			t.Fatalf("Kind(%d).String() = %q, want %q", int(k), k.String(), want)
		}
	}
}
