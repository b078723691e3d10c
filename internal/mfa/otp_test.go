package mfa

import (
	"testing"
)

func TestGenerateOTP_Length(t *testing.T) {
	for _, n := range []int{0, 4, 6, 8, 10} {
		otp, err := GenerateOTP(n)
		if err != nil {
			t.Fatalf("GenerateOTP(%d): %v", n, err)
		}
		want := n
		if n == 0 {
			want = DefaultOTPLength
		}
		if len(otp) != want {
			t.Errorf("GenerateOTP(%d) length = %d, want %d", n, len(otp), want)
		}
		for _, c := range otp {
			if c < '0' || c > '9' {
				t.Errorf("OTP contains non-digit: %c", c)
			}
		}
	}
}

func TestGenerateOTP_Distribution(t *testing.T) {
	var counts [10]int
	for i := 0; i < 2000; i++ {
		otp, err := GenerateOTP(6)
		if err != nil {
			t.Fatalf("GenerateOTP: %v", err)
		}
		for _, c := range otp {
			counts[c-'0']++
		}
	}
	// 12000 digits, 1200 expected per digit; bounds are far outside normal variance.
	for d, n := range counts {
		if n < 900 || n > 1500 {
			t.Errorf("digit %d appeared %d times, want roughly 1200", d, n)
		}
	}
}

func TestHashOTP_Consistent(t *testing.T) {
	hash1 := HashOTP("123456")
	if hash1 != HashOTP("123456") {
		t.Error("HashOTP not consistent")
	}
	if len(hash1) != 64 {
		t.Errorf("hash length = %d, want 64 (SHA-256 hex)", len(hash1))
	}
	if hash1 == HashOTP("654321") {
		t.Error("HashOTP produced same hash for different inputs")
	}
}

func TestOTPEqual(t *testing.T) {
	stored := HashOTP("123456")
	testCases := []struct {
		name   string
		otp    string
		stored string
		want   bool
	}{
		{"correct", "123456", stored, true},
		{"wrong", "654321", stored, false},
		{"leading zero dropped", "23456", HashOTP("023456"), false},
		{"longer hash", "123456", "a" + stored, false},
		{"empty otp", "", stored, false},
		{"empty both", "", "", false},
	}
	for _, tc := range testCases {
		if got := OTPEqual(tc.otp, tc.stored); got != tc.want {
			t.Errorf("%s: OTPEqual = %v, want %v", tc.name, got, tc.want)
		}
	}
}
