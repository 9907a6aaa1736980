package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0712345678", "254712345678"},
		{"+254712345678", "254712345678"},
		{"254712345678", "254712345678"},
		{"712345678", "254712345678"},
		{"0112345678", "254112345678"},
		{"  0712 345 678 ", "254712345678"},
		{"0712-345-678", "254712345678"},
	}

	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		assert.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestNormalizePhoneRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "12345", "+4915112345678", "07123456789012345"} {
		_, err := NormalizePhone(in)
		assert.Error(t, err, in)
	}
}
