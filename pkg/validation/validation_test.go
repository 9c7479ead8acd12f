package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/generalscaler/pkg/models"
)

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "web", SanitizeString("  we\x00b\n "))
}

func TestValidateTarget(t *testing.T) {
	target, err := ValidateTarget("prod", " web.api ")
	require.NoError(t, err)
	assert.Equal(t, models.NewTarget("prod", "web.api"), target)

	for _, tc := range [][2]string{
		{"", "web"},
		{"Prod", "web"},
		{"prod", ""},
		{"prod", "web_api"},
		{"prod.eu", "web"},
	} {
		_, err := ValidateTarget(tc[0], tc[1])
		assert.ErrorIs(t, err, ErrInvalidInput, "%s/%s", tc[0], tc[1])
	}
}

func TestValidateLimit(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: "", want: 50},
		{raw: "10", want: 10},
		{raw: "1000", want: 500},
		{raw: "0", wantErr: true},
		{raw: "-3", wantErr: true},
		{raw: "ten", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ValidateLimit(tt.raw, 50, 500)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidInput, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}
