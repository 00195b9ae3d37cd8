package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const tenMB = 10 * 1024 * 1024

func defaultValidator() *Validator {
	return NewValidator(tenMB, []string{"jpeg", "jpg", "png"})
}

func TestValidateSize(t *testing.T) {
	v := defaultValidator()

	tests := []struct {
		name string
		size int
		ok   bool
	}{
		{"empty", 0, true},
		{"at limit", tenMB, true},
		{"one byte over", tenMB + 1, false},
		{"fifteen megabytes", 15 * 1024 * 1024, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, msg := v.Validate(make([]byte, tt.size), "x.png")
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				assert.Contains(t, msg, "10")
				assert.Equal(t, "File too large. Maximum size is 10 MB", msg)
			}
		})
	}
}

func TestValidateFractionalLimit(t *testing.T) {
	v := NewValidator(1536*1024, []string{"png"})
	ok, msg := v.Validate(make([]byte, 2*1024*1024), "a.png")
	assert.False(t, ok)
	assert.Contains(t, msg, "1.5 MB")
}

func TestValidateExtension(t *testing.T) {
	v := defaultValidator()

	tests := []struct {
		filename string
		ok       bool
	}{
		{"cat.jpg", true},
		{"cat.JPG", true},
		{"cat.jpeg", true},
		{"photo.PnG", true},
		{"archive.tar.png", true},
		{"cat", false},
		{"cat.", false},
		{"", false},
		{"cat.gif", false},
		{"cat.png.exe", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			ok, msg := v.Validate([]byte{1, 2, 3}, tt.filename)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, "Image is valid", msg)
			} else {
				assert.Equal(t, "File format not supported. Allowed formats: jpeg, jpg, png", msg)
			}
		})
	}
}

func TestValidateSizeCheckedFirst(t *testing.T) {
	ok, msg := defaultValidator().Validate(make([]byte, tenMB+1), "cat.gif")
	assert.False(t, ok)
	assert.Contains(t, msg, "File too large")
}
