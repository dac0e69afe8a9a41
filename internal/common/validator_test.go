package common

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

type sampleForm struct {
	ID   string `form:"id" validate:"omitempty,max=4,excludesall=/"`
	Name string `form:"name" validate:"required"`
	Note string `validate:"max=2"`
}

func TestGenericEchoValidator(t *testing.T) {
	tests := []struct {
		name    string
		form    sampleForm
		wantErr []string
	}{
		{name: "valid", form: sampleForm{ID: "ab", Name: "x"}},
		{name: "missing name", form: sampleForm{}, wantErr: []string{"name is required"}},
		{name: "too long", form: sampleForm{ID: "abcdef", Name: "x"}, wantErr: []string{"id must be at most 4 characters"}},
		{name: "slash", form: sampleForm{ID: "a/b", Name: "x"}, wantErr: []string{"id must not contain"}},
		{name: "untagged field", form: sampleForm{Name: "x", Note: "long"}, wantErr: []string{"Note must be at most 2"}},
	}

	v := &GenericEchoValidator{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.form)
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			var httpErr *echo.HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
			}
			if httpErr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", httpErr.Code)
			}
			msg, _ := httpErr.Message.(string)
			for _, want := range tt.wantErr {
				if !strings.Contains(msg, want) {
					t.Errorf("expected message %q to contain %q", msg, want)
				}
			}
		})
	}
}
