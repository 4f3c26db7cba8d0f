package validation

import (
	"errors"
	"fmt"
	"testing"
)

func TestError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{Missing("id"), "Missing required argument: id"},
		{Invalid("lastUpdate", "invalid time %q", "soon"), `Invalid argument lastUpdate: invalid time "soon"`},
		{&Error{Reason: "Endpoint 9 was not found"}, "Endpoint 9 was not found"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestError_As(t *testing.T) {
	err := fmt.Errorf("remote data: %w", Missing("id"))
	var verr *Error
	if !errors.As(err, &verr) || verr.Field != "id" {
		t.Errorf("errors.As(%v) failed", err)
	}
}
