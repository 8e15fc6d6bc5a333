package api

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"missing access key", ErrNoAccessKey, false},
		{"wrapped missing access key", fmt.Errorf("push: %w", ErrNoAccessKey), false},
		{"client 404", &ClientError{Status: 404}, false},
		{"wrapped client 401", fmt.Errorf("pull: %w", &ClientError{Status: 401}), false},
		{"server 500", &ServerError{Status: 500}, true},
		{"server 503", &ServerError{Status: 503}, true},
		{"transport failure", errors.New("dial tcp: i/o timeout"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
