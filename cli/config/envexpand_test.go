package config

import "testing"

func TestExpandEnv(t *testing.T) {
	t.Setenv("PIXPORT_TEST_PASSWORD", "hunter2")
	t.Setenv("PIXPORT_TEST_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set", "password: ${PIXPORT_TEST_PASSWORD}", "password: hunter2"},
		{"unset", "password: ${PIXPORT_TEST_UNSET_12345}", "password: "},
		{"default when unset", "port: ${PIXPORT_TEST_UNSET_12345:-49494}", "port: 49494"},
		{"default ignored when set", "password: ${PIXPORT_TEST_PASSWORD:-x}", "password: hunter2"},
		{"default when empty", "addr: ${PIXPORT_TEST_EMPTY:-127.0.0.1}", "addr: 127.0.0.1"},
		{"several", "${PIXPORT_TEST_PASSWORD}:${PIXPORT_TEST_UNSET_12345:-b}", "hunter2:b"},
		{"no vars", "no variables here", "no variables here"},
		{"bare dollar untouched", "cost: $5", "cost: $5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnv(tt.input); got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
