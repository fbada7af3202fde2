package errkind

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"config", &ConfigError{Err: errors.New("bad flag")}, 1},
		{"unsupported type", &UnsupportedTypeError{Err: errors.New("oid 99999")}, 1},
		{"connect", &ConnectError{Err: errors.New("auth failed")}, 2},
		{"protocol", &ProtocolError{Err: errors.New("bad magic")}, 3},
		{"io", &IOError{Err: errors.New("disk full")}, 3},
		{"wrapped config", fmt.Errorf("run: %w", &ConfigError{Err: errors.New("x")}), 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ExitCode(c.err); got != c.want {
				t.Fatalf("ExitCode(%v) = %d, want %d", c.err, got, c.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &ProtocolError{Err: inner}
	if !errors.Is(err, inner) {
		t.Fatal("expected errors.Is to see through ProtocolError")
	}
	if err.Error() != "boom" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
