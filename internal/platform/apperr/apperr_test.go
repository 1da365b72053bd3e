package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := New(Conflict, "appointment overlaps")
	if KindOf(err) != Conflict {
		t.Errorf("expected Conflict, got %v", KindOf(err))
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	inner := New(NotFound, "patient not found")
	outer := fmt.Errorf("create appointment: %w", inner)
	if KindOf(outer) != NotFound {
		t.Errorf("expected NotFound through wrap, got %v", KindOf(outer))
	}
	if !IsNotFound(outer) {
		t.Error("IsNotFound should see through fmt.Errorf wrapping")
	}
}

func TestKindOf_Untagged(t *testing.T) {
	if KindOf(errors.New("connection refused")) != Storage {
		t.Error("untagged errors must default to Storage")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(Storage, "tx failed", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{Validation, http.StatusBadRequest},
		{NotFound, http.StatusNotFound},
		{Conflict, http.StatusConflict},
		{Forbidden, http.StatusForbidden},
		{Storage, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := HTTPStatus(New(tt.kind, "x")); got != tt.want {
				t.Errorf("HTTPStatus(%v) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}
}

func TestHTTP_StorageHidesDetail(t *testing.T) {
	he := HTTP(Wrap(Storage, "tx failed", errors.New("dsn=postgres://secret")))
	if he.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", he.Code)
	}
	if he.Message != "internal error" {
		t.Errorf("storage errors must not leak detail, got %v", he.Message)
	}
}

func TestHTTP_ValidationMessageKept(t *testing.T) {
	he := HTTP(New(Validation, "start_at must be before end_at"))
	if he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", he.Code)
	}
	if he.Message != "start_at must be before end_at" {
		t.Errorf("unexpected message: %v", he.Message)
	}
}
