package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/fundra/financing-service/internal/domain"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: domain.ErrInvalidArgument, want: http.StatusBadRequest},
		{err: domain.ErrInvoiceNotFound, want: http.StatusNotFound},
		{err: domain.ErrVaultNotFound, want: http.StatusNotFound},
		{err: domain.ErrSessionNotFound, want: http.StatusNotFound},
		{err: domain.ErrNoteTypeNotFound, want: http.StatusNotFound},
		{err: domain.ErrUnauthorized, want: http.StatusForbidden},
		{err: domain.ErrBelowMinimum, want: http.StatusConflict},
		{err: domain.ErrAboveMaximum, want: http.StatusConflict},
		{err: domain.ErrExceedsTarget, want: http.StatusConflict},
		{err: domain.ErrFundingClosed, want: http.StatusConflict},
		{err: domain.ErrVaultPaused, want: http.StatusConflict},
		{err: domain.ErrExceedsLimit, want: http.StatusConflict},
		{err: domain.ErrInsufficientAllowance, want: http.StatusConflict},
		{err: domain.ErrSessionClosed, want: http.StatusConflict},
		{err: domain.ErrNoteTypeInactive, want: http.StatusConflict},
		{err: domain.ErrTransferFailed, want: http.StatusBadGateway},
		{err: context.DeadlineExceeded, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusForError(tt.err); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestStatusForErrorUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("vault %s: %w", uuid.New(), domain.ErrVaultPaused)
	if got := statusForError(wrapped); got != http.StatusConflict {
		t.Fatalf("expected 409 for wrapped pause error, got %d", got)
	}
}

func TestGetActorID(t *testing.T) {
	actor := uuid.New()
	ctx := context.WithValue(context.Background(), actorIDKey, actor)

	got, ok := GetActorID(ctx)
	if !ok || got != actor {
		t.Fatalf("expected %s from context, got %s ok=%t", actor, got, ok)
	}

	if _, ok := GetActorID(context.Background()); ok {
		t.Fatalf("empty context should not resolve an actor")
	}
}
