package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

func TestWrapRedisMapsNilToNotFound(t *testing.T) {
	err := WrapRedis(redis.Nil)
	if got := StatusOf(err, 0); got != http.StatusNotFound {
		t.Fatalf("expected status=%d, got %d", http.StatusNotFound, got)
	}
	if !errors.Is(err, redis.Nil) {
		t.Fatalf("expected wrapped error to match redis.Nil")
	}
}

func TestWrapRedisOtherErrorsAreBadGateway(t *testing.T) {
	err := WrapRedis(errors.New("connection refused"))
	if got := StatusOf(err, 0); got != http.StatusBadGateway {
		t.Fatalf("expected status=%d, got %d", http.StatusBadGateway, got)
	}
	if WrapRedis(nil) != nil {
		t.Fatalf("expected nil error to stay nil")
	}
}

func TestWrapPostgresMapsNoRows(t *testing.T) {
	err := fmt.Errorf("load lead: %w", WrapPostgres(pgx.ErrNoRows))
	if got := StatusOf(err, 0); got != http.StatusNotFound {
		t.Fatalf("expected status=%d, got %d", http.StatusNotFound, got)
	}
}

func TestStatusOfFallback(t *testing.T) {
	if got := StatusOf(ErrMissingLead, http.StatusInternalServerError); got != http.StatusInternalServerError {
		t.Fatalf("expected fallback status, got %d", got)
	}
}
