// Package handler exposes the roster operations over JSON HTTP endpoints and
// maps operation errors to status codes.
package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"rollcall/internal/account"
	"rollcall/internal/roster"
)

var checkinsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "rollcall_checkins_total",
	Help: "Check-ins recorded, labeled by endpoint variant.",
}, []string{"variant"})

func init() {
	prometheus.MustRegister(checkinsTotal)
}

// Config carries the handler-level settings.
type Config struct {
	JWTIssuer     string
	JWTSigningKey string
	SessionTTL    time.Duration
	SecureCookies bool
}

type Handler struct {
	roster   *roster.Service
	accounts *account.Service
	cfg      Config
}

func New(rosterSvc *roster.Service, accounts *account.Service, cfg Config) *Handler {
	return &Handler{roster: rosterSvc, accounts: accounts, cfg: cfg}
}

// respondError maps the operation error taxonomy to HTTP statuses. Anything
// unrecognized is an internal failure and is not echoed to the client.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, roster.ErrNotFound), errors.Is(err, account.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, roster.ErrConflict), errors.Is(err, account.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, roster.ErrAmbiguousIdentity),
		errors.Is(err, roster.ErrAlreadyCheckedIn),
		errors.Is(err, roster.ErrInvalidArgument),
		errors.Is(err, account.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, account.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}
