package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"bakery_manager/internal/billing"
	"bakery_manager/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// EntitlementGate is the part of the subscription gate the API exposes.
type EntitlementGate interface {
	State(ctx context.Context, sessionID string) (models.EntitlementState, error)
	Refresh(ctx context.Context, sessionID string) (models.EntitlementState, error)
}

type SubscriptionHandler struct {
	provider billing.Provider
	gate     EntitlementGate
	log      *logrus.Logger
}

func NewSubscriptionHandler(provider billing.Provider, gate EntitlementGate, log *logrus.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{provider: provider, gate: gate, log: log}
}

// CheckSubscription answers {"hasActiveSubscription": bool} for an e-mail.
// It is public and is what the gate's verifier client calls.
func (h *SubscriptionHandler) CheckSubscription(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email is required"})
		return
	}

	active, err := h.provider.HasActiveSubscription(c.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, billing.ErrNotConfigured) {
			h.log.Error("Subscription check requested but no Stripe key is configured")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Stripe secret key not configured"})
			return
		}
		h.log.WithError(err).Error("Subscription lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":                 "Internal server error",
			"hasActiveSubscription": false,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"hasActiveSubscription": active})
}

func (h *SubscriptionHandler) Status(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	state, err := h.gate.State(c.Request.Context(), p.SessionID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entitlement": state})
}

// Refresh re-runs the subscription lookup, e.g. after the user returns from
// checkout.
func (h *SubscriptionHandler) Refresh(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	state, err := h.gate.Refresh(c.Request.Context(), p.SessionID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"entitlement": state})
}
