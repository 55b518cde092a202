package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yourorg/wallet-checkout/internal/checkout"
	"github.com/yourorg/wallet-checkout/internal/coordinator"
	"github.com/yourorg/wallet-checkout/internal/monitor"
	"github.com/yourorg/wallet-checkout/internal/payment"
)

func setupRouter(a *app) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware(a.cfg.Tracing.ServiceName), requestLogger(a.log))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/payments/:provider", a.initiatePaymentHandler)
	r.GET("/payments/:provider/sample", a.sampleCartHandler)
	r.GET("/requests/:request_id", a.requestHandler)
	r.POST("/readiness/:provider/probe", a.probeReadinessHandler)
	r.GET("/state", a.stateHandler)
	r.GET("/state/stream", a.stateStreamHandler)
	r.GET("/report", a.reportHandler)
	return r
}

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("request handled")
	}
}

func providerParam(c *gin.Context) (payment.Provider, bool) {
	p, err := payment.ParseProvider(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return payment.ProviderUnknown, false
	}
	return p, true
}

// initiatePaymentHandler handles a pay tap. An empty body pays for the
// provider's sample cart.
func (a *app) initiatePaymentHandler(c *gin.Context) {
	provider, ok := providerParam(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	var req checkout.CheckoutRequest
	if len(body) == 0 {
		req = checkout.SampleCart(provider)
	} else {
		valid, violations, err := a.contract.Validate(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
			return
		}
		if !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": monitor.FormatErrors(violations)})
			return
		}
		if err := json.Unmarshal(body, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
			return
		}
	}

	d, err := a.builder.Build(c.Request.Context(), provider, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := a.coordinator.InitiatePayment(c.Request.Context(), provider, d); err != nil {
		switch {
		case errors.Is(err, coordinator.ErrClosed):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		case errors.Is(err, coordinator.ErrDuplicateRequest):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	resp := gin.H{
		"request_id":      d.RequestID(),
		"provider":        provider.String(),
		"order_reference": d.OrderReference(),
		"amount":          d.Amount(),
		"currency":        d.Currency(),
	}
	if m, err := a.builder.Merchant(); err == nil {
		resp["merchant"] = m.Name
	}
	c.JSON(http.StatusAccepted, resp)
}

func (a *app) sampleCartHandler(c *gin.Context) {
	provider, ok := providerParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, checkout.SampleCart(provider))
}

func (a *app) requestHandler(c *gin.Context) {
	info, ok := a.coordinator.Flow(c.Param("request_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown request"})
		return
	}
	resp := gin.H{
		"request_id": info.RequestID,
		"provider":   info.Provider,
		"state":      info.State.String(),
		"acks":       info.Acks,
	}
	if info.State == coordinator.FlowTerminal {
		resp["outcome"] = info.Outcome
	}
	c.JSON(http.StatusOK, resp)
}

func (a *app) probeReadinessHandler(c *gin.Context) {
	provider, ok := providerParam(c)
	if !ok {
		return
	}
	if !a.probes.Allow(provider) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "readiness probe rate limited"})
		return
	}
	a.coordinator.ProbeReadiness(c.Request.Context(), provider)
	c.JSON(http.StatusAccepted, gin.H{
		"provider":  provider.String(),
		"readiness": a.state.Readiness(provider).String(),
	})
}

func (a *app) stateHandler(c *gin.Context) {
	c.JSON(http.StatusOK, a.state.Snapshot())
}

// stateStreamHandler sends the current snapshot and then every change as
// server-sent events until the client goes away.
func (a *app) stateStreamHandler(c *gin.Context) {
	updates, unsubscribe := a.state.Subscribe()
	defer unsubscribe()

	c.SSEvent("state", a.state.Snapshot())
	c.Writer.Flush()
	c.Stream(func(w io.Writer) bool {
		select {
		case snap, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("state", snap)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (a *app) reportHandler(c *gin.Context) {
	entries, err := a.journal.List(c.Request.Context())
	if err != nil {
		a.log.WithError(err).Error("failed to read outcome journal")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read outcome journal"})
		return
	}
	report, err := a.reporter.GenerateRetrospective(entries)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
