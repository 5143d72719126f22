// Package api exposes the analysis service over JSON HTTP.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"statcore/app"
	"statcore/domain/dataset"
	"statcore/internal/errors"
)

// Server routes requests to the analysis service
type Server struct {
	svc     *app.AnalysisService
	metrics *Metrics
	log     zerolog.Logger
	engine  *gin.Engine
}

// NewServer builds the router. The caller sets the gin mode.
func NewServer(svc *app.AnalysisService, metrics *Metrics, log zerolog.Logger) *Server {
	s := &Server{
		svc:     svc,
		metrics: metrics,
		log:     log.With().Str("component", "http").Logger(),
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.observe())

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := s.engine.Group("/api/v1")
	v1.POST("/descriptives", s.descriptives)
	v1.POST("/anova/independent", s.independent)
	v1.POST("/anova/repeated", s.repeated)
	v1.POST("/anova/batch", s.batch)
	v1.POST("/anova/two-way", s.twoWay)
	v1.POST("/ttest", s.ttest)
	v1.POST("/factor", s.factor)
	v1.POST("/regression", s.regression)
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) descriptives(c *gin.Context) {
	var body DescriptivesBody
	ds, ok := s.bind(c, &body, &body.DatasetPayload)
	if !ok {
		return
	}
	report, err := s.svc.Descriptives(c.Request.Context(), ds, body.DescriptivesRequest)
	s.respond(c, report, err)
}

func (s *Server) independent(c *gin.Context) {
	var body IndependentBody
	ds, ok := s.bind(c, &body, &body.DatasetPayload)
	if !ok {
		return
	}
	report, err := s.svc.Independent(c.Request.Context(), ds, body.IndependentRequest)
	s.respond(c, report, err)
}

func (s *Server) repeated(c *gin.Context) {
	var body RepeatedBody
	ds, ok := s.bind(c, &body, &body.DatasetPayload)
	if !ok {
		return
	}
	report, err := s.svc.Repeated(c.Request.Context(), ds, body.RepeatedRequest)
	s.respond(c, report, err)
}

func (s *Server) batch(c *gin.Context) {
	var body BatchBody
	ds, ok := s.bind(c, &body, &body.DatasetPayload)
	if !ok {
		return
	}
	items, err := s.svc.Batch(c.Request.Context(), ds, body.BatchRequest)
	s.respond(c, gin.H{"items": items}, err)
}

func (s *Server) twoWay(c *gin.Context) {
	var body TwoWayBody
	ds, ok := s.bind(c, &body, &body.DatasetPayload)
	if !ok {
		return
	}
	report, err := s.svc.TwoWay(c.Request.Context(), ds, body.TwoWayRequest)
	s.respond(c, report, err)
}

func (s *Server) ttest(c *gin.Context) {
	var body TTestBody
	ds, ok := s.bind(c, &body, &body.DatasetPayload)
	if !ok {
		return
	}
	report, err := s.svc.TTest(c.Request.Context(), ds, body.TTestRequest)
	s.respond(c, report, err)
}

func (s *Server) factor(c *gin.Context) {
	var body FactorBody
	ds, ok := s.bind(c, &body, &body.DatasetPayload)
	if !ok {
		return
	}
	report, err := s.svc.Factor(c.Request.Context(), ds, body.FactorRequest)
	s.respond(c, report, err)
}

func (s *Server) regression(c *gin.Context) {
	var body RegressionBody
	ds, ok := s.bind(c, &body, &body.DatasetPayload)
	if !ok {
		return
	}
	report, err := s.svc.Regression(c.Request.Context(), ds, body.RegressionRequest)
	s.respond(c, report, err)
}

func (s *Server) bind(c *gin.Context, body any, payload *DatasetPayload) (*dataset.Dataset, bool) {
	if err := c.ShouldBindJSON(body); err != nil {
		s.fail(c, errors.Wrap(errors.InvalidInput(err.Error()), "invalid request body"))
		return nil, false
	}
	ds, err := payload.load()
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return ds, true
}

func (s *Server) respond(c *gin.Context, v any, err error) {
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) fail(c *gin.Context, err error) {
	appErr := errors.FromEngine(err)
	c.AbortWithStatusJSON(errors.HTTPStatus(appErr.Code), ErrorBody{
		Error: ErrorDetail{Code: appErr.Code, Message: appErr.Error()},
	})
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		s.metrics.RequestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())

		event := s.log.Info()
		if status >= http.StatusInternalServerError {
			event = s.log.Error()
		}
		event.Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", elapsed).
			Msg("request")
	}
}
