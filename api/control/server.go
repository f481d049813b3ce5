// Package control exposes the orchestrator operations to the control
// authority over HTTP.
package control

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/kilianp07/mtrr/core/knowledge"
	"github.com/kilianp07/mtrr/core/logger"
	"github.com/kilianp07/mtrr/core/mission"
	"github.com/kilianp07/mtrr/core/model"
	"github.com/kilianp07/mtrr/core/monitoring"
)

// Config of the control API listener. An empty token disables
// authentication.
type Config struct {
	Listen string `json:"listen"`
	Token  string `json:"token"`
}

func (c *Config) SetDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
}

// Controller is the subset of the orchestrator driven by the API.
type Controller interface {
	StartMission(ctx context.Context, m *model.Mission) error
	RequestUpdatedStatus(ctx context.Context) error
	AbortVehiclePlan(ctx context.Context, vehicleID int, hard bool) error
	AbortMissionPlan(ctx context.Context, missionID int, hard bool) error
	OngoingMissionID() int
	EnablePeriodicEnvironmentalReport(ctx context.Context) error
	DisablePeriodicEnvironmentalReport(ctx context.Context) error
}

var _ Controller = (*mission.Orchestrator)(nil)

// Server routes control requests to the orchestrator. Plan submission and
// status refresh return immediately and run in the background.
type Server struct {
	cfg     Config
	e       *echo.Echo
	ctrl    Controller
	reports knowledge.Reader
	log     logger.Logger

	bg context.Context
	wg sync.WaitGroup
}

// NewServer builds the router. Background work runs under ctx.
func NewServer(ctx context.Context, cfg Config, ctrl Controller, reports knowledge.Reader, log logger.Logger) *Server {
	cfg.SetDefaults()
	s := &Server{cfg: cfg, ctrl: ctrl, reports: reports, log: log, bg: ctx}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	if cfg.Token != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			Skipper: func(c echo.Context) bool { return c.Path() == "/api/ping" },
			Validator: func(key string, _ echo.Context) (bool, error) {
				return subtle.ConstantTimeCompare([]byte(key), []byte(cfg.Token)) == 1, nil
			},
			ErrorHandler: func(error, echo.Context) error {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing token")
			},
		}))
	}

	api := e.Group("/api")
	api.GET("/ping", s.ping)
	api.POST("/missions", s.sendPlan)
	api.GET("/missions/current", s.currentMission)
	api.POST("/missions/:id/abort", s.abortMission)
	api.GET("/missions/:id/reports", s.taskReports)
	api.POST("/vehicles/:id/abort", s.abortVehicle)
	api.POST("/status/refresh", s.refreshStatus)
	api.POST("/environment/periodic", s.periodicEnvironment)
	s.e = e
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.e }

// Run serves until ctx is done, then shuts down gracefully and waits for
// background requests.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Infof("control api listening on %s", s.cfg.Listen)
		errc <- s.e.Start(s.cfg.Listen)
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.e.Shutdown(shutdownCtx)
	s.Wait()
	return err
}

// Wait blocks until background requests completed.
func (s *Server) Wait() { s.wg.Wait() }

func (s *Server) background(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer monitoring.Recover()
		if err := fn(s.bg); err != nil {
			s.log.Errorf("%s: %v", name, err)
		}
	}()
}

type resultResponse struct {
	Result string `json:"result"`
}

func (s *Server) ping(c echo.Context) error {
	return c.String(http.StatusOK, "Ping received on MTRR")
}

func (s *Server) sendPlan(c echo.Context) error {
	var m model.Mission
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid mission body")
	}
	s.log.Infof("mission plan %d received", m.ID)
	s.background("start mission", func(ctx context.Context) error {
		return s.ctrl.StartMission(ctx, &m)
	})
	return c.JSON(http.StatusAccepted, map[string]any{"mission_id": m.ID})
}

func (s *Server) refreshStatus(c echo.Context) error {
	s.background("request updated status", s.ctrl.RequestUpdatedStatus)
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) currentMission(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]int{"mission_id": s.ctrl.OngoingMissionID()})
}

func (s *Server) abortVehicle(c echo.Context) error {
	id, hard, err := abortParams(c)
	if err != nil {
		return err
	}
	return s.abortResult(c, s.ctrl.AbortVehiclePlan(c.Request().Context(), id, hard))
}

func (s *Server) abortMission(c echo.Context) error {
	id, hard, err := abortParams(c)
	if err != nil {
		return err
	}
	return s.abortResult(c, s.ctrl.AbortMissionPlan(c.Request().Context(), id, hard))
}

func abortParams(c echo.Context) (int, bool, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, false, echo.NewHTTPError(http.StatusBadRequest, "invalid id parameter")
	}
	hard := false
	if q := c.QueryParam("hard"); q != "" {
		if hard, err = strconv.ParseBool(q); err != nil {
			return 0, false, echo.NewHTTPError(http.StatusBadRequest, "invalid hard parameter")
		}
	}
	return id, hard, nil
}

// abortResult keeps the OK/NOK contract; failures that are not domain
// rejections also set a 5xx status.
func (s *Server) abortResult(c echo.Context, err error) error {
	code := http.StatusOK
	var rej *mission.RejectionError
	if err != nil && !errors.As(err, &rej) {
		s.log.Errorf("abort: %v", err)
		code = http.StatusBadGateway
	}
	return c.JSON(code, resultResponse{Result: mission.Result(err)})
}

func (s *Server) taskReports(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id parameter")
	}
	reports, err := s.reports.TaskReports(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if reports == nil {
		reports = []knowledge.TaskReport{}
	}
	return c.JSON(http.StatusOK, reports)
}

type periodicRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) periodicEnvironment(c echo.Context) error {
	var req periodicRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	ctx := c.Request().Context()
	var err error
	if req.Enabled {
		err = s.ctrl.EnablePeriodicEnvironmentalReport(ctx)
	} else {
		err = s.ctrl.DisablePeriodicEnvironmentalReport(ctx)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, resultResponse{Result: "OK"})
}
