// medmij-server hosts the zorgaanbieder half of the MedMij flow: it loads
// the OCL, builds the server engine and exposes the authorization, grant
// and token endpoints. All protocol logic lives in pkg/server; this binary
// is the thin boundary that turns protocol errors into redirects or JSON.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"github.com/gidsopenstandaarden/medmij-oauth/pkg/oauth2"
	"github.com/gidsopenstandaarden/medmij-oauth/pkg/registry"
	"github.com/gidsopenstandaarden/medmij-oauth/pkg/server"
)

type Config struct {
	ListenAddr           string `yaml:"listen_addr" validate:"required"`
	OCLPath              string `yaml:"ocl_path" validate:"required"`
	PostgresDSN          string `yaml:"postgres_dsn"`
	CodeLifetimeSeconds  int    `yaml:"code_lifetime_seconds"`
	TokenLifetimeSeconds int    `yaml:"token_lifetime_seconds"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file %q: %w", path, err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func main() {
	godotenv.Load()
	slog.SetLogLoggerLevel(slog.LevelDebug)

	configPath := os.Getenv("MEDMIJ_SERVER_CONFIG")
	if configPath == "" {
		configPath = "medmij-server.yaml"
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	oclFile, err := os.Open(cfg.OCLPath)
	if err != nil {
		log.Fatal(err)
	}
	ocl, err := registry.ParseOCL(oclFile)
	oclFile.Close()
	if err != nil {
		log.Fatal(err)
	}
	slog.Info("loaded OCL", "path", cfg.OCLPath, "clients", len(ocl.Hostnames()))

	srv, err := newServer(cfg, ocl)
	if err != nil {
		log.Fatal(err)
	}

	registerMetrics()

	root := echo.New()
	root.HideBanner = true
	root.Use(middleware.Recover())
	root.HTTPErrorHandler = oauthErrorHandler

	root.GET("/oauth/authorize", authorizeEndpoint(srv))
	root.POST("/oauth/grant/:id", grantEndpoint(srv))
	root.POST("/oauth/token", tokenEndpoint(srv))
	root.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	slog.Info("starting medmij-server", "addr", cfg.ListenAddr)
	log.Fatal(root.Start(cfg.ListenAddr))
}

func newServer(cfg *Config, ocl *registry.OCL) (*server.Server, error) {
	opts := []server.Option{
		server.WithOCLSource(func(ctx context.Context) (*registry.OCL, error) {
			return ocl, nil
		}),
		// the availability predicate is deployment specific; this host
		// accepts everything and leaves the real check to integrators
		server.WithResourceAvailable(func(ctx context.Context, clientData map[string]any) (bool, error) {
			return true, nil
		}),
	}

	if cfg.PostgresDSN != "" {
		store, err := server.OpenPostgresSessionStore(context.Background(), cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		opts = append(opts, server.WithSessionStore(store))
		slog.Info("using postgres session store")
	} else {
		opts = append(opts, server.WithMemorySessionStore())
		slog.Warn("using in-memory session store; sessions are lost on restart")
	}

	if cfg.CodeLifetimeSeconds > 0 {
		opts = append(opts, server.WithCodeLifetime(secondsToDuration(cfg.CodeLifetimeSeconds)))
	}
	if cfg.TokenLifetimeSeconds > 0 {
		opts = append(opts, server.WithTokenLifetime(secondsToDuration(cfg.TokenLifetimeSeconds)))
	}

	return server.New(opts...)
}

func authorizeEndpoint(srv *server.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		session, err := srv.CreateSession(c.Request().Context(), c.QueryParams())
		if err != nil {
			authorizeRequests.WithLabelValues("rejected").Inc()
			return err
		}
		if err := srv.IsKnownCitizen(c.Request().Context(), session); err != nil {
			authorizeRequests.WithLabelValues("rejected").Inc()
			return err
		}
		if err := srv.CheckResourceAvailable(c.Request().Context(), session, map[string]any{}); err != nil {
			authorizeRequests.WithLabelValues("rejected").Inc()
			return err
		}
		authorizeRequests.WithLabelValues("accepted").Inc()

		// the consent UI is deployment specific; hand the caller the
		// session id it needs to post the grant decision
		return c.JSON(http.StatusOK, map[string]string{
			"session_id": session.ID,
			"client_id":  session.ClientID,
			"scope":      session.Scope,
		})
	}
}

func grantEndpoint(srv *server.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		granted := c.FormValue("granted") == "true"
		_, redirectURL, err := srv.DecideGrant(c.Request().Context(), c.Param("id"), granted)
		if err != nil {
			grantDecisions.WithLabelValues("denied").Inc()
			return err
		}
		grantDecisions.WithLabelValues("granted").Inc()
		return c.Redirect(http.StatusFound, redirectURL)
	}
}

func tokenEndpoint(srv *server.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		params, err := c.FormParams()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		response, err := srv.RedeemAuthorizationCode(c.Request().Context(), params)
		if err != nil {
			codeRedemptions.WithLabelValues("rejected").Inc()
			return err
		}
		codeRedemptions.WithLabelValues("redeemed").Inc()
		return c.JSON(http.StatusOK, response)
	}
}

// oauthErrorHandler renders protocol errors per the koppelvlak: a
// redirect when the error carries one, a JSON body with the mapped status
// otherwise. Integrity errors (unknown session id, unknown error code)
// deliberately fall through to a plain 500: redirecting on those could
// leak information or loop.
func oauthErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var oauthErr *oauth2.Error
	if errors.As(err, &oauthErr) {
		if oauthErr.Redirect {
			if target, rerr := oauthErr.RedirectURL(); rerr == nil {
				c.Redirect(http.StatusFound, target)
				return
			}
		}
		c.JSON(oauthErr.Status(), oauthErr.Body())
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		c.JSON(httpErr.Code, oauth2.ErrorBody{
			Error:            oauth2.InvalidRequest.Wire(),
			ErrorDescription: fmt.Sprintf("%v", httpErr.Message),
		})
		return
	}

	slog.Error("request failed", "error", err, "path", c.Path())
	c.JSON(http.StatusInternalServerError, oauth2.ErrorBody{
		Error:            oauth2.ServerError.Wire(),
		ErrorDescription: "internal error",
	})
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
