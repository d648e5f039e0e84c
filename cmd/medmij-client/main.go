// medmij-client hosts the PGO half of the MedMij flow: it loads the ZAL
// and GNL, builds the client engine and exposes the endpoints that start a
// flow and receive the authorization response. All protocol logic lives in
// pkg/client.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gopkg.in/yaml.v3"

	"github.com/gidsopenstandaarden/medmij-oauth/pkg/client"
	"github.com/gidsopenstandaarden/medmij-oauth/pkg/oauth2"
	"github.com/gidsopenstandaarden/medmij-oauth/pkg/registry"
)

type Config struct {
	ListenAddr     string        `yaml:"listen_addr" validate:"required"`
	ClientID       string        `yaml:"client_id" validate:"required"`
	RedirectURI    string        `yaml:"redirect_uri" validate:"required"`
	ZALPath        string        `yaml:"zal_path" validate:"required"`
	GNLPath        string        `yaml:"gnl_path" validate:"required"`
	Whitelist      []string      `yaml:"whitelist" validate:"required,min=1"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
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
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &cfg, nil
}

func loadRegistries(cfg *Config) (*registry.ZAL, error) {
	gnlFile, err := os.Open(cfg.GNLPath)
	if err != nil {
		return nil, err
	}
	defer gnlFile.Close()
	gnl, err := registry.ParseGNL(gnlFile)
	if err != nil {
		return nil, err
	}

	zalFile, err := os.Open(cfg.ZALPath)
	if err != nil {
		return nil, err
	}
	defer zalFile.Close()
	return registry.ParseZAL(zalFile, gnl)
}

func main() {
	godotenv.Load()
	slog.SetLogLoggerLevel(slog.LevelDebug)

	configPath := os.Getenv("MEDMIJ_CLIENT_CONFIG")
	if configPath == "" {
		configPath = "medmij-client.yaml"
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	zal, err := loadRegistries(cfg)
	if err != nil {
		log.Fatal(err)
	}
	slog.Info("loaded ZAL", "path", cfg.ZALPath, "zorgaanbieders", len(zal.Names()))

	whitelist := client.NewWhitelist(cfg.Whitelist...)

	pgo, err := client.New(
		client.Config{ClientID: cfg.ClientID, RedirectURI: cfg.RedirectURI},
		client.WithMemorySessionStore(),
		client.WithZALSource(func(ctx context.Context) (*registry.ZAL, error) {
			return zal, nil
		}),
		client.WithWhitelistSource(func(ctx context.Context) (client.Whitelist, error) {
			return whitelist, nil
		}),
		client.WithRequestFunc(newRequester(cfg.RequestTimeout)),
	)
	if err != nil {
		log.Fatal(err)
	}

	root := echo.New()
	root.HideBanner = true
	root.Use(middleware.Recover())

	root.GET("/oauth/start", startEndpoint(pgo))
	root.GET("/oauth/cb", callbackEndpoint(pgo))
	root.GET("/providers", providersEndpoint(zal))

	slog.Info("starting medmij-client", "addr", cfg.ListenAddr)
	log.Fatal(root.Start(cfg.ListenAddr))
}

// newRequester builds the outbound token-exchange call. The timeout bounds
// the whole call; the context propagates cancellation of the surrounding
// request.
func newRequester(timeout time.Duration) client.RequestFunc {
	httpClient := &http.Client{Timeout: timeout}

	return func(ctx context.Context, method, requestURL string, form url.Values) (map[string]any, error) {
		req, err := http.NewRequestWithContext(ctx, method, requestURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, fmt.Errorf("building token request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("token request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading token response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			var errBody oauth2.ErrorBody
			if err := json.Unmarshal(body, &errBody); err == nil && errBody.Error != "" {
				return nil, fmt.Errorf("token endpoint returned %s: %s", errBody.Error, errBody.ErrorDescription)
			}
			return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
		}

		var decoded map[string]any
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, fmt.Errorf("decoding token response: %w", err)
		}
		return decoded, nil
	}
}

func startEndpoint(pgo *client.Client) echo.HandlerFunc {
	return func(c echo.Context) error {
		providerName := c.QueryParam("provider")
		dataServiceID := c.QueryParam("service")
		if providerName == "" || dataServiceID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "provider and service query parameters required")
		}

		session, err := pgo.CreateSession(c.Request().Context(), providerName, dataServiceID)
		if err != nil {
			return err
		}
		authURL, err := pgo.AuthorizationURL(c.Request().Context(), session)
		if err != nil {
			return err
		}
		return c.Redirect(http.StatusFound, authURL)
	}
}

func callbackEndpoint(pgo *client.Client) echo.HandlerFunc {
	return func(c echo.Context) error {
		session, err := pgo.HandleAuthResponse(c.Request().Context(), c.QueryParams())
		if err != nil {
			return err
		}
		session, err = pgo.ExchangeAuthorizationCode(c.Request().Context(), session)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]any{
			"session_id": session.ID,
			"authorized": session.Authorized,
		})
	}
}

func providersEndpoint(zal *registry.ZAL) echo.HandlerFunc {
	type dataServiceInfo struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	}
	type providerInfo struct {
		Name         string            `json:"name"`
		DataServices []dataServiceInfo `json:"gegevensdiensten"`
	}

	return func(c echo.Context) error {
		providers := []providerInfo{}
		for _, name := range zal.Names() {
			provider, err := zal.Provider(name)
			if err != nil {
				continue
			}
			info := providerInfo{Name: name}
			for _, id := range provider.DataServiceIDs() {
				ds, err := provider.DataService(id)
				if err != nil {
					continue
				}
				info.DataServices = append(info.DataServices, dataServiceInfo{
					ID:          ds.ID,
					DisplayName: ds.DisplayName,
				})
			}
			providers = append(providers, info)
		}
		return c.JSON(http.StatusOK, providers)
	}
}
