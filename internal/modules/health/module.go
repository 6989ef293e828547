package health

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"

	"option_terminal/internal/modules/config"
	gws "option_terminal/internal/modules/gateway/service"
	"option_terminal/internal/modules/health/service"
)

func NewMux(state *service.State, c *gws.Client) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !state.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"ready":           state.Ready(),
			"gateway":         state.GatewayState(),
			"uptimeSec":       int64(state.Uptime().Seconds()),
			"lastTick":        state.LastTick().Format(time.RFC3339),
			"pendingRequests": c.PendingRequests(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	return mux
}

func RunHTTP(lc fx.Lifecycle, cfg *config.Config, mux *http.ServeMux) {
	srv := &http.Server{
		Addr:              cfg.Service.HealthAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			go func() { _ = srv.Serve(ln) }()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

// TrackGateway mirrors connection state changes and tick arrivals into the
// health state.
func TrackGateway(state *service.State, c *gws.Client) {
	state.SetGatewayState(string(c.ConnState()))
	c.OnStateChange(func(s gws.State) {
		state.SetGatewayState(string(s))
	})
	c.Registry().OnTick(func(t gws.Tick) {
		state.TouchTick(time.Unix(t.Epoch, 0))
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			NewMux,
		),
		fx.Invoke(
			TrackGateway,
			RunHTTP,
		),
	)
}
