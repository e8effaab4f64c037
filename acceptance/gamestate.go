package acceptance

import (
	"context"
	"encoding/json"
	"errors"
	"go.uber.org/zap"
	"io"
	"lobby-pilot/applog"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	maxGameStateBodySize = 1 << 20
	shutdownTimeout      = 2 * time.Second
)

// Map phases in which the client is inside an accepted match.
var matchPhases = map[string]struct{}{
	"warmup": {},
	"live":   {},
}

type gameState struct {
	Provider *struct {
		SteamID string `json:"steamid"`
	} `json:"provider"`
	Map *struct {
		Name  string `json:"name"`
		Phase string `json:"phase"`
	} `json:"map"`
}

// GameStateHandler receives the client's game state integration pushes and
// sets the flag once any client reports a map in a match phase.
type GameStateHandler struct {
	flag *Flag
}

func NewGameStateHandler(flag *Flag) *GameStateHandler {
	return &GameStateHandler{flag: flag}
}

func (h *GameStateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxGameStateBodySize))
	if err != nil {
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	var state gameState
	if err := json.Unmarshal(body, &state); err != nil {
		applog.Debug("Malformed game state payload", zap.Error(err))
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	if state.Map != nil {
		if _, ok := matchPhases[strings.ToLower(state.Map.Phase)]; ok && h.flag.Set() {
			steamID := ""
			if state.Provider != nil {
				steamID = state.Provider.SteamID
			}
			applog.Info("Match accepted",
				zap.String("map", state.Map.Name),
				zap.String("phase", state.Map.Phase),
				zap.String("steamId", steamID),
			)
		}
	}

	w.WriteHeader(http.StatusOK)
}

// Serve runs the game state listener on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serveListener(ctx, listener, handler)
}

func serveListener(ctx context.Context, listener net.Listener, handler http.Handler) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	applog.Info("Listening for game state", zap.String("addr", listener.Addr().String()))
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
