package http

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	gws "github.com/gorilla/websocket"

	"datapulse/internal/config"
	apierrors "datapulse/internal/errors"
	"datapulse/internal/store"
	"datapulse/internal/websocket"
)

// closeUnknownFile is the close code sent when the file id is unknown
const closeUnknownFile = 4004

// WSHandler upgrades connections and attaches them to the hub
type WSHandler struct {
	hub      *websocket.Hub
	records  RecordReader
	upgrader gws.Upgrader
	opts     websocket.Options
	logger   *slog.Logger
}

// NewWSHandler creates a websocket handler with dependency injection
func NewWSHandler(hub *websocket.Hub, records RecordReader, cfg config.WebSocketConfig, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		hub:     hub,
		records: records,
		upgrader: gws.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// Browser clients connect from the app's own origin; the
			// API carries no credentials beyond the file id
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		opts: websocket.Options{
			WriteWait:      cfg.WriteWait,
			PongWait:       cfg.PongWait,
			SendBufferSize: cfg.SendBufferSize,
		},
		logger: logger.With(slog.String("component", "ws_handler")),
	}
}

// gorillaConnection adapts *gws.Conn to the hub's Connection interface
type gorillaConnection struct {
	*gws.Conn
}

func (c gorillaConnection) RemoteAddr() string {
	return c.Conn.RemoteAddr().String()
}

// Serve handles GET /api/v1/ws/{file_id}. An unknown file id is
// answered after the upgrade with close code 4004 so browser clients
// can distinguish it from transport failures.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "file_id")
	if fileID == "" {
		render.Render(w, r, apierrors.ErrValidation("file_id", "file_id path parameter is required"))
		return
	}

	_, lookupErr := h.records.Get(r.Context(), fileID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.logger.Error("websocket upgrade failed",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()))
		return
	}

	if lookupErr != nil {
		code := closeUnknownFile
		reason := "unknown file id"
		if !stderrors.Is(lookupErr, store.ErrNotFound) {
			code = gws.CloseInternalServerErr
			reason = "lookup failed"
			h.logger.Error("record lookup failed during websocket attach",
				slog.String("file_id", fileID),
				slog.String("error", lookupErr.Error()))
		}
		deadline := time.Now().Add(time.Second)
		conn.WriteControl(gws.CloseMessage,
			gws.FormatCloseMessage(code, reason), deadline)
		conn.Close()
		return
	}

	websocket.ServeWS(h.hub, gorillaConnection{conn}, fileID, h.opts, h.logger)
}
