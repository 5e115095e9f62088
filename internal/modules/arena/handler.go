package arena

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/imfiit/arena/internal/domain"
	"github.com/imfiit/arena/internal/middleware"
	"github.com/imfiit/arena/internal/modules/arena/battle"
	"github.com/imfiit/arena/internal/modules/arena/history"
	"github.com/imfiit/arena/internal/modules/arena/lobby"
	"github.com/imfiit/arena/internal/modules/arena/views"
	"github.com/imfiit/arena/internal/rendering"
	"github.com/imfiit/arena/internal/view"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HistoryResponse is the caller's profile and recent battles.
type HistoryResponse struct {
	Profile history.Profile  `json:"profile"`
	Battles []history.Record `json:"battles"`
}

// RoomQuery is the read side of the room registry.
type RoomQuery interface {
	Get(roomID string) (lobby.Room, error)
	List() []lobby.Room
}

// BattleQuery is the read side of the battle engine.
type BattleQuery interface {
	Get(battleID string) (battle.Snapshot, error)
}

// Handler serves the arena's HTTP reads. Every route expects the player
// set by middleware.Auth.
type Handler struct {
	rooms    RoomQuery
	battles  BattleQuery
	store    history.Store
	archive  *history.Archive
	renderer rendering.Renderer
}

func NewHandler(rooms RoomQuery, battles BattleQuery, store history.Store, archive *history.Archive, renderer rendering.Renderer) *Handler {
	return &Handler{
		rooms:    rooms,
		battles:  battles,
		store:    store,
		archive:  archive,
		renderer: renderer,
	}
}

// Mount registers the routes on g.
func (h *Handler) Mount(g *echo.Group) {
	g.GET("/rooms", h.ListRooms)
	g.GET("/rooms/:id", h.GetRoom)
	g.GET("/battles/:id", h.GetBattle)
	g.GET("/history", h.History)
	g.GET("/replays/:id", h.GetReplay)
	g.GET("/lobby", h.Lobby)
	g.GET("/lobby/rooms", h.LobbyRooms)
}

// ListRooms returns the public waiting rooms.
func (h *Handler) ListRooms(c echo.Context) error {
	return c.JSON(http.StatusOK, h.rooms.List())
}

func (h *Handler) GetRoom(c echo.Context) error {
	room, err := h.rooms.Get(c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, room)
}

// GetBattle returns the live projection of a running battle.
func (h *Handler) GetBattle(c echo.Context) error {
	snap, err := h.battles.Get(c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// History returns the caller's profile and up to ?limit recent battles.
func (h *Handler) History(c echo.Context) error {
	player, ok := middleware.PlayerFrom(c)
	if !ok {
		return writeError(c, domain.ErrUnauthorized)
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return writeError(c, domain.NewValidationError("limit", "must be a non-negative integer"))
		}
		limit = n
	}

	ctx := c.Request().Context()
	profile, err := h.store.Profile(ctx, player.ID)
	if err != nil {
		return writeError(c, err)
	}
	battles, err := h.store.RecentBattles(ctx, player.ID, limit)
	if err != nil {
		return writeError(c, err)
	}
	if battles == nil {
		battles = []history.Record{}
	}
	return c.JSON(http.StatusOK, HistoryResponse{Profile: profile, Battles: battles})
}

// GetReplay returns an archived battle, as HTML when the client asks for it.
func (h *Handler) GetReplay(c echo.Context) error {
	if h.archive == nil {
		return writeError(c, domain.ErrBattleNotFound)
	}
	replay, err := h.archive.Read(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	if wantsHTML(c) {
		return h.renderer.RenderPage(c, http.StatusOK, views.Replay(replay))
	}
	return c.JSON(http.StatusOK, replay)
}

// Lobby renders the lobby page.
func (h *Handler) Lobby(c echo.Context) error {
	player, ok := middleware.PlayerFrom(c)
	if !ok {
		return c.Redirect(http.StatusFound, "/")
	}

	ctx := c.Request().Context()
	data := views.LobbyData{
		Player: *player,
		Rooms:  h.rooms.List(),
		Flash:  view.GetFlashData(c),
	}
	// The page still renders if history is unavailable.
	var err error
	if data.Profile, err = h.store.Profile(ctx, player.ID); err != nil {
		middleware.FromContext(ctx).Warn("Lobby profile unavailable", "error", err)
		data.Profile = history.Profile{PlayerID: player.ID}
	}
	if data.Recent, err = h.store.RecentBattles(ctx, player.ID, 5); err != nil {
		middleware.FromContext(ctx).Warn("Lobby history unavailable", "error", err)
	}
	return h.renderer.RenderPage(c, http.StatusOK, views.Lobby(data))
}

// LobbyRooms renders the polled room list fragment.
func (h *Handler) LobbyRooms(c echo.Context) error {
	html, err := h.renderer.RenderComponent(c.Request().Context(), views.RoomList(h.rooms.List()))
	if err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, html)
}

func wantsHTML(c echo.Context) bool {
	return c.Request().Header.Get("HX-Request") == "true" ||
		strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMETextHTML)
}

func writeError(c echo.Context, err error) error {
	code, reason := domain.Describe(err)
	status := http.StatusInternalServerError
	switch code {
	case domain.CodeNotFound:
		status = http.StatusNotFound
	case domain.CodeValidation:
		status = http.StatusBadRequest
	case domain.CodeUnauthorized:
		status = http.StatusUnauthorized
	case domain.CodeAlreadyInRoom, domain.CodeRoomFull, domain.CodeGameInProgress,
		domain.CodeNotYourTurn, domain.CodeBattleNotActive, domain.CodeNotInRoom:
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		middleware.FromContext(c.Request().Context()).Error("Arena request failed", "error", err)
	}
	return c.JSON(status, ErrorResponse{Code: code, Message: reason})
}
