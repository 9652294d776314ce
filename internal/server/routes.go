package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/taskboard/internal/api/v1"
	"github.com/gosuda/taskboard/internal/api/ws"
)

func registerAPIRoutes(api huma.API, store v1.DataStore, hub *ws.Hub) {
	v1.RegisterBoardRoutes(api, store)
	v1.RegisterCardRoutes(api, store, hub)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/cards/{cardID}", hub.ServeCard)
}
