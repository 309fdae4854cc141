package server

import (
	"net/http"

	"github.com/ternarybob/dealdesk/internal/handlers"
)

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	a := s.app

	register(mux,
		// Streaming generation
		[]Route{
			{"POST /api/chat", a.ChatHandler.StreamHandler},
			{"GET /ws/chat", a.WSHandler.ChatHandler},
			{"GET /ws/summary", a.WSHandler.SummaryHandler},
		},

		// Summaries and history
		RouteCRUD("/api/summaries", a.SummaryHandler.ListHandler, a.SummaryHandler.GenerateHandler,
			a.SummaryHandler.GetHandler, nil, a.SummaryHandler.DeleteHandler),
		[]Route{
			{"POST /api/summaries/{id}/favorite", a.SummaryHandler.FavoriteHandler},
			{"GET /api/summaries/{id}/pdf", a.SummaryHandler.PDFHandler},
		},

		// Knowledge
		RouteCRUD("/api/sources", a.SourcesHandler.ListSourcesHandler, a.SourcesHandler.CreateSourceHandler,
			a.SourcesHandler.GetSourceHandler, a.SourcesHandler.UpdateSourceHandler, a.SourcesHandler.DeleteSourceHandler),
		RouteCRUD("/api/items", a.KnowledgeHandler.ListItemsHandler, a.KnowledgeHandler.CreateItemHandler,
			nil, nil, nil),
		[]Route{
			{"POST /api/items/{id}/read", a.KnowledgeHandler.SetReadHandler},
			{"POST /api/items/mark-read", a.KnowledgeHandler.MarkReadHandler},
		},
		RouteCRUD("/api/notes", a.KnowledgeHandler.ListNotesHandler, a.KnowledgeHandler.CreateNoteHandler,
			nil, nil, a.KnowledgeHandler.DeleteNoteHandler),

		// Feed sync and jobs
		[]Route{
			{"POST /api/sync", a.SchedulerHandler.TriggerSyncHandler},
			{"POST /api/sync/stop", a.SchedulerHandler.StopSyncHandler},
			{"GET /api/jobs", a.SchedulerHandler.JobsHandler},
			{"POST /api/jobs/{name}/run", a.SchedulerHandler.TriggerJobHandler},
		},

		// Settings and system
		[]Route{
			{"GET /api/settings", a.KVHandler.ListKVHandler},
			{"PUT /api/settings/{key}", a.KVHandler.SetKVHandler},
			{"DELETE /api/settings/{key}", a.KVHandler.DeleteKVHandler},
			{"GET /api/config", a.ConfigHandler.GetConfig},
			{"GET /api/health", a.StatusHandler.HealthHandler},
			{"GET /api/version", a.StatusHandler.VersionHandler},
		},
	)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, http.StatusNotFound, "Not found")
	})

	return mux
}
