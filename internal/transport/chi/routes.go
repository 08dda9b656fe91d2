package chi

import (
	"github.com/go-chi/chi/v5"
)

// Register mounts the API routes on r. Middleware is the caller's concern.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/datasets", func(r chi.Router) {
			r.Post("/", s.CreateDataset)
			r.Get("/", s.ListDatasets)

			r.Route("/{dataset_id}", func(r chi.Router) {
				r.Get("/", s.GetDataset)
				r.Delete("/", s.DeleteDataset)
				r.Post("/fields", s.AddField)
				r.Post("/questions", s.AddQuestion)
				r.Post("/metadata-properties", s.AddMetadataProperty)
				r.Post("/vectors-settings", s.AddVectorSettings)
				r.Put("/publish", s.PublishDataset)
				r.Get("/mapping", s.GetMapping)
				r.Get("/progress", s.GetProgress)

				r.Route("/records", func(r chi.Router) {
					r.Post("/", s.UpsertRecords)
					r.Get("/", s.ListRecords)
					r.Delete("/", s.DeleteRecords)
					r.Post("/search", s.SearchRecords)

					r.Route("/{record_id}", func(r chi.Router) {
						r.Get("/", s.GetRecord)
						r.Put("/responses", s.UpsertResponse)
						r.Delete("/responses", s.DeleteResponse)
						r.Put("/suggestions", s.UpsertSuggestion)
					})
				})
			})
		})

		r.Route("/me/datasets/{dataset_id}", func(r chi.Router) {
			r.Get("/records", s.ListMyRecords)
			r.Post("/records/search", s.SearchMyRecords)
			r.Get("/metrics", s.GetMyMetrics)
		})
	})

	r.Get("/api/datasets/{dataset_id}/records", s.ListRecordsLegacy)
}
