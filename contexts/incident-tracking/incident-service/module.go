package incidentservice

import (
	"log/slog"
	"time"

	httpadapter "reefwatch/contexts/incident-tracking/incident-service/adapters/http"
	"reefwatch/contexts/incident-tracking/incident-service/adapters/memory"
	"reefwatch/contexts/incident-tracking/incident-service/application/commands"
	"reefwatch/contexts/incident-tracking/incident-service/application/queries"
	"reefwatch/contexts/incident-tracking/incident-service/application/workers"
	"reefwatch/contexts/incident-tracking/incident-service/domain/entities"
	"reefwatch/contexts/incident-tracking/incident-service/ports"
	"reefwatch/internal/shared/dedupe"
)

type Module struct {
	Handler   httpadapter.Handler
	Projector workers.RecoveryProjector
	Consumer  *workers.ReportedConsumer
	Store     *memory.Store
}

type Dependencies struct {
	Incidents   ports.IncidentRepository
	Recovery    ports.RecoveryRepository
	DeadLetters ports.DeadLetterStore
	Events      ports.EventAppender
	Subscriber  ports.EventSubscriber
	Feed        ports.FeedFetcher
	Notifier    ports.ProcessedNotifier
	Views       ports.ViewNotifier
	Dedupe      *dedupe.Cache
	Metrics     *workers.ConsumerMetrics
	Clock       ports.Clock
	IDGenerator ports.IDGenerator

	ProjectorGroup string
	ConsumerGroup  string
	RetryAttempts  int
	RetryDelay     time.Duration

	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	createIncident := commands.CreateIncidentUseCase{
		Incidents:   deps.Incidents,
		Events:      deps.Events,
		Views:       deps.Views,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	}
	updateIncident := commands.UpdateIncidentUseCase{
		Incidents: deps.Incidents,
		Events:    deps.Events,
		Views:     deps.Views,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	}
	deleteIncidents := commands.DeleteIncidentsUseCase{
		Incidents: deps.Incidents,
		Events:    deps.Events,
		Views:     deps.Views,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	}
	importIncidents := commands.ImportIncidentsUseCase{
		Feed:        deps.Feed,
		Events:      deps.Events,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	}

	getIncident := queries.GetIncidentUseCase{
		Incidents: deps.Incidents,
		Logger:    deps.Logger,
	}
	listIncidents := queries.ListIncidentsUseCase{
		Incidents: deps.Incidents,
		Logger:    deps.Logger,
	}

	projector := workers.RecoveryProjector{
		Subscriber: deps.Subscriber,
		Incidents:  deps.Recovery,
		Group:      deps.ProjectorGroup,
		Logger:     deps.Logger,
	}
	consumer := &workers.ReportedConsumer{
		Subscriber:    deps.Subscriber,
		Incidents:     deps.Incidents,
		Notifier:      deps.Notifier,
		DeadLetters:   deps.DeadLetters,
		Dedupe:        deps.Dedupe,
		Metrics:       deps.Metrics,
		ConsumerGroup: deps.ConsumerGroup,
		RetryAttempts: deps.RetryAttempts,
		RetryDelay:    deps.RetryDelay,
		Logger:        deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			CreateIncident:  createIncident,
			UpdateIncident:  updateIncident,
			DeleteIncidents: deleteIncidents,
			ImportIncidents: importIncidents,
			GetIncident:     getIncident,
			ListIncidents:   listIncidents,
			DeadLetters:     deps.DeadLetters,
			Logger:          deps.Logger,
		},
		Projector: projector,
		Consumer:  consumer,
	}
}

// NewInMemoryModule wires every port to the in-memory store. Used by tests
// and local runs without Postgres; note the notifier stays nil-free by
// requiring the caller to pass one through Dependencies for anything beyond
// command handling.
func NewInMemoryModule(seed []entities.Incident, deps Dependencies, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	deps.Incidents = store
	deps.Recovery = store
	deps.DeadLetters = store
	deps.Clock = store
	deps.IDGenerator = store
	if deps.Dedupe == nil {
		deps.Dedupe = dedupe.NewCache(0, 0)
	}
	deps.Logger = logger
	module := NewModule(deps)
	module.Store = store
	return module
}
