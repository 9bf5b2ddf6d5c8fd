package app

import (
	"github.com/classkit/classkit/internal/repository"
	"github.com/classkit/classkit/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Container wires repositories and services. The transport layer (owned by a
// separate deployment) consumes these services; nothing here listens on
// anything.
type Container struct {
	Events      *service.EventService
	Obligations *service.ObligationService
	Slots       *service.SlotService
	Roster      *service.RosterService
	Projections *service.ProjectionService
}

func NewContainer(pool *pgxpool.Pool, logger *zap.Logger) *Container {
	eventRepo := repository.NewEventRepository(pool)
	obligationRepo := repository.NewObligationRepository(pool)
	slotRepo := repository.NewSlotRepository(pool)
	rosterRepo := repository.NewRosterRepository(pool)
	viewRepo := repository.NewViewRepository(pool)

	fanout := service.NewFanoutEngine(eventRepo, obligationRepo, rosterRepo, logger)

	return &Container{
		Events:      service.NewEventService(eventRepo, obligationRepo, rosterRepo, fanout, logger),
		Obligations: service.NewObligationService(eventRepo, obligationRepo, rosterRepo, logger),
		Slots:       service.NewSlotService(slotRepo, rosterRepo, logger),
		Roster:      service.NewRosterService(rosterRepo, obligationRepo, fanout, logger),
		Projections: service.NewProjectionService(eventRepo, obligationRepo, slotRepo, rosterRepo, viewRepo, logger),
	}
}
