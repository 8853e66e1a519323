package postgres

import (
	"database/sql"

	"bookkeeper-backend/application/ports"

	"go.uber.org/zap"
)

// NewPersistence wires every repository of this backend against one pool.
func NewPersistence(db *sql.DB, logger *zap.Logger, publisher ports.EventPublisher) *ports.Persistence {
	return &ports.Persistence{
		Attachments:        NewAttachmentRepository(db, logger, publisher),
		InventoryLocations: NewInventoryLocationRepository(db, logger, publisher),
		InventoryTypes:     NewInventoryTypeRepository(db, logger, publisher),
		InventoryItems:     NewInventoryItemRepository(db, logger),
		Jobs:               NewTimeBasedJobRepository(db, logger),
		Sequences:          NewSequenceStore(db, logger),
	}
}
