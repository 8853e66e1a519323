package dynamodb

import (
	"bookkeeper-backend/application/ports"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

// NewPersistence wires every repository of this backend against one table.
func NewPersistence(client *dynamodb.Client, tableName string, logger *zap.Logger, publisher ports.EventPublisher) *ports.Persistence {
	return &ports.Persistence{
		Attachments:        NewAttachmentRepository(client, tableName, logger, publisher),
		InventoryLocations: NewInventoryLocationRepository(client, tableName, logger, publisher),
		InventoryTypes:     NewInventoryTypeRepository(client, tableName, logger, publisher),
		InventoryItems:     NewInventoryItemRepository(client, tableName, logger),
		Jobs:               NewTimeBasedJobRepository(client, tableName, logger),
		Sequences:          NewSequenceStore(client, tableName, logger),
	}
}
