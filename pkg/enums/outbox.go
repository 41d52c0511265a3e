package enums

// OutboxAggregateType names the entity an outbox event describes.
type OutboxAggregateType string

const (
	AggregateUser  OutboxAggregateType = "user"
	AggregateOrder OutboxAggregateType = "order"
	AggregateShop  OutboxAggregateType = "shop"
)

var aggregateTypes = values[OutboxAggregateType]{AggregateUser, AggregateOrder, AggregateShop}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse("aggregate type", value)
}

// OutboxEventType names a domain event carried through the outbox. The value
// doubles as the event_type message attribute on Pub/Sub.
type OutboxEventType string

const (
	EventUserRegistered         OutboxEventType = "user.registered"
	EventOrderPlaced            OutboxEventType = "order.placed"
	EventOrderStatusChanged     OutboxEventType = "order.status_changed"
	EventPartnerCatalogImported OutboxEventType = "partner.catalog_imported"
)

var eventTypes = values[OutboxEventType]{
	EventUserRegistered,
	EventOrderPlaced,
	EventOrderStatusChanged,
	EventPartnerCatalogImported,
}

func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return eventTypes.parse("event type", value)
}
