package outbox

// Event is the domain event envelope written to the outbox table within the
// committing transaction. The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Event types published by this service.
const (
	EventAppointmentConfirmed = "appointment.confirmed.v1"
	EventAppointmentCancelled = "appointment.cancelled.v1"
	EventAbsenceDeclared      = "absence.declared.v1"
)
