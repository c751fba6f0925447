// Package events defines the messages exchanged with the other services of the
// workspace and the buses that carry them.
package events

import (
	"github.com/google/uuid"
)

// EventType discriminates the payload carried by an Envelope.
type EventType string

const (
	TypeDataEvent                    EventType = "DataEvent"
	TypeDomainEventChangedString     EventType = "DomainEventChangedString"
	TypeDomainEventChangedStringUUID EventType = "DomainEventChangedStringUUID"
	TypeSagaEvent                    EventType = "SagaEvent"
)

// Event is implemented only by the payload types of this package.
type Event interface {
	EventType() EventType
	sealed()
}

type ServiceEntity string

const (
	EntityProject ServiceEntity = "PROJECT"
	EntityUser    ServiceEntity = "USER"
	EntityIssue   ServiceEntity = "ISSUE"
)

type DataEventCode string

const (
	DataCreated DataEventCode = "CREATED"
	DataUpdated DataEventCode = "UPDATED"
	DataDeleted DataEventCode = "DELETED"
)

// DataEvent announces that an entity was created, updated or deleted.
type DataEvent struct {
	Entity ServiceEntity `json:"entity"`
	Code   DataEventCode `json:"code"`
	ID     uuid.UUID     `json:"id"`
}

func (DataEvent) EventType() EventType { return TypeDataEvent }
func (DataEvent) sealed()              {}

type DomainEventCode string

const (
	ProjectChangedName   DomainEventCode = "PROJECT_CHANGED_NAME"
	ProjectChangedMember DomainEventCode = "PROJECT_CHANGED_MEMBER"
)

// DomainEventChangedString carries the old and new value of a string attribute.
// A nil side means the value did not exist before or after the change.
type DomainEventChangedString struct {
	Code DomainEventCode `json:"code"`
	ID   uuid.UUID       `json:"id"`
	Old  *string         `json:"old"`
	New  *string         `json:"new"`
}

func (DomainEventChangedString) EventType() EventType { return TypeDomainEventChangedString }
func (DomainEventChangedString) sealed()              {}

// DomainEventChangedStringUUID is DomainEventChangedString about a subject
// inside the entity, e.g. the role of one user within a project.
type DomainEventChangedStringUUID struct {
	Code    DomainEventCode `json:"code"`
	ID      uuid.UUID       `json:"id"`
	Subject uuid.UUID       `json:"subject"`
	Old     *string         `json:"old"`
	New     *string         `json:"new"`
}

func (DomainEventChangedStringUUID) EventType() EventType { return TypeDomainEventChangedStringUUID }
func (DomainEventChangedStringUUID) sealed()              {}

type SagaReferenceType string

const (
	SagaReferenceProject SagaReferenceType = "PROJECT"
)

type SagaStatus string

const (
	SagaBegin         SagaStatus = "BEGIN"
	SagaIssuesDeleted SagaStatus = "ISSUES_DELETED"
	SagaComplete      SagaStatus = "COMPLETE"
)

// SagaEvent is a step of a cross-service saga referencing one entity.
type SagaEvent struct {
	ReferenceType  SagaReferenceType `json:"referenceType"`
	ReferenceValue uuid.UUID         `json:"referenceValue"`
	Status         SagaStatus        `json:"status"`
	Success        bool              `json:"success"`
}

func (SagaEvent) EventType() EventType { return TypeSagaEvent }
func (SagaEvent) sealed()              {}

// StringPtr is a helper for the optional sides of the domain events.
func StringPtr(s string) *string {
	return &s
}
