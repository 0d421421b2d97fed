package model

import "time"

type RecipientState string

const (
	Pending RecipientState = "pending"
	Sent    RecipientState = "sent"
	Deleted RecipientState = "deleted"
)

type Recipient struct {
	ID            int64          `json:"id"`
	BlastID       int64          `json:"blast_id"`
	PhoneE164     string         `json:"phone_e164"`
	State         RecipientState `json:"state"`
	AssignedTo    *int64         `json:"assigned_to"`
	AssistantName *string        `json:"assistant_name,omitempty"`
	FailedReason  *string        `json:"failed_reason,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
