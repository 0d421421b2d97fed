package model

import "time"

// Contact is an inbound number that joined through the landing page keyword
// or a CSV import.
type Contact struct {
	ID          int64     `json:"id"`
	PhoneE164   string    `json:"phone_e164"`
	Keyword     *string   `json:"keyword"`
	RawText     *string   `json:"raw_text"`
	CountryISO2 *string   `json:"country_iso2"`
	ReceivedAt  time.Time `json:"received_at"`
}
