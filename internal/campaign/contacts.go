package campaign

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/LeventeLantos/blast-desk/internal/model"
	"github.com/LeventeLantos/blast-desk/internal/phone"
	"github.com/LeventeLantos/blast-desk/internal/repo"
)

const dateLayout = "2006-01-02"

var exportHeader = []string{"phone_e164", "keyword", "received_at", "country_iso2"}

type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Invalid  int `json:"invalid"`
}

// ImportContacts reads a CSV with a header row. A phone (or phone_e164)
// column is required; keyword, raw_text and received_at are optional.
// Rows whose phone does not normalize count as invalid; phones already stored
// or repeated in the file count as skipped.
func (s *Service) ImportContacts(ctx context.Context, r io.Reader) (ImportResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ImportResult{}, invalid("CSV file is empty")
		}
		return ImportResult{}, invalid("Invalid CSV: %v", err)
	}
	cols := indexColumns(header)
	phoneCol, ok := cols["phone"]
	if !ok {
		phoneCol, ok = cols["phone_e164"]
	}
	if !ok {
		return ImportResult{}, invalid("CSV must have a phone column")
	}

	var (
		res      ImportResult
		contacts []model.Contact
		seen     = map[string]struct{}{}
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ImportResult{}, invalid("Invalid CSV: %v", err)
		}

		n, ok := phone.Normalize(field(record, phoneCol), s.opts.DefaultCountry)
		if !ok {
			res.Invalid++
			continue
		}
		if _, dup := seen[n.E164]; dup {
			res.Skipped++
			continue
		}
		seen[n.E164] = struct{}{}

		c := model.Contact{PhoneE164: n.E164}
		if n.ISO2 != "" {
			iso := n.ISO2
			c.CountryISO2 = &iso
		}
		if i, ok := cols["keyword"]; ok {
			c.Keyword = optional(strings.ToUpper(field(record, i)))
		}
		if i, ok := cols["raw_text"]; ok {
			c.RawText = optional(field(record, i))
		}
		if i, ok := cols["received_at"]; ok {
			c.ReceivedAt = parseReceivedAt(field(record, i))
		}
		contacts = append(contacts, c)
	}

	inserted, err := s.store.Contacts.Insert(ctx, contacts)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import contacts: %w", err)
	}
	res.Imported = inserted
	res.Skipped += len(contacts) - inserted

	slog.Info("contacts imported", "imported", res.Imported, "skipped", res.Skipped, "invalid", res.Invalid)
	return res, nil
}

type ContactQuery struct {
	PhoneContains string
	// From and To are inclusive calendar days in YYYY-MM-DD form.
	From string
	To   string
}

func (q ContactQuery) filter() (repo.ContactFilter, error) {
	f := repo.ContactFilter{PhoneContains: strings.TrimSpace(q.PhoneContains)}
	if q.From != "" {
		t, err := time.Parse(dateLayout, q.From)
		if err != nil {
			return repo.ContactFilter{}, invalid("Invalid from date %q", q.From)
		}
		f.From = &t
	}
	if q.To != "" {
		t, err := time.Parse(dateLayout, q.To)
		if err != nil {
			return repo.ContactFilter{}, invalid("Invalid to date %q", q.To)
		}
		end := t.AddDate(0, 0, 1)
		f.To = &end
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return repo.ContactFilter{}, invalid("From date must not be after to date")
	}
	return f, nil
}

func (s *Service) ListContacts(ctx context.Context, q ContactQuery) ([]model.Contact, error) {
	f, err := q.filter()
	if err != nil {
		return nil, err
	}
	out, err := s.store.Contacts.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return out, nil
}

// ExportContacts writes the filtered contacts to w as CSV.
func (s *Service) ExportContacts(ctx context.Context, q ContactQuery, w io.Writer) error {
	contacts, err := s.ListContacts(ctx, q)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, c := range contacts {
		if err := cw.Write([]string{
			c.PhoneE164,
			deref(c.Keyword),
			c.ReceivedAt.UTC().Format(time.RFC3339),
			deref(c.CountryISO2),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, exists := cols[h]; !exists {
			cols[h] = i
		}
	}
	return cols
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func parseReceivedAt(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
