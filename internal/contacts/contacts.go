// Package contacts reads and writes the contact table the pipeline
// operates on. The Valid column is tri-state: an empty cell means the
// record has not been resolved yet, so a rerun picks it up again.
package contacts

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/scomax/contact-validator/internal/validation"
)

// Notes written into the Note column for definitive negative outcomes.
const (
	NoteProfileNotFound = "Profile not found"
	NoteNoCompanyMatch  = "No company match found in any profile"
	NoteHistoricalMatch = "Historical match found"
)

// Tristate is a boolean CSV cell where an empty cell means unset. A plain
// *bool does not survive the round trip: the csv layer materializes empty
// cells into false, which would turn every pending record terminal after
// one checkpoint.
type Tristate struct {
	set   bool
	value bool
}

// TristateOf returns a set Tristate holding v.
func TristateOf(v bool) Tristate {
	return Tristate{set: true, value: v}
}

// IsSet reports whether the cell holds a value.
func (t Tristate) IsSet() bool { return t.set }

// True reports whether the cell is set and true.
func (t Tristate) True() bool { return t.set && t.value }

// Ptr returns the value as *bool, nil when unset.
func (t Tristate) Ptr() *bool {
	if !t.set {
		return nil
	}
	v := t.value
	return &v
}

// UnmarshalCSV maps an empty cell to unset.
func (t *Tristate) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*t = Tristate{}
		return nil
	}
	v, err := strconv.ParseBool(strings.ToLower(s))
	if err != nil {
		return fmt.Errorf("parsing Valid cell %q: %w", s, err)
	}
	*t = TristateOf(v)
	return nil
}

// MarshalCSV writes an unset cell as empty.
func (t Tristate) MarshalCSV() (string, error) {
	if !t.set {
		return "", nil
	}
	return strconv.FormatBool(t.value), nil
}

// Record is one row of the contact table.
type Record struct {
	FirstName  string   `csv:"First Name"`
	LastName   string   `csv:"Last Name"`
	Account    string   `csv:"Account Name"`
	Valid      Tristate `csv:"Valid"`
	Note       string   `csv:"Note"`
	ProfileURL string   `csv:"Profile URL"`
}

// FullName joins first and last name for searching.
func (r *Record) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(r.FirstName) + " " + strings.TrimSpace(r.LastName))
}

// Resolved reports whether the record already carries a terminal outcome
// and should be skipped on resume.
func (r *Record) Resolved() bool {
	return r.Valid.IsSet() || r.Note == NoteProfileNotFound
}

// Load reads the contact table from a CSV file.
func Load(path string) ([]*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening contacts file: %w", err)
	}
	defer f.Close()

	var records []*Record
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, fmt.Errorf("parsing contacts file: %w", err)
	}
	return records, nil
}

// Save writes the contact table back, overwriting the file. Called after
// every batch so progress survives interruption.
func Save(path string, records []*Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating contacts file: %w", err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&records, f); err != nil {
		return fmt.Errorf("writing contacts file: %w", err)
	}
	return nil
}

// Pending returns the records that still need resolution.
func Pending(records []*Record) []*Record {
	var out []*Record
	for _, r := range records {
		if !r.Resolved() {
			out = append(out, r)
		}
	}
	return out
}

// ApplyOutcome maps a resolution outcome onto a copy of the record. Only
// definitive outcomes set Valid; the caller records errors separately so
// those rows stay unresolved.
func ApplyOutcome(r Record, out validation.Outcome) Record {
	switch {
	case out.Report == nil && out.Candidates == 0:
		r.Valid = TristateOf(false)
		r.Note = NoteProfileNotFound
		r.ProfileURL = ""
	case out.Report == nil:
		r.Valid = TristateOf(false)
		r.Note = NoteNoCompanyMatch
		r.ProfileURL = ""
	case out.Report.HasCurrentMatch:
		r.Valid = TristateOf(true)
		r.Note = fmt.Sprintf("Current: %s at %s", out.Report.Best.Position.JobTitle, out.Report.Best.Position.Company)
		r.ProfileURL = out.ProfileURL
	default:
		r.Valid = TristateOf(false)
		r.Note = NoteHistoricalMatch
		r.ProfileURL = out.ProfileURL
	}
	return r
}

// ApplyError records a resolution failure without marking the record
// terminal, so the next run retries it.
func ApplyError(r Record, err error) Record {
	r.Valid = Tristate{}
	r.Note = "Error: " + err.Error()
	return r
}
