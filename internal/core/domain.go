package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Inflow  Category = "inflow"
	Outflow Category = "outflow"

	// CategoryAll is a filter value only; no transaction carries it.
	CategoryAll Category = "all"
)

const (
	// dateLayout has a two-digit year read back as 20YY, so only dates in
	// 2000-2099 survive a format/parse round trip.
	dateLayout   = "01/02/06"
	clockLayout  = "15:04:05"
	maxNoteRunes = 200
)

type (
	Category string

	// CalendarDate is the day a transaction is attributed to. It is a plain
	// comparable value so it can key maps; ordering goes through Compare.
	CalendarDate struct {
		Year  int
		Month time.Month
		Day   int
	}

	// Stamp keeps the display date, the display time and the sortable instant
	// of a single moment together.
	Stamp struct {
		Date    CalendarDate `json:"date"`
		Time    string       `json:"time"`
		Instant time.Time    `json:"iso"`
	}

	Identity struct {
		Key         string `json:"email"`
		DisplayName string `json:"name"`
	}

	Transaction struct {
		ID        string       `json:"id"`
		Category  Category     `json:"type"`
		Amount    Money        `json:"amount"`
		Note      string       `json:"note"`
		Date      CalendarDate `json:"date"`
		Time      string       `json:"time"`
		CreatedBy string       `json:"createdBy"`
		CreatedAt Stamp        `json:"createdAt"`
		EditedBy  string       `json:"editedBy,omitempty"`
		EditedAt  *Stamp       `json:"editedAt,omitempty"`
	}

	// Draft carries the user-editable part of a transaction.
	Draft struct {
		Category Category `json:"type"`
		Amount   Money    `json:"amount"`
		Note     string   `json:"note"`
	}
)

var (
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyNote        = errors.New("empty note")
	ErrNoteTooLong      = fmt.Errorf("note too long (max %d characters)", maxNoteRunes)
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidDateRange = errors.New("end date before start date")
	ErrMissingID        = errors.New("missing transaction id")
	ErrMissingAuthor    = errors.New("missing author")
)

// NewID returns a fresh opaque transaction identifier.
func NewID() string {
	return "tx_" + uuid.NewString()
}

// ParseCategory accepts inflow, outflow or all, case-insensitively.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case Inflow, Outflow, CategoryAll:
		return c, nil
	case "":
		return CategoryAll, nil
	default:
		return "", ErrInvalidCategory
	}
}

func (c Category) Validate() error {
	if c != Inflow && c != Outflow {
		return ErrInvalidCategory
	}
	return nil
}

// DateOf returns the calendar date of t as seen in loc.
func DateOf(t time.Time, loc *time.Location) CalendarDate {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

// NewCalendarDate normalizes out-of-range values the way time.Date does.
func NewCalendarDate(year int, month time.Month, day int) CalendarDate {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC), time.UTC)
}

// ParseCalendarDate parses the MM/DD/YY form. Two-digit years are 20YY.
func ParseCalendarDate(s string) (CalendarDate, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return CalendarDate{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return CalendarDate{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		nums[i] = n
	}
	d := CalendarDate{Year: 2000 + nums[2], Month: time.Month(nums[0]), Day: nums[1]}
	if d.Month < 1 || d.Month > 12 || d.Day < 1 || d != NewCalendarDate(d.Year, d.Month, d.Day) {
		return CalendarDate{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

func (d CalendarDate) IsZero() bool {
	return d == CalendarDate{}
}

func (d CalendarDate) String() string {
	if d.IsZero() {
		return ""
	}
	return d.StartOfDay(time.UTC).Format(dateLayout)
}

// Compare orders by calendar value: -1, 0 or +1.
func (d CalendarDate) Compare(o CalendarDate) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d CalendarDate) Before(o CalendarDate) bool {
	return d.Compare(o) < 0
}

// StartOfDay is midnight of d in loc.
func (d CalendarDate) StartOfDay(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d CalendarDate) AddDays(n int) CalendarDate {
	return NewCalendarDate(d.Year, d.Month, d.Day+n)
}

func (d CalendarDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *CalendarDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = CalendarDate{}
		return nil
	}
	parsed, err := ParseCalendarDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// NewStamp derives all three representations from one instant.
func NewStamp(t time.Time, loc *time.Location) Stamp {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	return Stamp{
		Date:    DateOf(local, loc),
		Time:    local.Format(clockLayout),
		Instant: t.UTC(),
	}
}

func (s Stamp) String() string {
	return s.Date.String() + " " + s.Time
}

func (id Identity) IsZero() bool {
	return strings.TrimSpace(id.Key) == ""
}

// Label is the attribution string written into createdBy/editedBy.
func (id Identity) Label() string {
	if name := strings.TrimSpace(id.DisplayName); name != "" {
		return name
	}
	return id.Key
}

func (d Draft) Validate() error {
	if err := d.Category.Validate(); err != nil {
		return &ValidationError{Field: "type", Err: err}
	}
	if err := d.Amount.Validate(); err != nil {
		return &ValidationError{Field: "amount", Err: err}
	}
	note := strings.TrimSpace(d.Note)
	if note == "" {
		return &ValidationError{Field: "note", Err: ErrEmptyNote}
	}
	if len([]rune(note)) > maxNoteRunes {
		return &ValidationError{Field: "note", Err: ErrNoteTooLong}
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return &ValidationError{Field: "id", Err: ErrMissingID}
	}
	if err := (Draft{Category: t.Category, Amount: t.Amount, Note: t.Note}).Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() || t.CreatedAt.Instant.IsZero() {
		return &ValidationError{Field: "createdAt", Err: ErrInvalidDate}
	}
	if strings.TrimSpace(t.CreatedBy) == "" {
		return &ValidationError{Field: "createdBy", Err: ErrMissingAuthor}
	}
	return nil
}

// NewTransaction stamps a validated draft. The calendar date is taken from
// the creation stamp and never recomputed afterwards.
func NewTransaction(d Draft, author Identity, created Stamp) (Transaction, error) {
	if err := d.Validate(); err != nil {
		return Transaction{}, err
	}
	return Transaction{
		ID:        NewID(),
		Category:  d.Category,
		Amount:    d.Amount,
		Note:      strings.TrimSpace(d.Note),
		Date:      created.Date,
		Time:      created.Time,
		CreatedBy: author.Label(),
		CreatedAt: created,
	}, nil
}

// Apply replaces the editable fields and overwrites the last-editor slot.
func (t Transaction) Apply(d Draft, editor Identity, edited Stamp) (Transaction, error) {
	if err := d.Validate(); err != nil {
		return t, err
	}
	t.Category = d.Category
	t.Amount = d.Amount
	t.Note = strings.TrimSpace(d.Note)
	t.EditedBy = editor.Label()
	t.EditedAt = &edited
	return t, nil
}

// EditorLabel renders "name (MM/DD/YY HH:MM:SS)" or "" when never edited.
func (t Transaction) EditorLabel() string {
	if t.EditedBy == "" || t.EditedAt == nil {
		return ""
	}
	return t.EditedBy + " (" + t.EditedAt.String() + ")"
}
