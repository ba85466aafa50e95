package vehicle

import (
	"fmt"
	"sort"

	"github.com/miruna26/aicore-data-collection/pkg/errors"
)

// Updates maps field names to new values. Text fields take a string, *string
// or nil; images takes a list of URLs.
type Updates map[string]any

// Data is the field set of a vehicle in serialization order
type Data struct {
	Href        *string  `json:"href"`
	Title       *string  `json:"title"`
	Subtitle    *string  `json:"subtitle"`
	Price       *string  `json:"price"`
	Location    *string  `json:"location"`
	Mileage     *string  `json:"mileage"`
	Description *string  `json:"description"`
	Images      []string `json:"images"`
}

// Snapshot is the persisted shape of a vehicle: {id, uuid, data}
type Snapshot struct {
	ID   string `json:"id"`
	UUID string `json:"uuid"`
	Data Data   `json:"data"`
}

// Flat is the tabular shape of a vehicle with the fields hoisted next to id and uuid
type Flat struct {
	ID   string `json:"id"`
	UUID string `json:"uuid"`
	Data
}

// Vehicle accumulates the data scraped for one listing. It is not safe for
// concurrent use; the task that discovered a listing owns its Vehicle.
type Vehicle struct {
	id       string
	uuid     string
	text     map[Field]*string
	images   []string
	observer Observer
}

// Option configures a Vehicle at construction
type Option func(*options)

type options struct {
	uuid     string
	idGen    IDGenerator
	observer Observer
}

// WithUUID reuses a surrogate id, e.g. when reloading a persisted record
func WithUUID(uuid string) Option {
	return func(o *options) {
		o.uuid = uuid
	}
}

// WithIDGenerator replaces the surrogate id generator
func WithIDGenerator(gen IDGenerator) Option {
	return func(o *options) {
		o.idGen = gen
	}
}

// WithObserver receives overwrite events instead of the default log observer
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// New creates an empty vehicle for the given source id
func New(sourceID string, opts ...Option) *Vehicle {
	o := options{idGen: DefaultIDGenerator}
	for _, opt := range opts {
		opt(&o)
	}

	uuid := o.uuid
	if uuid == "" {
		uuid = o.idGen()
	}
	observer := o.observer
	if observer == nil {
		observer = LogObserver{}
	}

	return &Vehicle{
		id:       sourceID,
		uuid:     uuid,
		text:     make(map[Field]*string, len(textFields)),
		images:   []string{},
		observer: observer,
	}
}

// ID returns the source site's identifier
func (v *Vehicle) ID() string {
	return v.id
}

// UUID returns the surrogate identifier
func (v *Vehicle) UUID() string {
	return v.uuid
}

// URL returns the canonical listing URL, or "" when it is not known yet
func (v *Vehicle) URL() string {
	if href := v.text[FieldHref]; href != nil {
		return *href
	}
	return ""
}

// Images returns a copy of the image URLs in first-seen order
func (v *Vehicle) Images() []string {
	return append([]string{}, v.images...)
}

// Get returns the value of a text field; ok is false when the field is null
// or is not a text field.
func (v *Vehicle) Get(f Field) (string, bool) {
	if val := v.text[f]; val != nil {
		return *val, true
	}
	return "", false
}

// Update merges field values into the vehicle.
//
// Recognized keys are applied one by one in field order. A malformed value
// fails with an invalid_argument error and leaves the fields before it applied.
// Unknown keys come last: once every recognized key is applied, the first
// unknown key in sorted order fails with an unknown_field error. Image URLs
// already present are skipped. A text field that already holds a value is
// overwritten and the observer is notified.
func (v *Vehicle) Update(updates Updates) error {
	for _, f := range Fields {
		raw, ok := updates[string(f)]
		if !ok {
			continue
		}
		val, err := v.normalize(f, raw)
		if err != nil {
			return err
		}
		if f == FieldImages {
			v.appendImages(val.([]string))
			continue
		}
		v.set(f, val.(*string))
	}

	var unknown []string
	for key := range updates {
		if _, ok := ParseField(key); !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errors.NewUnknownField(v.id, unknown[0])
	}
	return nil
}

func (v *Vehicle) normalize(f Field, value any) (any, error) {
	if f == FieldImages {
		switch val := value.(type) {
		case []string:
			return val, nil
		case []any:
			urls := make([]string, 0, len(val))
			for i, item := range val {
				s, ok := item.(string)
				if !ok {
					return nil, errors.NewInvalidArgument(v.id,
						fmt.Sprintf("images[%d] must be a string, got %T", i, item))
				}
				urls = append(urls, s)
			}
			return urls, nil
		default:
			return nil, errors.NewInvalidArgument(v.id,
				fmt.Sprintf("images must be a list of strings, got %T", value))
		}
	}

	switch val := value.(type) {
	case nil:
		return (*string)(nil), nil
	case string:
		return &val, nil
	case *string:
		if val == nil {
			return (*string)(nil), nil
		}
		s := *val
		return &s, nil
	default:
		return nil, errors.NewInvalidArgument(v.id,
			fmt.Sprintf("%s must be a string, got %T", f, value))
	}
}

func (v *Vehicle) appendImages(urls []string) {
	for _, u := range urls {
		if !v.hasImage(u) {
			v.images = append(v.images, u)
		}
	}
}

func (v *Vehicle) hasImage(url string) bool {
	for _, existing := range v.images {
		if existing == url {
			return true
		}
	}
	return false
}

func (v *Vehicle) set(f Field, value *string) {
	if old := v.text[f]; old != nil {
		v.observer.OnOverwrite(Overwrite{
			VehicleID: v.id,
			Field:     f,
			Old:       *old,
			New:       value,
		})
	}
	v.text[f] = value
}

// Complete reports whether every text field holds a non-empty value and at
// least one image is known.
func (v *Vehicle) Complete() bool {
	for _, f := range textFields {
		if val := v.text[f]; val == nil || *val == "" {
			return false
		}
	}
	return len(v.images) > 0
}

// Data returns a copy of the current field set
func (v *Vehicle) Data() Data {
	return Data{
		Href:        v.copyText(FieldHref),
		Title:       v.copyText(FieldTitle),
		Subtitle:    v.copyText(FieldSubtitle),
		Price:       v.copyText(FieldPrice),
		Location:    v.copyText(FieldLocation),
		Mileage:     v.copyText(FieldMileage),
		Description: v.copyText(FieldDescription),
		Images:      v.Images(),
	}
}

func (v *Vehicle) copyText(f Field) *string {
	val := v.text[f]
	if val == nil {
		return nil
	}
	s := *val
	return &s
}

// Snapshot returns the nested {id, uuid, data} view
func (v *Vehicle) Snapshot() Snapshot {
	return Snapshot{ID: v.id, UUID: v.uuid, Data: v.Data()}
}

// Flatten returns the view with fields hoisted to the top level
func (v *Vehicle) Flatten() Flat {
	return Flat{ID: v.id, UUID: v.uuid, Data: v.Data()}
}
