package vehicle

// Field names a recognized vehicle attribute
type Field string

const (
	FieldHref        Field = "href"
	FieldTitle       Field = "title"
	FieldSubtitle    Field = "subtitle"
	FieldPrice       Field = "price"
	FieldLocation    Field = "location"
	FieldMileage     Field = "mileage"
	FieldDescription Field = "description"
	FieldImages      Field = "images"
)

// Fields lists every recognized field in serialization order
var Fields = []Field{
	FieldHref,
	FieldTitle,
	FieldSubtitle,
	FieldPrice,
	FieldLocation,
	FieldMileage,
	FieldDescription,
	FieldImages,
}

// textFields are the single-valued fields, in serialization order
var textFields = Fields[:len(Fields)-1]

// ParseField resolves a key to a recognized field
func ParseField(key string) (Field, bool) {
	for _, f := range Fields {
		if string(f) == key {
			return f, true
		}
	}
	return "", false
}

// Columns returns the tabular column set: id, uuid, then every field
func Columns() []string {
	cols := make([]string, 0, len(Fields)+2)
	cols = append(cols, "id", "uuid")
	for _, f := range Fields {
		cols = append(cols, string(f))
	}
	return cols
}
