package product

// Patch field names. The set is closed: a Patch can only be built through
// the typed With* methods, so storage adapters can map names to columns
// without reflection or free-form input.
const (
	FieldProcessedImageURL   = "processedImageUrl"
	FieldUnprocessedImageURL = "unprocessedImageUrl"
	FieldFileName            = "fileName"
	FieldQuantity            = "quantity"
)

// PatchField is a single (name, value) pair in a partial update.
type PatchField struct {
	Name  string
	Value any
}

// Patch is an ordered list of field updates for a product record. The zero
// value is an empty patch.
type Patch struct {
	fields []PatchField
}

// NewPatch returns an empty patch.
func NewPatch() Patch { return Patch{} }

// WithProcessedImageURL sets the processed image address.
func (p Patch) WithProcessedImageURL(url string) Patch {
	return p.with(FieldProcessedImageURL, url)
}

// WithUnprocessedImageURL sets the raw upload address.
func (p Patch) WithUnprocessedImageURL(url string) Patch {
	return p.with(FieldUnprocessedImageURL, url)
}

// WithFileName sets the stored blob name.
func (p Patch) WithFileName(name string) Patch {
	return p.with(FieldFileName, name)
}

// WithQuantity sets the stock quantity.
func (p Patch) WithQuantity(n int) Patch {
	return p.with(FieldQuantity, n)
}

func (p Patch) with(name string, value any) Patch {
	fields := make([]PatchField, len(p.fields), len(p.fields)+1)
	copy(fields, p.fields)
	return Patch{fields: append(fields, PatchField{Name: name, Value: value})}
}

// Fields returns the updates in the order they were added.
func (p Patch) Fields() []PatchField { return p.fields }

// IsEmpty reports whether the patch contains no updates.
func (p Patch) IsEmpty() bool { return len(p.fields) == 0 }
