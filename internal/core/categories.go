package core

// Category is an entry of the fixed taxonomy.
type Category struct {
	ID    string
	Label string
}

// Transfer legs always use these categories.
const (
	TransferOutCategory = "altro"
	TransferInCategory  = "altro_in"
)

var categories = map[Kind][]Category{
	Expense: {
		{ID: "cibo", Label: "Cibo"},
		{ID: "casa", Label: "Casa"},
		{ID: "trasporti", Label: "Auto"},
		{ID: "svago", Label: "Svago"},
		{ID: "salute", Label: "Salute"},
		{ID: "shopping", Label: "Shopping"},
		{ID: "altro", Label: "Altro"},
	},
	Income: {
		{ID: "stipendio", Label: "Stipendio"},
		{ID: "regalo", Label: "Regalo"},
		{ID: "altro_in", Label: "Altro"},
	},
}

// Categories returns the categories available for a transaction type.
func Categories(k Kind) []Category {
	return append([]Category(nil), categories[k]...)
}

// IsCategory reports whether id belongs to the taxonomy of k.
func IsCategory(k Kind, id string) bool {
	for _, c := range categories[k] {
		if c.ID == id {
			return true
		}
	}
	return false
}

// CategoryLabel returns the display label of id, or id itself when unknown.
func CategoryLabel(k Kind, id string) string {
	for _, c := range categories[k] {
		if c.ID == id {
			return c.Label
		}
	}
	return id
}
