// Package catalog holds the static product table. Each entry ties a sellable
// product to the entitlement checked against the inventory API, the file
// shipped on delivery, and the role granted to the buyer. The table is fixed
// at startup and never persisted.
package catalog

// Product is one immutable catalog entry.
type Product struct {
	// ID is the product identifier carried in payment payloads.
	ID string
	// EntitlementID is the game-pass id checked via the inventory API.
	EntitlementID string
	// FilePath points at the deliverable on local disk. Delivery degrades to
	// a "not configured" notice when the file is absent.
	FilePath string
	// RoleID is the chat-platform role granted after delivery.
	RoleID string
	// Name and Description are shown to the buyer.
	Name        string
	Description string
}

// Catalog is an ordered, immutable set of products.
type Catalog struct {
	products []Product
	byID     map[string]Product
}

// New builds a catalog from the given products. Later duplicates of the same
// product id are ignored.
func New(products ...Product) *Catalog {
	c := &Catalog{byID: make(map[string]Product, len(products))}
	for _, p := range products {
		if _, ok := c.byID[p.ID]; ok {
			continue
		}
		c.byID[p.ID] = p
		c.products = append(c.products, p)
	}
	return c
}

// Default returns the built-in product table.
func Default() *Catalog {
	return New(
		Product{
			ID:            "starter-kit",
			EntitlementID: "824516723",
			FilePath:      "assets/starter-kit.rbxm",
			RoleID:        "1048122931525189632",
			Name:          "Starter Kit",
			Description:   "Base toolkit with the standard component set.",
		},
		Product{
			ID:            "builder-bundle",
			EntitlementID: "824517109",
			FilePath:      "assets/builder-bundle.rbxm",
			RoleID:        "1048122931525189632",
			Name:          "Builder Bundle",
			Description:   "Extended bundle with premium build assets.",
		},
		Product{
			ID:            "pro-suite",
			EntitlementID: "824518344",
			FilePath:      "assets/pro-suite.rbxm",
			RoleID:        "1061882227531192350",
			Name:          "Pro Suite",
			Description:   "Full suite including source modules and updates.",
		},
	)
}

// Lookup returns the product with the given id.
func (c *Catalog) Lookup(id string) (Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// All returns the products in declaration order. The returned slice must not
// be mutated.
func (c *Catalog) All() []Product {
	return c.products
}

// Len returns the number of products.
func (c *Catalog) Len() int { return len(c.products) }
