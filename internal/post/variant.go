package post

import (
	"fmt"
	"strings"
)

// Variant names a supplementary tutorial.
type Variant string

const (
	VariantXRated     Variant = "xrated"
	VariantNightRider Variant = "nightrider"
)

type VariantInfo struct {
	Name         Variant
	Label        string
	TutorialLink string
}

// Catalog is the closed set of variants offered to users, in display order.
type Catalog struct {
	items []VariantInfo
	index map[Variant]int
}

func DefaultVariants() []VariantInfo {
	return []VariantInfo{
		{Name: VariantXRated, Label: "🔞 X-Rated Bot", TutorialLink: "https://t.me/TutorialsNG/11"},
		{Name: VariantNightRider, Label: "🌙 Night Rider Bot", TutorialLink: "https://t.me/TutorialsNG/10"},
	}
}

// NewCatalog validates items. An empty list yields the defaults.
func NewCatalog(items []VariantInfo) (*Catalog, error) {
	if len(items) == 0 {
		items = DefaultVariants()
	}
	c := &Catalog{index: make(map[Variant]int, len(items))}
	for _, it := range items {
		it.Name = Variant(strings.ToLower(strings.TrimSpace(string(it.Name))))
		if it.Name == "" {
			return nil, fmt.Errorf("post: variant name is empty")
		}
		if strings.ContainsAny(string(it.Name), ": ") {
			return nil, fmt.Errorf("post: variant %q must not contain ':' or spaces", it.Name)
		}
		if strings.TrimSpace(it.TutorialLink) == "" {
			return nil, fmt.Errorf("post: variant %q has no tutorial link", it.Name)
		}
		if _, dup := c.index[it.Name]; dup {
			return nil, fmt.Errorf("post: duplicate variant %q", it.Name)
		}
		if strings.TrimSpace(it.Label) == "" {
			it.Label = string(it.Name)
		}
		c.index[it.Name] = len(c.items)
		c.items = append(c.items, it)
	}
	return c, nil
}

func (c *Catalog) Lookup(v Variant) (VariantInfo, bool) {
	i, ok := c.index[v]
	if !ok {
		return VariantInfo{}, false
	}
	return c.items[i], true
}

func (c *Catalog) All() []VariantInfo {
	return append([]VariantInfo(nil), c.items...)
}
