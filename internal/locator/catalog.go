package locator

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Catalog maps logical element names to descriptors.
type Catalog map[string]Descriptor

// Get returns the named descriptor.
func (c Catalog) Get(name string) (Descriptor, error) {
	d, ok := c[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: no locator named %q", ErrInvalidDescriptor, name)
	}
	return d, nil
}

// Names returns the catalog keys in sorted order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate resolves every entry and reports the first failure.
func (c Catalog) Validate() error {
	for _, name := range c.Names() {
		if _, err := Resolve(c[name]); err != nil {
			return fmt.Errorf("locator %q: %w", name, err)
		}
	}
	return nil
}

// Merge returns a new catalog with other's entries overriding c's.
func (c Catalog) Merge(other Catalog) Catalog {
	out := make(Catalog, len(c)+len(other))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// LoginLocators is the built-in catalog for the login and import-invoice flows.
var LoginLocators = Catalog{
	"username":         Raw("#nfr_login_authname"),
	"password":         Raw("#nfr_login_authid"),
	"loginButton":      Raw("#nfr_login_btnlogin"),
	"processing":       Raw("//div[text()='Processing']"),
	"menuSearch":       Raw("#nfr_topbar_autocomp_input"),
	"importInvoiceNav": Raw("//li[@data-item-label='Import Invoice']"),
}

// LoadCatalog reads a YAML file mapping names to descriptors. Values are
// either selector strings or {type, value, role, exact} mappings.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if c == nil {
		c = Catalog{}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
