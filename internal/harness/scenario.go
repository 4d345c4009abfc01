package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/posscan/internal/catalog"
	"github.com/roach88/posscan/internal/config"
	"github.com/roach88/posscan/internal/scanner"
)

// Scenario is one scripted session at the till.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Mode is the initial scan mode: "auto" (default) or "manual".
	Mode string `yaml:"mode,omitempty"`

	// Focus is the initial keyboard focus: "none" (default), "search" or
	// "other".
	Focus string `yaml:"focus,omitempty"`

	// Scanner overrides the timing thresholds.
	Scanner config.Scanner `yaml:"scanner,omitempty"`

	// Session tags scan log rows. Defaults to "test-session-default".
	Session string `yaml:"session,omitempty"`

	// Products is the initial catalog.
	Products []ProductSpec `yaml:"products"`

	// Steps is the script, executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and trace.
	Assertions []Assertion `yaml:"assertions"`
}

// ProductSpec is a catalog entry in scenario form.
type ProductSpec struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name,omitempty"`
	SKU      string  `yaml:"sku,omitempty"`
	Barcode  string  `yaml:"barcode,omitempty"`
	Price    float64 `yaml:"price,omitempty"`
	Stock    int     `yaml:"stock"`
	Warranty int     `yaml:"warranty,omitempty"` // months
	TaxRate  float64 `yaml:"tax_rate,omitempty"`
}

// Product converts to a catalog product.
func (p ProductSpec) Product() catalog.Product {
	return catalog.Product{
		ID:               p.ID,
		Name:             p.Name,
		SKU:              p.SKU,
		Barcode:          p.Barcode,
		SellingPrice:     p.Price,
		Stock:            p.Stock,
		TaxRate:          p.TaxRate,
		WarrantyDuration: p.Warranty,
	}
}

func toProducts(specs []ProductSpec) []catalog.Product {
	products := make([]catalog.Product, 0, len(specs))
	for _, s := range specs {
		products = append(products, s.Product())
	}
	return products
}

// Step is one scripted action. Exactly one action field is set; Gap only
// accompanies Type.
type Step struct {
	Type         string        `yaml:"type,omitempty"`
	Gap          time.Duration `yaml:"gap,omitempty"`
	Key          string        `yaml:"key,omitempty"`
	Wait         time.Duration `yaml:"wait,omitempty"`
	Modal        *bool         `yaml:"modal,omitempty"`
	Mode         string        `yaml:"mode,omitempty"`
	Focus        string        `yaml:"focus,omitempty"`
	Buffer       *string       `yaml:"buffer,omitempty"`
	Serial       *string       `yaml:"serial,omitempty"`
	SkipSerial   bool          `yaml:"skip_serial,omitempty"`
	CancelSerial bool          `yaml:"cancel_serial,omitempty"`
	Catalog      []ProductSpec `yaml:"catalog,omitempty"`
}

// Step key names.
const (
	KeyEnter     = "enter"
	KeyBackspace = "backspace"
)

// actions lists the action fields set on s.
func (s Step) actions() []string {
	var set []string
	if s.Type != "" {
		set = append(set, "type")
	}
	if s.Key != "" {
		set = append(set, "key")
	}
	if s.Wait != 0 {
		set = append(set, "wait")
	}
	if s.Modal != nil {
		set = append(set, "modal")
	}
	if s.Mode != "" {
		set = append(set, "mode")
	}
	if s.Focus != "" {
		set = append(set, "focus")
	}
	if s.Buffer != nil {
		set = append(set, "buffer")
	}
	if s.Serial != nil {
		set = append(set, "serial")
	}
	if s.SkipSerial {
		set = append(set, "skip_serial")
	}
	if s.CancelSerial {
		set = append(set, "cancel_serial")
	}
	if s.Catalog != nil {
		set = append(set, "catalog")
	}
	return set
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type selects the check:
	// - "commit_count": number of commit events equals Count
	// - "buffer": final buffer equals Value
	// - "cart_contains": a line for Product (and Serial) exists, with
	//   Quantity units if Quantity > 0
	// - "trace_order": Events occur in this order (gaps allowed)
	// - "trace_count": Event occurs exactly Count times
	// - "scan_log": Count scan log rows have Outcome
	// - "pending": whether a timer is still armed ("true"/"false" in Value)
	Type string `yaml:"type"`

	Count    int      `yaml:"count,omitempty"`
	Value    *string  `yaml:"value,omitempty"`
	Product  string   `yaml:"product,omitempty"`
	Quantity int      `yaml:"quantity,omitempty"`
	Serial   string   `yaml:"serial,omitempty"`
	Events   []string `yaml:"events,omitempty"`
	Event    string   `yaml:"event,omitempty"`
	Outcome  string   `yaml:"outcome,omitempty"`
}

// Assertion type constants.
const (
	AssertCommitCount  = "commit_count"
	AssertBuffer       = "buffer"
	AssertCartContains = "cart_contains"
	AssertTraceOrder   = "trace_order"
	AssertTraceCount   = "trace_count"
	AssertScanLog      = "scan_log"
	AssertPending      = "pending"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// DiscoverScenarios returns the .yaml/.yml files under dir, sorted. If
// filter is non-empty, only files whose base name (without extension)
// matches the glob are returned.
func DiscoverScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Mode != "" {
		if _, err := scanner.ParseMode(s.Mode); err != nil {
			return fmt.Errorf("mode: %w", err)
		}
	}
	if _, err := scanner.ParseFocus(s.Focus); err != nil {
		return fmt.Errorf("focus: %w", err)
	}
	if err := s.Scanner.ScannerConfig().Validate(); err != nil {
		return fmt.Errorf("scanner: %w", err)
	}

	seen := make(map[string]bool)
	for i, p := range s.Products {
		if p.ID == "" {
			return fmt.Errorf("products[%d]: id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("products[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, s Step) error {
	actions := s.actions()
	if len(actions) != 1 {
		return fmt.Errorf("steps[%d]: exactly one action required, got %v", index, actions)
	}
	if s.Gap != 0 && s.Type == "" {
		return fmt.Errorf("steps[%d]: gap is only valid with type", index)
	}
	if s.Gap < 0 || s.Wait < 0 {
		return fmt.Errorf("steps[%d]: durations must be non-negative", index)
	}
	if s.Key != "" && s.Key != KeyEnter && s.Key != KeyBackspace {
		return fmt.Errorf("steps[%d]: unknown key %q", index, s.Key)
	}
	if s.Mode != "" {
		if _, err := scanner.ParseMode(s.Mode); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	}
	if s.Focus != "" {
		if _, err := scanner.ParseFocus(s.Focus); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCommitCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for commit_count", index)
		}
	case AssertBuffer:
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for buffer", index)
		}
	case AssertCartContains:
		if a.Product == "" {
			return fmt.Errorf("assertions[%d]: product is required for cart_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertScanLog:
		if a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: outcome is required for scan_log", index)
		}
	case AssertPending:
		if a.Value == nil || (*a.Value != "true" && *a.Value != "false") {
			return fmt.Errorf("assertions[%d]: value must be \"true\" or \"false\" for pending", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
