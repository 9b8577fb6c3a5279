package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models procline.yml: the procurement-method step templates that
// drive project creation plus the department seed list.
type Config struct {
	Server struct {
		BasePath       string `yaml:"base_path"`
		JWTSecret      string `yaml:"jwt_secret"`
		AllowDevHeader bool   `yaml:"allow_dev_header"`
	} `yaml:"server"`
	Departments []DepartmentSeed          `yaml:"departments"`
	Methods     map[string]MethodTemplate `yaml:"methods"`
}

type DepartmentSeed struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// MethodTemplate defines the fixed, linear step sequence a procurement
// method produces at project creation.
type MethodTemplate struct {
	Description string         `yaml:"description"`
	Steps       []StepTemplate `yaml:"steps"`
}

type StepTemplate struct {
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	SLADays       int    `yaml:"sla_days"`
	Critical      bool   `yaml:"critical"`
	AllowWeekends bool   `yaml:"allow_weekends"`
}

// Load reads and validates config from the workspace, falling back to the
// embedded defaults when no file exists.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "procline.yml")
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.Methods) == 0 {
		return fmt.Errorf("config.methods is required")
	}
	for name, m := range c.Methods {
		if name == "" {
			return fmt.Errorf("config.methods contains empty method name")
		}
		if len(m.Steps) == 0 {
			return fmt.Errorf("method %s has no steps", name)
		}
		for i, s := range m.Steps {
			if s.Name == "" {
				return fmt.Errorf("method %s step %d has empty name", name, i+1)
			}
			if s.SLADays <= 0 {
				return fmt.Errorf("method %s step %q: sla_days must be positive", name, s.Name)
			}
		}
	}
	seen := map[string]bool{}
	for _, d := range c.Departments {
		if d.Code == "" {
			return fmt.Errorf("config.departments contains empty code")
		}
		if seen[d.Code] {
			return fmt.Errorf("duplicate department code %s", d.Code)
		}
		seen[d.Code] = true
	}
	return nil
}

// Method returns the template for a procurement method, or false.
func (c *Config) Method(name string) (MethodTemplate, bool) {
	m, ok := c.Methods[name]
	return m, ok
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the built-in config.
func Default() *Config {
	cfg, err := FromYAML([]byte(defaultTemplate))
	if err != nil {
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

// GenerateDefault returns the default config YAML for writing to disk.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `server:
  base_path: /v1
  allow_dev_header: false

departments:
  - code: PROC
    name: Procurement
  - code: FIN
    name: Finance
  - code: IT
    name: Information Technology
  - code: OPS
    name: Operations

methods:
  open_tender:
    description: "Public open tender"
    steps:
      - name: "Requirement definition"
        description: "Specify scope, quantities and acceptance criteria"
        sla_days: 5
        critical: true
      - name: "Budget approval"
        description: "Finance sign-off on the allocated budget"
        sla_days: 3
        critical: true
      - name: "Tender publication"
        description: "Publish the call for bids"
        sla_days: 2
      - name: "Bid submission window"
        description: "Receive supplier bids"
        sla_days: 14
        allow_weekends: true
      - name: "Bid evaluation"
        description: "Score and rank received bids"
        sla_days: 7
        critical: true
      - name: "Award and contract"
        description: "Notify winner and sign contract"
        sla_days: 5
      - name: "Delivery and acceptance"
        description: "Receive goods or services and accept"
        sla_days: 10
        allow_weekends: true

  restricted_tender:
    description: "Tender restricted to pre-qualified suppliers"
    steps:
      - name: "Requirement definition"
        sla_days: 5
        critical: true
      - name: "Supplier shortlisting"
        sla_days: 3
      - name: "Invitation to bid"
        sla_days: 7
        allow_weekends: true
      - name: "Bid evaluation"
        sla_days: 5
        critical: true
      - name: "Award and contract"
        sla_days: 5

  direct_purchase:
    description: "Low-value direct purchase"
    steps:
      - name: "Quotation request"
        sla_days: 2
      - name: "Purchase order"
        sla_days: 1
        critical: true
      - name: "Delivery and acceptance"
        sla_days: 5
        allow_weekends: true

  framework_agreement:
    description: "Call-off under an existing framework"
    steps:
      - name: "Call-off specification"
        sla_days: 2
      - name: "Mini-competition"
        sla_days: 5
      - name: "Order placement"
        sla_days: 1
        critical: true
      - name: "Delivery and acceptance"
        sla_days: 7
        allow_weekends: true
`
