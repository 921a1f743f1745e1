package area

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Config is the area table as loaded from YAML:
//
//	areas:
//	  - id: 0x10
//	    type: scratchpad
//	    address: 0x0
//	    size: 0x80000
//	    external: true
type Config struct {
	Areas []Area `yaml:"areas"`
}

// LoadConfig decodes a Config from r.
func LoadConfig(r io.Reader) (*Config, error) {
	var conf Config
	if err := yaml.NewDecoder(r).Decode(&conf); err != nil {
		return nil, fmt.Errorf("decode area config: %v", err)
	}
	return &conf, nil
}

// MarshalYAML implements yaml.Marshaler.
func (t Type) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Type) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	parsed, err := ParseType(name)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Area ids of the default layout.
const (
	BootloaderID  ID = 0x00000001
	StackID       ID = 0x00000002
	ApplicationID ID = 0x00000003
	PersistentID  ID = 0x00000004
	UserID        ID = 0x00000005
	ScratchpadID  ID = 0x00000010
)

// Default medium sizes matching DefaultAreas.
const (
	DefaultInternalSize = 512 * 1024
	DefaultExternalSize = 1024 * 1024
)

// DefaultAreas is the layout of the simulated node: code and data on the
// internal medium, the scratchpad filling the external one.
func DefaultAreas() []Area {
	return []Area{
		{ID: BootloaderID, Type: TypeBootloader, Address: 0x00000, Size: 0x08000},
		{ID: StackID, Type: TypeStack, Address: 0x08000, Size: 0x38000, HasHeader: true},
		{ID: ApplicationID, Type: TypeApplication, Address: 0x40000, Size: 0x30000, HasHeader: true},
		{ID: PersistentID, Type: TypePersistent, Address: 0x70000, Size: 0x08000},
		{ID: UserID, Type: TypeUser, Address: 0x78000, Size: 0x08000},
		{ID: ScratchpadID, Type: TypeScratchpad, Address: 0, Size: DefaultExternalSize, External: true},
	}
}
