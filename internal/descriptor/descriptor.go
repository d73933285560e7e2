// Package descriptor parses and validates declarative device-descriptor
// documents. A descriptor fully describes one instrument: how to talk to it,
// which logical operations it supports and which channels it exposes. Adding
// an instrument to the system means authoring one YAML document; no code
// changes anywhere else.
package descriptor

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"codeberg.org/okkola/labdaq/internal/errors"
	"gopkg.in/yaml.v3"
)

// TransportSpec selects and addresses the wire transport of a device.
type TransportSpec struct {
	Kind    string `yaml:"kind"`
	Address string `yaml:"address"`
}

// CommandSpec maps a logical operation to a wire-level exchange. Template
// placeholders {channel} and {value} are expanded by the driver; Reply is a
// regular expression whose first capture group is the numeric payload. An
// empty Reply means the whole trimmed reply line is the number.
type CommandSpec struct {
	Operation Operation `yaml:"operation"`
	Template  string    `yaml:"template"`
	Reply     string    `yaml:"reply,omitempty"`
	Unit      string    `yaml:"unit,omitempty"`
}

// Channel describes one measured quantity of a device.
type Channel struct {
	Index       int     `yaml:"index"`
	Unit        string  `yaml:"unit"`
	Min         float64 `yaml:"min"`
	Max         float64 `yaml:"max"`
	Scale       float64 `yaml:"scale,omitempty"`
	Calibration string  `yaml:"calibration,omitempty"`
}

// DeviceDescriptor is the validated, immutable in-memory form of one
// descriptor document. It is owned exclusively by the driver built from it.
type DeviceDescriptor struct {
	Name      string        `yaml:"name"`
	Model     string        `yaml:"model"`
	Transport TransportSpec `yaml:"transport"`
	Commands  []CommandSpec `yaml:"commands"`
	Channels  []Channel     `yaml:"channels"`
}

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_]+)\}`)

// knownUnits is the closed set of units the engine understands. Unknown
// units are a load-time error, never a runtime surprise.
var knownUnits = map[string]struct{}{
	"V": {}, "mV": {}, "uV": {}, "nV": {},
	"A": {}, "mA": {}, "uA": {}, "nA": {},
	"Ohm": {}, "kOhm": {}, "MOhm": {},
	"K": {}, "mK": {},
	"Hz": {}, "kHz": {},
	"W": {}, "mW": {},
	"dB": {}, "deg": {}, "%": {}, "s": {}, "ms": {},
}

// KnownUnit reports whether the engine recognizes the given unit symbol.
func KnownUnit(unit string) bool {
	_, ok := knownUnits[unit]
	return ok
}

// Parse parses and fully validates one descriptor document.
func Parse(data []byte, resolver CalibrationResolver) (*DeviceDescriptor, error) {
	errFactory := errors.New()

	d := &DeviceDescriptor{}
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, errFactory.Wrap(ErrNotYAML, err)
	}

	d.normalize()
	if err := d.validate(resolver); err != nil {
		return nil, err
	}

	return d, nil
}

// Load reads and parses a single descriptor file.
func Load(path string, resolver CalibrationResolver) (*DeviceDescriptor, error) {
	errFactory := errors.New()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errFactory.Wrap(ErrReadFailed, err)
	}

	d, err := Parse(data, resolver)
	if err != nil {
		return nil, errFactory.WithMessage(errors.ErrorCode(code(err)), fmt.Sprintf("%s: %v", filepath.Base(path), err))
	}

	return d, nil
}

// LoadDir loads every *.yaml and *.yml document in dir, sorted by file name.
// Duplicate device names across files are rejected here so a session never
// sees two descriptors claiming one device id.
func LoadDir(dir string, resolver CalibrationResolver) ([]*DeviceDescriptor, error) {
	errFactory := errors.New()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errFactory.Wrap(ErrReadFailed, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, errFactory.WithData(ErrEmptyDir, dir)
	}

	seen := make(map[string]string, len(paths))
	descriptors := make([]*DeviceDescriptor, 0, len(paths))
	for _, p := range paths {
		d, err := Load(p, resolver)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[d.Name]; dup {
			return nil, errFactory.WithData(ErrDuplicateID, fmt.Sprintf("%s defined in %s and %s", d.Name, prev, p))
		}
		seen[d.Name] = p
		descriptors = append(descriptors, d)
	}

	return descriptors, nil
}

// Marshal renders the descriptor back to YAML. Parse(Marshal(d)) yields a
// descriptor equal to d.
func (d *DeviceDescriptor) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// Command returns the CommandSpec for the given operation.
func (d *DeviceDescriptor) Command(op Operation) (CommandSpec, bool) {
	for _, c := range d.Commands {
		if c.Operation == op {
			return c, true
		}
	}
	return CommandSpec{}, false
}

// Capabilities lists the operations this descriptor defines, in declaration
// order.
func (d *DeviceDescriptor) Capabilities() []Operation {
	ops := make([]Operation, 0, len(d.Commands))
	for _, c := range d.Commands {
		ops = append(ops, c.Operation)
	}
	return ops
}

// ChannelByIndex returns the channel with the given index.
func (d *DeviceDescriptor) ChannelByIndex(index int) (Channel, bool) {
	for _, ch := range d.Channels {
		if ch.Index == index {
			return ch, true
		}
	}
	return Channel{}, false
}

func (d *DeviceDescriptor) normalize() {
	for i := range d.Channels {
		if d.Channels[i].Scale == 0 {
			d.Channels[i].Scale = 1
		}
	}
}

func (d *DeviceDescriptor) validate(resolver CalibrationResolver) error {
	errFactory := errors.New()

	switch {
	case d.Name == "":
		return errFactory.WithData(ErrMissingField, "name")
	case d.Model == "":
		return errFactory.WithData(ErrMissingField, "model")
	case d.Transport.Kind == "":
		return errFactory.WithData(ErrMissingField, "transport.kind")
	case d.Transport.Address == "":
		return errFactory.WithData(ErrMissingField, "transport.address")
	}

	if len(d.Channels) == 0 {
		return errFactory.WithData(ErrNoChannels, d.Name)
	}

	if err := d.validateCommands(); err != nil {
		return err
	}

	return d.validateChannels(resolver)
}

func (d *DeviceDescriptor) validateCommands() error {
	errFactory := errors.New()

	seenOps := make(map[Operation]struct{}, len(d.Commands))
	hasRead := false
	for _, c := range d.Commands {
		if !c.Operation.IsValid() {
			return errFactory.WithData(ErrUnknownOperation, string(c.Operation))
		}
		if _, dup := seenOps[c.Operation]; dup {
			return errFactory.WithData(ErrDuplicateOperation, string(c.Operation))
		}
		seenOps[c.Operation] = struct{}{}

		if c.Template == "" {
			return errFactory.WithData(ErrMissingField, fmt.Sprintf("commands[%s].template", c.Operation))
		}
		if err := validateTemplate(c); err != nil {
			return err
		}
		if c.Reply != "" {
			re, err := regexp.Compile(c.Reply)
			if err != nil {
				return errFactory.WithData(ErrBadReplyPattern, fmt.Sprintf("%s: %v", c.Operation, err))
			}
			if re.NumSubexp() < 1 {
				return errFactory.WithData(ErrBadReplyPattern, fmt.Sprintf("%s: pattern needs one capture group", c.Operation))
			}
		}
		if c.Unit != "" && !KnownUnit(c.Unit) {
			return errFactory.WithData(ErrUnknownUnit, c.Unit)
		}

		if c.Operation == OpRead || c.Operation == OpBulkRead {
			hasRead = true
		}
	}

	if !hasRead {
		return errFactory.WithData(ErrNoReadCommand, d.Name)
	}

	return nil
}

func validateTemplate(c CommandSpec) error {
	errFactory := errors.New()

	allowed := map[string]bool{"channel": true}
	if c.Operation == OpWrite || c.Operation == OpConfigure {
		allowed["value"] = true
	}
	if c.Operation == OpBulkRead {
		allowed["channel"] = false
	}

	for _, m := range placeholderPattern.FindAllStringSubmatch(c.Template, -1) {
		name := m[1]
		if !allowed[name] {
			return errFactory.WithData(ErrMalformedTemplate,
				fmt.Sprintf("%s: undefined placeholder {%s}", c.Operation, name))
		}
	}

	if c.Operation == OpWrite && !strings.Contains(c.Template, "{value}") {
		return errFactory.WithData(ErrMalformedTemplate, "write template must reference {value}")
	}

	return nil
}

func (d *DeviceDescriptor) validateChannels(resolver CalibrationResolver) error {
	errFactory := errors.New()

	seen := make(map[int]struct{}, len(d.Channels))
	for _, ch := range d.Channels {
		if _, dup := seen[ch.Index]; dup {
			return errFactory.WithData(ErrDuplicateChannel, ch.Index)
		}
		seen[ch.Index] = struct{}{}

		if ch.Unit == "" {
			return errFactory.WithData(ErrMissingField, fmt.Sprintf("channels[%d].unit", ch.Index))
		}
		if !KnownUnit(ch.Unit) {
			return errFactory.WithData(ErrUnknownUnit, ch.Unit)
		}
		if ch.Min >= ch.Max {
			return errFactory.WithData(ErrInvalidRange, fmt.Sprintf("channel %d: [%g,%g]", ch.Index, ch.Min, ch.Max))
		}

		if ch.Calibration == "" {
			continue
		}
		if resolver == nil {
			return errFactory.WithData(ErrUnknownCalibration, ch.Calibration)
		}
		min, max, unit, ok := resolver.Resolve(ch.Calibration)
		if !ok {
			return errFactory.WithData(ErrUnknownCalibration, ch.Calibration)
		}
		// The channel's declared raw range must be accepted by the function;
		// runtime readings outside the declared range are still delivered,
		// flagged invalid by the conversion stage.
		if ch.Min < min || ch.Max > max {
			return errFactory.WithData(ErrCalibrationDomain,
				fmt.Sprintf("channel %d range [%g,%g] outside %s domain [%g,%g]", ch.Index, ch.Min, ch.Max, ch.Calibration, min, max))
		}
		if unit != ch.Unit {
			return errFactory.WithData(ErrCalibrationUnit,
				fmt.Sprintf("channel %d declares %s but %s yields %s", ch.Index, ch.Unit, ch.Calibration, unit))
		}
	}

	return nil
}

func code(err error) string {
	var domainErr errors.Error
	if errors.As(err, &domainErr) {
		return string(domainErr.Code())
	}
	return string(errors.ErrInternal)
}
