package rfid

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gen2sim/gen2sim/sim/channel"
	"github.com/gen2sim/gen2sim/sim/gen2"
)

// Vec3 is a YAML-friendly 3-D vector.
type Vec3 [3]float64

// Params is the parameter bundle of one RFID simulation. The top-level
// fields are the ones users vary; the nested groups are model internals.
type Params struct {
	ModelName string `yaml:"model_name"`

	Tari           float64          `yaml:"tari"` // data-0 duration, µs
	Encoding       gen2.TagEncoding `yaml:"encoding"`
	TIDWordSize    int              `yaml:"tid_word_size"`
	PowerDBm       float64          `yaml:"power_dbm"`
	NumTags        int              `yaml:"num_tags"`
	SpeedKmph      float64          `yaml:"speed_kmph"`
	ReaderOffset   float64          `yaml:"reader_offset"` // reader distance from the wall, m
	TagOffset      float64          `yaml:"tag_offset"`    // tag distance from the wall, m
	Altitude       float64          `yaml:"altitude"`      // reader antenna height, m
	UseAdjust      bool             `yaml:"use_adjust"`
	Q              int              `yaml:"q"`
	AdjustStrategy QStrategy        `yaml:"adjust_strategy"`
	Delta          float64          `yaml:"delta"`

	Reader    ReaderParams    `yaml:"reader"`
	Geometry  GeometryParams  `yaml:"geometry"`
	Energy    EnergyParams    `yaml:"energy"`
	Channel   ChannelParams   `yaml:"channel"`
	Power     PowerParams     `yaml:"power"`
	Inventory InventoryParams `yaml:"inventory"`
	Tag       TagParams       `yaml:"tag"`
}

// ReaderParams configures link timing and antennas.
type ReaderParams struct {
	Delim                       float64         `yaml:"delim"` // µs
	Temp                        string          `yaml:"temp"`
	RTcalTariMul                float64         `yaml:"rtcal_tari_mul"`
	TRcalRTcalMul               float64         `yaml:"trcal_rtcal_mul"`
	Antennas                    []AntennaParams `yaml:"antennas,omitempty"`
	AntennaSwitchInterval       float64         `yaml:"antenna_switch_interval"`
	AlwaysStartWithFirstAntenna bool            `yaml:"always_start_with_first_antenna"`
}

// AntennaParams places an extra reader antenna. When the list is empty a
// single antenna is placed at (reader_offset, 0, altitude).
type AntennaParams struct {
	Position  Vec3 `yaml:"position"`
	Direction Vec3 `yaml:"direction"`
}

// GeometryParams describes tag motion and antenna orientation.
type GeometryParams struct {
	InitialDistanceToReader float64 `yaml:"initial_distance_to_reader"`
	MovementDirection       Vec3    `yaml:"movement_direction"`
	TravelDistance          float64 `yaml:"travel_distance"`
	ReaderAntennaDirection  Vec3    `yaml:"reader_antenna_direction"`
	TagAntennaDirection     Vec3    `yaml:"tag_antenna_direction"`
	UpdateInterval          float64 `yaml:"update_interval"`
	Lifetime                float64 `yaml:"lifetime"` // overrides travel_distance / speed when positive, s

	ReaderAntennaPattern channel.AntennaPattern `yaml:"reader_antenna_pattern"`
	TagAntennaPattern    channel.AntennaPattern `yaml:"tag_antenna_pattern"`
}

// EnergyParams holds gains, losses and sensitivities in dB / dBm.
type EnergyParams struct {
	ReaderAntennaGain      float64 `yaml:"reader_antenna_gain"`
	ReaderCableLoss        float64 `yaml:"reader_cable_loss"`
	ReaderNoise            float64 `yaml:"reader_noise"`
	TagAntennaGain         float64 `yaml:"tag_antenna_gain"`
	TagModulationLoss      float64 `yaml:"tag_modulation_loss"`
	TagSensitivity         float64 `yaml:"tag_sensitivity"`
	PolarizationLoss       float64 `yaml:"polarization_loss"`
	CollectPowerStatistics bool    `yaml:"collect_power_statistics"`
}

// ChannelParams configures the Medium.
type ChannelParams struct {
	FrequencyHz          float64                 `yaml:"frequency_hz"`
	Permittivity         float64                 `yaml:"permittivity"`
	Conductivity         float64                 `yaml:"conductivity"`
	BERDistribution      channel.BERModel        `yaml:"ber_distribution"`
	GroundReflectionType channel.ReflectionModel `yaml:"ground_reflection_type"`
	UseDoppler           bool                    `yaml:"use_doppler"`
	Bandwidth            float64                 `yaml:"bandwidth"`
	ReaderPolarization   float64                 `yaml:"reader_polarization"`
	TagPolarization      float64                 `yaml:"tag_polarization"`
}

// PowerParams configures reader power cycling.
type PowerParams struct {
	Mode        PowerMode `yaml:"mode"`
	OnDuration  float64   `yaml:"on_duration"`
	OffDuration float64   `yaml:"off_duration"`
}

// InventoryParams configures the inventory scenario.
type InventoryParams struct {
	ReadTIDBank     bool               `yaml:"read_tid_bank"`
	Sel             gen2.SelFlag       `yaml:"sel"`
	Session         gen2.Session       `yaml:"session"`
	Target          gen2.InventoryFlag `yaml:"target"`
	TargetStrategy  TargetStrategy     `yaml:"target_strategy"`
	RoundsPerTarget int                `yaml:"rounds_per_target"`
}

// TagParams configures generated tags.
type TagParams struct {
	DR                 gen2.DivideRatio   `yaml:"dr"`
	EPCPrefix          string             `yaml:"epc_prefix"`
	TIDPrefix          string             `yaml:"tid_prefix"`
	TRext              bool               `yaml:"trext"`
	EPCBitLen          int                `yaml:"epc_bitlen"`
	S1Persistence      float64            `yaml:"s1_persistence"`
	S2Persistence      float64            `yaml:"s2_persistence"`
	S3Persistence      float64            `yaml:"s3_persistence"`
	Altitude           float64            `yaml:"altitude"`
	GenerationInterval GenerationInterval `yaml:"generation_interval"`
}

// GenerationInterval is the distribution of the time between two tags.
type GenerationInterval struct {
	Kind  IntervalKind `yaml:"kind"`
	Value float64      `yaml:"value"` // constant interval or exponential mean, s
}

// QStrategy selects the Q-adjustment step rule.
type QStrategy string

const (
	QFixedStep    QStrategy = "fixed"
	QAdaptiveStep QStrategy = "adaptive"
)

// PowerMode selects reader power cycling.
type PowerMode string

const (
	PowerPeriodic PowerMode = "periodic"
	PowerAlwaysOn PowerMode = "always_on"
)

// TargetStrategy selects how the Query target flag evolves.
type TargetStrategy string

const (
	TargetConst  TargetStrategy = "const"
	TargetSwitch TargetStrategy = "switch"
)

// IntervalKind selects the generation-interval distribution.
type IntervalKind string

const (
	IntervalConstant    IntervalKind = "constant"
	IntervalExponential IntervalKind = "exponential"
)

// DefaultParams returns the default parameter bundle.
func DefaultParams() Params {
	return Params{
		ModelName:      "RFID",
		Tari:           12.5,
		Encoding:       gen2.M2,
		TIDWordSize:    64,
		PowerDBm:       29,
		NumTags:        50,
		SpeedKmph:      25,
		ReaderOffset:   2,
		TagOffset:      2,
		Altitude:       5,
		UseAdjust:      false,
		Q:              5,
		AdjustStrategy: QFixedStep,
		Delta:          0.3,
		Reader: ReaderParams{
			Delim:                 12.5,
			Temp:                  "NOMINAL",
			RTcalTariMul:          3.0,
			TRcalRTcalMul:         2.5,
			AntennaSwitchInterval: 0.1,
		},
		Geometry: GeometryParams{
			InitialDistanceToReader: 5,
			MovementDirection:       Vec3{0, 1, 0},
			TravelDistance:          20,
			ReaderAntennaDirection:  Vec3{0, 0, -1},
			TagAntennaDirection:     Vec3{0, 0, 1},
			UpdateInterval:          0.01,
			ReaderAntennaPattern:    channel.PatternDipole,
			TagAntennaPattern:       channel.PatternDipole,
		},
		Energy: EnergyParams{
			ReaderAntennaGain: 6,
			ReaderCableLoss:   -2,
			ReaderNoise:       -80,
			TagAntennaGain:    3,
			TagModulationLoss: -12,
			TagSensitivity:    -18,
			PolarizationLoss:  -3,
		},
		Channel: ChannelParams{
			FrequencyHz:          860e6,
			Permittivity:         15,
			Conductivity:         0.03,
			BERDistribution:      channel.Rayleigh,
			GroundReflectionType: channel.ReflectionFresnel,
			UseDoppler:           true,
			Bandwidth:            1.2e6,
			ReaderPolarization:   channel.PolarizationCircular,
			TagPolarization:      channel.PolarizationHorizontal,
		},
		Power: PowerParams{
			Mode:        PowerPeriodic,
			OnDuration:  2.0,
			OffDuration: 0.1,
		},
		Inventory: InventoryParams{
			ReadTIDBank:     true,
			Sel:             gen2.SelAll,
			Session:         gen2.S0,
			Target:          gen2.FlagA,
			TargetStrategy:  TargetSwitch,
			RoundsPerTarget: 1,
		},
		Tag: TagParams{
			DR:                 gen2.DR8,
			EPCPrefix:          "AAAA",
			TIDPrefix:          "AAAA",
			TRext:              true,
			EPCBitLen:          96,
			S1Persistence:      2,
			S2Persistence:      2,
			S3Persistence:      2,
			GenerationInterval: GenerationInterval{Kind: IntervalConstant, Value: 1.0},
		},
	}
}

var validTari = map[float64]bool{6.25: true, 12.5: true, 18.75: true, 25: true}

// Validate returns every invalid field joined into one error, or nil.
func (p Params) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(validTari[p.Tari], "tari must be one of 6.25, 12.5, 18.75, 25 µs, got %v", p.Tari)
	switch p.Encoding {
	case gen2.FM0, gen2.M2, gen2.M4, gen2.M8:
	default:
		check(false, "encoding must be FM0, M2, M4 or M8, got %d", int(p.Encoding))
	}
	check(p.TIDWordSize >= 0 && p.TIDWordSize <= 255, "tid_word_size must be in [0, 255], got %d", p.TIDWordSize)
	check(p.PowerDBm >= 0 && p.PowerDBm <= 33, "power_dbm must be in [0, 33], got %v", p.PowerDBm)
	check(p.NumTags >= 0, "num_tags must be non-negative, got %d", p.NumTags)
	check(p.SpeedKmph >= 0, "speed_kmph must be non-negative, got %v", p.SpeedKmph)
	check(p.SpeedKmph > 0 || p.Geometry.Lifetime > 0, "speed_kmph = 0 requires geometry.lifetime > 0")
	check(p.ReaderOffset >= 0, "reader_offset must be non-negative, got %v", p.ReaderOffset)
	check(p.TagOffset >= 0, "tag_offset must be non-negative, got %v", p.TagOffset)
	check(p.Altitude >= 0, "altitude must be non-negative, got %v", p.Altitude)
	check(p.Q >= 0 && p.Q <= 15, "q must be in [0, 15], got %d", p.Q)
	check(p.AdjustStrategy == QFixedStep || p.AdjustStrategy == QAdaptiveStep,
		"adjust_strategy must be %q or %q, got %q", QFixedStep, QAdaptiveStep, p.AdjustStrategy)
	check(p.Delta > 0 && p.Delta <= 1, "delta must be in (0, 1], got %v", p.Delta)

	check(p.Reader.Delim > 0, "reader.delim must be positive, got %v", p.Reader.Delim)
	check(p.Reader.Temp == "NOMINAL" || p.Reader.Temp == "EXTENDED", "reader.temp must be NOMINAL or EXTENDED, got %q", p.Reader.Temp)
	check(p.Reader.RTcalTariMul >= 2.5 && p.Reader.RTcalTariMul <= 3.0, "reader.rtcal_tari_mul must be in [2.5, 3], got %v", p.Reader.RTcalTariMul)
	check(p.Reader.TRcalRTcalMul >= 1.1 && p.Reader.TRcalRTcalMul <= 3.0, "reader.trcal_rtcal_mul must be in [1.1, 3], got %v", p.Reader.TRcalRTcalMul)
	check(len(p.Reader.Antennas) <= 1 || p.Reader.AntennaSwitchInterval > 0,
		"reader.antenna_switch_interval must be positive with %d antennas", len(p.Reader.Antennas))

	check(p.Geometry.InitialDistanceToReader >= 0, "geometry.initial_distance_to_reader must be non-negative")
	check(p.Geometry.TravelDistance > 0, "geometry.travel_distance must be positive, got %v", p.Geometry.TravelDistance)
	check(p.Geometry.Lifetime >= 0, "geometry.lifetime must be non-negative, got %v", p.Geometry.Lifetime)
	check(p.Geometry.UpdateInterval > 0, "geometry.update_interval must be positive, got %v", p.Geometry.UpdateInterval)
	for name, a := range map[string]channel.AntennaPattern{
		"reader_antenna_pattern": p.Geometry.ReaderAntennaPattern,
		"tag_antenna_pattern":    p.Geometry.TagAntennaPattern,
	} {
		_, ok := a.Func()
		check(ok, "geometry.%s must be dipole or isotropic, got %q", name, a)
	}

	medium := p.medium()
	if err := medium.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("channel: %w", err))
	}
	check(p.Channel.ReaderPolarization >= 0 && p.Channel.ReaderPolarization <= 1, "channel.reader_polarization must be in [0, 1]")
	check(p.Channel.TagPolarization >= 0 && p.Channel.TagPolarization <= 1, "channel.tag_polarization must be in [0, 1]")

	switch p.Power.Mode {
	case PowerPeriodic:
		check(p.Power.OnDuration > 0, "power.on_duration must be positive, got %v", p.Power.OnDuration)
		check(p.Power.OffDuration >= 0, "power.off_duration must be non-negative, got %v", p.Power.OffDuration)
	case PowerAlwaysOn:
	default:
		check(false, "power.mode must be %q or %q, got %q", PowerPeriodic, PowerAlwaysOn, p.Power.Mode)
	}

	check(p.Inventory.TargetStrategy == TargetConst || p.Inventory.TargetStrategy == TargetSwitch,
		"inventory.target_strategy must be %q or %q, got %q", TargetConst, TargetSwitch, p.Inventory.TargetStrategy)
	check(p.Inventory.RoundsPerTarget >= 1, "inventory.rounds_per_target must be >= 1, got %d", p.Inventory.RoundsPerTarget)

	check(p.Tag.EPCBitLen >= 8 && p.Tag.EPCBitLen <= 256 && p.Tag.EPCBitLen%8 == 0,
		"tag.epc_bitlen must be a multiple of 8 in [8, 256], got %d", p.Tag.EPCBitLen)
	check(p.Tag.S1Persistence >= 0 && p.Tag.S2Persistence >= 0 && p.Tag.S3Persistence >= 0,
		"tag session persistence times must be non-negative")
	switch p.Tag.GenerationInterval.Kind {
	case IntervalConstant, IntervalExponential:
		check(p.Tag.GenerationInterval.Value > 0, "tag.generation_interval.value must be positive, got %v", p.Tag.GenerationInterval.Value)
	default:
		check(false, "tag.generation_interval.kind must be %q or %q, got %q",
			IntervalConstant, IntervalExponential, p.Tag.GenerationInterval.Kind)
	}

	return errors.Join(errs...)
}

// Lifetime returns how long each generated tag lives, seconds.
func (p Params) Lifetime() float64 {
	if p.Geometry.Lifetime > 0 {
		return p.Geometry.Lifetime
	}
	return p.Geometry.TravelDistance / channel.KmphToMps(p.SpeedKmph)
}

// LinkTiming derives the Gen2 link timing from the bundle.
func (p Params) LinkTiming() gen2.LinkTiming {
	return gen2.NewLinkTiming(p.Tari*1e-6, p.Reader.RTcalTariMul, p.Reader.TRcalRTcalMul,
		p.Reader.Delim*1e-6, p.Tag.DR, p.Encoding, p.Tag.TRext)
}

func (p Params) medium() channel.Medium {
	return channel.Medium{
		Frequency:        p.Channel.FrequencyHz,
		Permittivity:     p.Channel.Permittivity,
		Conductivity:     p.Channel.Conductivity,
		Reflection:       p.Channel.GroundReflectionType,
		BERDistribution:  p.Channel.BERDistribution,
		UseDoppler:       p.Channel.UseDoppler,
		PolarizationLoss: p.Energy.PolarizationLoss,
		Bandwidth:        p.Channel.Bandwidth,
	}
}

// LoadParams reads a YAML parameter file over the defaults. Unknown keys are
// rejected.
func LoadParams(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("reading params: %w", err)
	}
	return ParseParams(data)
}

// ParseParams decodes YAML over the defaults. Unknown keys are rejected.
func ParseParams(data []byte) (Params, error) {
	p := DefaultParams()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil && err != io.EOF {
		return Params{}, fmt.Errorf("parsing params: %w", err)
	}
	return p, nil
}

// WriteParams renders p as YAML.
func WriteParams(w io.Writer, p Params) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	return enc.Close()
}
