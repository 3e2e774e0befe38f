// Package sweep runs the RFID model over a range of values of one parameter,
// several points at a time.
package sweep

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/gen2sim/gen2sim/sim"
	"github.com/gen2sim/gen2sim/sim/results"
	"github.com/gen2sim/gen2sim/sim/rfid"
)

// Variable names a parameter that can be swept.
type Variable string

const (
	Speed        Variable = "speed"
	TIDWordSize  Variable = "tid_word_size"
	Altitude     Variable = "altitude"
	ReaderOffset Variable = "reader_offset"
	TagOffset    Variable = "tag_offset"
	Power        Variable = "power"
	Q            Variable = "q"
)

// Variables lists every sweepable parameter.
var Variables = []Variable{Speed, TIDWordSize, Altitude, ReaderOffset, TagOffset, Power, Q}

// ErrUnknownVariable is returned for a parameter that cannot be swept.
var ErrUnknownVariable = errors.New("unknown sweep variable")

// ParseVariable validates a variable name.
func ParseVariable(name string) (Variable, error) {
	v := Variable(name)
	if !slices.Contains(Variables, v) {
		return "", errors.Wrapf(ErrUnknownVariable, "%q (want one of %v)", name, Variables)
	}
	return v, nil
}

// Apply sets the parameter v of p to value. Integer parameters reject
// fractional values.
func (v Variable) Apply(p *rfid.Params, value float64) error {
	integer := func() (int, error) {
		if value != math.Trunc(value) {
			return 0, errors.Errorf("%s takes integer values, got %v", v, value)
		}
		return int(value), nil
	}
	switch v {
	case Speed:
		p.SpeedKmph = value
	case TIDWordSize:
		n, err := integer()
		if err != nil {
			return err
		}
		p.TIDWordSize = n
	case Altitude:
		p.Altitude = value
	case ReaderOffset:
		p.ReaderOffset = value
	case TagOffset:
		p.TagOffset = value
	case Power:
		p.PowerDBm = value
	case Q:
		n, err := integer()
		if err != nil {
			return err
		}
		p.Q = n
	default:
		return errors.Wrapf(ErrUnknownVariable, "%q", string(v))
	}
	return nil
}

// Config describes a sweep.
type Config struct {
	Base     rfid.Params
	Variable Variable
	Values   []float64
	Seed     int64
	Jobs     int        // concurrent runs; < 1 means one
	Sim      sim.Config // ceilings applied to every run
}

// Point is one run of a sweep.
type Point struct {
	Value  float64
	Seed   int64
	Params rfid.Params
}

// Points expands cfg into validated points ordered by value. Duplicate
// values collapse into one point. The seed of a point depends only on the
// sweep seed and its value.
func Points(cfg Config) ([]Point, error) {
	if len(cfg.Values) == 0 {
		return nil, errors.New("sweep needs at least one value")
	}
	values := slices.Clone(cfg.Values)
	slices.Sort(values)
	values = slices.Compact(values)

	seeds := sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed))
	points := make([]Point, 0, len(values))
	for _, value := range values {
		p := cfg.Base
		if err := cfg.Variable.Apply(&p, value); err != nil {
			return nil, err
		}
		if err := p.Validate(); err != nil {
			return nil, errors.Wrapf(err, "%s = %v", cfg.Variable, value)
		}
		stream := sim.SubsystemSweep + "/" + strconv.FormatFloat(value, 'g', -1, 64)
		points = append(points, Point{
			Value:  value,
			Seed:   seeds.ForSubsystem(stream).Int63(),
			Params: p,
		})
	}
	return points, nil
}

// Run simulates every point of cfg with up to cfg.Jobs independent models at
// a time and returns their summaries in point order. Cancelling ctx stops
// new points from starting; the first failing point cancels the rest.
func Run(ctx context.Context, cfg Config) ([]*results.Summary, error) {
	points, err := Points(cfg)
	if err != nil {
		return nil, err
	}
	out := make([]*results.Summary, len(points))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Jobs, 1))
	for i, pt := range points {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := runPoint(cfg, pt)
			if err != nil {
				return errors.WithMessagef(err, "%s = %v", cfg.Variable, pt.Value)
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func runPoint(cfg Config, pt Point) (*results.Summary, error) {
	m, err := rfid.NewModel(pt.Params, pt.Seed)
	if err != nil {
		return nil, err
	}
	logger := cfg.Sim.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"variable": cfg.Variable,
		"value":    pt.Value,
		"seed":     pt.Seed,
	}).Debug("sweep point started")

	res, err := rfid.Run(m, cfg.Sim)
	if err != nil {
		return nil, err
	}
	s := results.Summarize(res, pt.Seed)
	s.Variable = string(cfg.Variable)
	s.Value = pt.Value
	return s, nil
}

// String renders the sweep for logs.
func (c Config) String() string {
	return fmt.Sprintf("sweep %s over %v (seed %d, %d jobs)", c.Variable, c.Values, c.Seed, max(c.Jobs, 1))
}
