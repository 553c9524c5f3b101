// Package synth generates synthetic PPG recordings and rosters for demos and tests.
package synth

import (
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/okian/pulse/internal/adapters/tabular"
	"github.com/okian/pulse/internal/domain/waveform"
)

// Pulse shape constants, as fractions of one beat period.
const (
	systolicWidth  = 0.08
	dicroticOffset = 0.30
	dicroticWidth  = 0.06
	dicroticHeight = 0.35
	// The dicrotic wave stays this close to its systolic peak so peak
	// detection at the default distance folds it into the beat.
	maxDicroticSamples = 25

	baselineIR  = 50000.0
	pulseIR     = 2000.0
	breathDepth = 0.1
	breathHz    = 0.25
)

// Profile is a family of subjects with a heart-rate band.
type Profile string

const (
	ProfileResting     Profile = "resting"
	ProfileAthletic    Profile = "athletic"
	ProfileTachycardic Profile = "tachycardic"
	// ProfileWeakSignal records too briefly to contain two beats.
	ProfileWeakSignal Profile = "weak_signal"
)

var profileBands = map[Profile][2]float64{
	ProfileResting:     {60, 80},
	ProfileAthletic:    {48, 60},
	ProfileTachycardic: {100, 130},
	ProfileWeakSignal:  {60, 80},
}

// Profiles in the order the corpus writer cycles through them.
var Profiles = []Profile{ProfileResting, ProfileAthletic, ProfileResting, ProfileTachycardic, ProfileWeakSignal}

// WaveformConfig describes one synthetic recording.
type WaveformConfig struct {
	HeartRate    float64 // bpm
	Seconds      float64
	SamplingRate float64 // samples per second
}

// GenerateWaveform renders a smooth PPG trace: a systolic pulse and a smaller
// dicrotic wave per beat, with respiratory amplitude modulation. The trace has
// no noise, so every beat is recoverable by peak detection.
func GenerateWaveform(cfg WaveformConfig) []waveform.Sample {
	if cfg.SamplingRate <= 0 {
		cfg.SamplingRate = waveform.DefaultSamplingDivisor
	}
	n := int(cfg.Seconds * cfg.SamplingRate)
	if n <= 0 || cfg.HeartRate <= 0 {
		return nil
	}

	period := cfg.SamplingRate * 60 / cfg.HeartRate
	sysSigma := period * systolicWidth
	dicSigma := period * dicroticWidth
	dicShift := math.Min(period*dicroticOffset, maxDicroticSamples)

	// Beat k peaks at offset + k*period, starting half a period in so the
	// first peak is interior.
	offset := period / 2
	samples := make([]waveform.Sample, n)
	for i := range samples {
		t := float64(i)
		k := math.Round((t - offset) / period)
		var v float64
		for _, b := range []float64{k - 1, k, k + 1} {
			if b < 0 {
				continue
			}
			center := offset + b*period
			if center >= float64(n) {
				continue
			}
			v += gauss(t, center, sysSigma) + dicroticHeight*gauss(t, center+dicShift, dicSigma)
		}
		breath := 1 + breathDepth*math.Sin(2*math.Pi*breathHz*t/cfg.SamplingRate)
		samples[i] = waveform.Sample{
			Index: int64(i),
			IR:    math.Round((baselineIR+pulseIR*v*breath)*1000) / 1000,
		}
	}
	return samples
}

func gauss(x, mu, sigma float64) float64 {
	d := (x - mu) / sigma
	return math.Exp(-0.5 * d * d)
}

// Subject is one generated recording.
type Subject struct {
	Name      string
	Profile   Profile
	HeartRate float64
}

// NewSubject draws a heart rate for name from profile's band. The same name
// and seed always give the same rate.
func NewSubject(name string, p Profile, seed uint64) Subject {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	rng := rand.New(rand.NewPCG(h.Sum64(), seed))
	band, ok := profileBands[p]
	if !ok {
		band = profileBands[ProfileResting]
	}
	hr := band[0] + rng.Float64()*(band[1]-band[0])
	return Subject{Name: name, Profile: p, HeartRate: math.Round(hr*10) / 10}
}

// CorpusConfig controls WriteCorpus.
type CorpusConfig struct {
	Subjects     int
	Seconds      float64
	SamplingRate float64
	Seed         uint64
	NamePrefix   string
}

// WriteCorpus writes one waveform file per subject into waveDir and a roster
// table to rosterPath. Profiles cycle so every batch has weak-signal subjects.
func WriteCorpus(waveDir, rosterPath string, cfg CorpusConfig) ([]Subject, error) {
	if cfg.Subjects <= 0 {
		return nil, fmt.Errorf("synth: subject count must be positive, got %d", cfg.Subjects)
	}
	if cfg.Seconds <= 0 {
		cfg.Seconds = 30
	}
	if cfg.NamePrefix == "" {
		cfg.NamePrefix = "pilot"
	}
	if err := os.MkdirAll(waveDir, 0o755); err != nil {
		return nil, fmt.Errorf("synth: create %s: %w", waveDir, err)
	}

	subjects := make([]Subject, cfg.Subjects)
	names := make([]string, cfg.Subjects)
	for i := range subjects {
		name := fmt.Sprintf("%s_%03d", cfg.NamePrefix, i+1)
		s := NewSubject(name, Profiles[i%len(Profiles)], cfg.Seed)
		seconds := cfg.Seconds
		if s.Profile == ProfileWeakSignal {
			// Under one and a half beats.
			seconds = 60 / s.HeartRate * 1.2
		}
		samples := GenerateWaveform(WaveformConfig{HeartRate: s.HeartRate, Seconds: seconds, SamplingRate: cfg.SamplingRate})
		if err := writeTo(filepath.Join(waveDir, name+".csv"), func(w io.Writer) error {
			return tabular.WriteWaveform(w, samples)
		}); err != nil {
			return nil, err
		}
		subjects[i] = s
		names[i] = name
	}

	if rosterPath != "" {
		if err := os.MkdirAll(filepath.Dir(rosterPath), 0o755); err != nil {
			return nil, fmt.Errorf("synth: create roster dir: %w", err)
		}
		if err := writeTo(rosterPath, func(w io.Writer) error { return tabular.WriteRoster(w, names) }); err != nil {
			return nil, err
		}
	}
	return subjects, nil
}

func writeTo(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("synth: create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("synth: write %s: %w", path, err)
	}
	return f.Close()
}
