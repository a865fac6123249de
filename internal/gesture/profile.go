package gesture

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

type PostureThresholds struct {
	ShoulderDiffExcellent float64 `yaml:"shoulder_diff_excellent" json:"shoulder_diff_excellent"`
	ShoulderDiffGood      float64 `yaml:"shoulder_diff_good" json:"shoulder_diff_good"`
	HipDiffExcellent      float64 `yaml:"hip_diff_excellent" json:"hip_diff_excellent"`
	HipDiffGood           float64 `yaml:"hip_diff_good" json:"hip_diff_good"`
	HeadTiltThreshold     float64 `yaml:"head_tilt_threshold" json:"head_tilt_threshold"`
}

type EyeThresholds struct {
	Engaged    float64 `yaml:"engaged" json:"engaged"`
	Disengaged float64 `yaml:"disengaged" json:"disengaged"`
}

// Profile holds the tunable constants of the frame analyzers.
type Profile struct {
	MinDetectionConfidence float64            `yaml:"min_detection_confidence" json:"min_detection_confidence"`
	FrameStride            int                `yaml:"frame_stride" json:"frame_stride"`
	Posture                PostureThresholds  `yaml:"posture_thresholds" json:"posture_thresholds"`
	Eye                    EyeThresholds      `yaml:"eye_thresholds" json:"eye_thresholds"`
	EmotionWeights         map[string]float64 `yaml:"emotion_weights" json:"emotion_weights"`
}

var ErrInvalidProfile = errors.New("invalid analysis profile")

func DefaultProfile() Profile {
	return Profile{
		MinDetectionConfidence: 0.5,
		FrameStride:            5,
		Posture: PostureThresholds{
			ShoulderDiffExcellent: 0.05,
			ShoulderDiffGood:      0.1,
			HipDiffExcellent:      0.05,
			HipDiffGood:           0.1,
			HeadTiltThreshold:     0.1,
		},
		Eye: EyeThresholds{
			Engaged:    0.8,
			Disengaged: 0.5,
		},
		EmotionWeights: map[string]float64{
			"happy":   5,
			"neutral": 3,
			"sad":     -5,
			"angry":   -5,
		},
	}
}

func (p Profile) Validate() error {
	if p.FrameStride < 1 {
		return fmt.Errorf("%w: frame_stride must be >= 1", ErrInvalidProfile)
	}
	if p.MinDetectionConfidence < 0 || p.MinDetectionConfidence > 1 {
		return fmt.Errorf("%w: min_detection_confidence must be within [0,1]", ErrInvalidProfile)
	}
	if p.Posture.ShoulderDiffExcellent > p.Posture.ShoulderDiffGood {
		return fmt.Errorf("%w: shoulder excellent threshold exceeds good threshold", ErrInvalidProfile)
	}
	if p.Posture.HipDiffExcellent > p.Posture.HipDiffGood {
		return fmt.Errorf("%w: hip excellent threshold exceeds good threshold", ErrInvalidProfile)
	}
	if p.Eye.Disengaged > p.Eye.Engaged {
		return fmt.Errorf("%w: eye disengaged threshold exceeds engaged threshold", ErrInvalidProfile)
	}
	return nil
}

// LoadProfile reads a YAML profile. Fields missing from the file keep their
// default values; an emotion_weights table replaces the default table as a
// whole, and emotions it does not list score 0.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read profile: %w", err)
	}
	defaults := p.EmotionWeights
	p.EmotionWeights = nil
	if err := yaml.Unmarshal(data, &p); err != nil {
		return DefaultProfile(), fmt.Errorf("parse profile: %w", err)
	}
	if p.EmotionWeights == nil {
		p.EmotionWeights = defaults
	}

	weights := make(map[string]float64, len(p.EmotionWeights))
	for k, v := range p.EmotionWeights {
		label := strings.ToLower(strings.TrimSpace(k))
		if _, dup := weights[label]; dup {
			return p, fmt.Errorf("%w: emotion %q listed more than once", ErrInvalidProfile, label)
		}
		weights[label] = v
	}
	p.EmotionWeights = weights
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// ProfileStore is a concurrency-safe holder that lets the profile be swapped
// while analyses are running.
type ProfileStore struct {
	v atomic.Pointer[Profile]
}

func NewProfileStore(p Profile) *ProfileStore {
	s := &ProfileStore{}
	s.Store(p)
	return s
}

func (s *ProfileStore) Load() Profile {
	if p := s.v.Load(); p != nil {
		return *p
	}
	return DefaultProfile()
}

func (s *ProfileStore) Store(p Profile) {
	s.v.Store(&p)
}
